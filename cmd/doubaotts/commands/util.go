package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/haivivi/doubaotts/pkg/cli"
	"github.com/haivivi/doubaotts/pkg/doubaotts"
)

// clientOptions translates a context and per-run overrides into client options.
func clientOptions(ctx *cli.Context, speaker, format string, sampleRate int) []doubaotts.Option {
	opts := []doubaotts.Option{
		doubaotts.WithAccessKey(ctx.AccessKey),
		doubaotts.WithLogger(slog.Default()),
	}
	if ctx.ResourceID != "" {
		opts = append(opts, doubaotts.WithResourceID(ctx.ResourceID))
	}
	if ctx.URL != "" {
		opts = append(opts, doubaotts.WithURL(ctx.URL))
	}
	if ctx.UserID != "" {
		opts = append(opts, doubaotts.WithUserID(ctx.UserID))
	}
	if d := ctx.Timeout(); d > 0 {
		opts = append(opts, doubaotts.WithHandshakeTimeout(d))
	}

	if speaker == "" {
		speaker = ctx.Speaker
	}
	if format == "" {
		format = ctx.Format
	}
	if sampleRate == 0 {
		sampleRate = ctx.SampleRate
	}
	if speaker != "" {
		opts = append(opts, doubaotts.WithSpeaker(speaker))
	}
	if format != "" {
		opts = append(opts, doubaotts.WithAudioFormat(format))
	}
	if sampleRate != 0 {
		opts = append(opts, doubaotts.WithSampleRate(sampleRate))
	}
	return opts
}

// metricsServer exposes a private registry on addr until stop is called.
type metricsServer struct {
	metrics *doubaotts.Metrics
	srv     *http.Server
}

func startMetricsServer(addr string) (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	m := doubaotts.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return &metricsServer{metrics: m, srv: srv}, nil
}

func (s *metricsServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// startTracing returns a provider that pretty-prints client spans to w.
// Stop it with stopTracing to flush pending spans.
func startTracing(w io.Writer) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(appName)),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func stopTracing(tp *sdktrace.TracerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		slog.Warn("trace shutdown", "err", err)
	}
}

// createOutput opens path for writing, or returns stdout when path is empty or "-".
func createOutput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
