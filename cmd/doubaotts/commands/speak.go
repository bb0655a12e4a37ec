package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/doubaotts/pkg/buffer"
	"github.com/haivivi/doubaotts/pkg/cli"
	"github.com/haivivi/doubaotts/pkg/doubaotts"
)

var (
	speakSpeaker     string
	speakFormat      string
	speakSampleRate  int
	speakCancelAfter time.Duration
	speakMetricsAddr string
	speakTrace       bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [text...]",
	Short: "Synthesize text with bidirectional streaming",
	Long: `Synthesize text over one bidirectional streaming session.

Each argument is submitted as a separate TaskRequest. Without arguments the
texts come from the -f request file, or from stdin one line at a time. Audio
is written to -o as it arrives (stdout by default).

Request file format:
  speaker: zh_female_wanwanxiaohe_moon_bigtts
  format: pcm
  sample_rate: 24000
  texts:
    - 你好，
    - 世界！

Examples:
  doubaotts speak "你好，世界！" -o hello.pcm
  doubaotts -c prod speak -f story.yaml -o story.mp3 --format mp3
  tail -f captions.txt | doubaotts speak | ffplay -f s16le -ar 24000 -ac 1 -`,
	RunE: runSpeakCmd,
}

func init() {
	speakCmd.Flags().StringVar(&speakSpeaker, "speaker", "", "voice (overrides the context default)")
	speakCmd.Flags().StringVar(&speakFormat, "format", "", "audio format: pcm, mp3, ogg_opus")
	speakCmd.Flags().IntVar(&speakSampleRate, "sample-rate", 0, "sample rate in Hz")
	speakCmd.Flags().DurationVar(&speakCancelAfter, "cancel-after", 0, "cancel the stream after this long instead of completing it")
	speakCmd.Flags().StringVar(&speakMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	speakCmd.Flags().BoolVar(&speakTrace, "trace", false, "print OpenTelemetry spans to stderr")
}

// speakResult summarizes one run.
type speakResult struct {
	Status       string `json:"status" yaml:"status"`
	ConnectionID string `json:"connection_id,omitempty" yaml:"connection_id,omitempty"`
	SessionID    string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Texts        int    `json:"texts" yaml:"texts"`
	AudioBytes   int64  `json:"audio_bytes" yaml:"audio_bytes"`
	Sentences    int    `json:"sentences" yaml:"sentences"`
	AudioLength  string `json:"audio_length,omitempty" yaml:"audio_length,omitempty"`
	Elapsed      string `json:"elapsed" yaml:"elapsed"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runSpeakCmd(cmd *cobra.Command, args []string) error {
	ctx, err := getContext()
	if err != nil {
		return err
	}
	if err := ctx.Validate(); err != nil {
		return err
	}

	speaker, format, sampleRate := speakSpeaker, speakFormat, speakSampleRate
	texts := args
	if len(texts) == 0 && inputFile != "" {
		var req cli.SpeakRequest
		if err := cli.LoadRequest(inputFile, &req); err != nil {
			return err
		}
		texts = req.Texts
		if speaker == "" {
			speaker = req.Speaker
		}
		if format == "" {
			format = req.Format
		}
		if sampleRate == 0 {
			sampleRate = req.SampleRate
		}
	}
	if len(texts) == 0 {
		if texts, err = cli.ReadLines(os.Stdin); err != nil {
			return err
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("nothing to synthesize: pass text arguments, -f or stdin")
	}

	opts := clientOptions(ctx, speaker, format, sampleRate)
	if speakMetricsAddr != "" {
		ms, err := startMetricsServer(speakMetricsAddr)
		if err != nil {
			return err
		}
		defer ms.stop()
		opts = append(opts, doubaotts.WithMetrics(ms.metrics))
	}
	if speakTrace {
		tp, err := startTracing(os.Stderr)
		if err != nil {
			return err
		}
		defer stopTracing(tp)
		opts = append(opts, doubaotts.WithTracerProvider(tp))
	}

	out, err := createOutput(outputFile)
	if err != nil {
		return err
	}
	if out != os.Stdout {
		defer out.Close()
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := speak(runCtx, ctx.AppID, opts, texts, out, speakCancelAfter)
	result.AudioLength = audioLength(result.AudioBytes, firstNonEmpty(format, ctx.Format), firstNonZero(sampleRate, ctx.SampleRate))

	if outputJSON {
		if err := cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON, Writer: os.Stderr}); err != nil {
			return err
		}
	} else {
		printSummary(result)
	}
	return runErr
}

// speak streams texts through a new client and writes the audio to out. A
// positive cancelAfter cancels the stream once it elapses instead of
// completing it.
func speak(ctx context.Context, appID string, opts []doubaotts.Option, texts []string, out io.Writer, cancelAfter time.Duration) (*speakResult, error) {
	s := newSpeakSession()
	opts = append(opts, doubaotts.WithCallback(s.callback()))
	client := doubaotts.NewClient(appID, opts...)
	defer client.Close()

	written := make(chan error, 1)
	go func() {
		_, err := s.chunks.WriteTo(out)
		written <- err
	}()

	begin := time.Now()
	result := &speakResult{Texts: len(texts)}
	status, err := s.run(ctx, client, texts, cancelAfter)

	s.chunks.CloseWrite()
	if werr := <-written; werr != nil && err == nil {
		err = fmt.Errorf("write audio: %w", werr)
		status = "failed"
	}

	result.Status = status
	result.ConnectionID = client.ConnectionID()
	result.SessionID = client.SessionID()
	result.AudioBytes = s.chunks.Total()
	result.Sentences = s.sentenceCount()
	result.Elapsed = cli.FormatDuration(time.Since(begin))
	if err != nil {
		result.Error = err.Error()
	}
	return result, err
}

// speakSession adapts client callbacks to an audio queue and a failure slot.
type speakSession struct {
	chunks *buffer.Chunks

	mu        sync.Mutex
	failure   error
	sentences int
}

func newSpeakSession() *speakSession {
	return &speakSession{chunks: buffer.NewChunks()}
}

func (s *speakSession) callback() doubaotts.Callback {
	return &doubaotts.CallbackFuncs{
		Open: func() {
			slog.Debug("session open")
		},
		Data: func(audio []byte) {
			if err := s.chunks.Push(audio); err != nil {
				s.setFailure(fmt.Errorf("queue audio: %w", err))
			}
		},
		Complete: func() {
			s.mu.Lock()
			s.sentences++
			s.mu.Unlock()
		},
		Event: func(event doubaotts.Event, payload string) {
			slog.Debug("event", "event", event, "payload", payload)
		},
		Error: func(err error) {
			s.setFailure(err)
		},
	}
}

func (s *speakSession) setFailure(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
}

func (s *speakSession) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *speakSession) sentenceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentences
}

func (s *speakSession) run(ctx context.Context, client *doubaotts.Client, texts []string, cancelAfter time.Duration) (string, error) {
	var deadline <-chan time.Time
	if cancelAfter > 0 {
		timer := time.NewTimer(cancelAfter)
		defer timer.Stop()
		deadline = timer.C
	}

	for i, text := range texts {
		if err := s.err(); err != nil {
			return "failed", err
		}
		select {
		case <-deadline:
			return "cancelled", cancelStream(client)
		case <-ctx.Done():
			return "cancelled", cancelStream(client)
		default:
		}
		if err := client.StreamingCall(ctx, text); err != nil {
			return s.failed(client, err)
		}
		slog.Debug("submitted", "index", i, "text", strings.TrimSpace(text))
	}

	// A deadline or interrupt while waiting for the tail of the audio cancels
	// the stream, which also releases StreamingComplete.
	cancelled := make(chan struct{})
	completed := make(chan struct{})
	defer close(completed)
	go func() {
		select {
		case <-deadline:
		case <-ctx.Done():
		case <-completed:
			return
		}
		close(cancelled)
		if err := cancelStream(client); err != nil {
			slog.Warn("cancel stream", "err", err)
		}
	}()

	err := client.StreamingComplete(context.WithoutCancel(ctx))
	select {
	case <-cancelled:
		return "cancelled", nil
	default:
	}
	if err != nil {
		return s.failed(client, err)
	}
	if err := s.err(); err != nil {
		return "failed", err
	}
	return "completed", nil
}

// failed closes client so every pending callback has run, then prefers the
// error the server reported over err.
func (s *speakSession) failed(client *doubaotts.Client, err error) (string, error) {
	client.Close()
	if failure := s.err(); failure != nil {
		return "failed", failure
	}
	return "failed", err
}

// cancelStream stops client; a stream that never started needs no cancel.
func cancelStream(client *doubaotts.Client) error {
	err := client.StreamingCancel(context.Background())
	if errors.Is(err, doubaotts.ErrNotStarted) {
		return nil
	}
	return err
}

// audioLength formats the playback length of n bytes of PCM. Compressed
// formats have no fixed byte rate and yield "".
func audioLength(n int64, format string, sampleRate int) string {
	if format == "" {
		format = doubaotts.DefaultAudioFormat
	}
	if format != "pcm" || n == 0 {
		return ""
	}
	if sampleRate == 0 {
		sampleRate = doubaotts.DefaultSampleRate
	}
	return cli.FormatDuration(cli.PCMDuration(n, sampleRate))
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}

func firstNonZero(v ...int) int {
	for _, n := range v {
		if n != 0 {
			return n
		}
	}
	return 0
}

func printSummary(r *speakResult) {
	rows := []cli.Row{
		{Label: "Connection", Value: r.ConnectionID},
		{Label: "Session", Value: r.SessionID},
		{Label: "Texts", Value: fmt.Sprint(r.Texts)},
		{Label: "Sentences", Value: fmt.Sprint(r.Sentences)},
		{Label: "Audio", Value: cli.FormatBytes(r.AudioBytes)},
	}
	if r.AudioLength != "" {
		rows = append(rows, cli.Row{Label: "Audio length", Value: r.AudioLength})
	}
	rows = append(rows, cli.Row{Label: "Elapsed", Value: r.Elapsed})
	if r.Error != "" {
		rows = append(rows, cli.Row{Label: "Error", Value: r.Error})
	}
	summary := cli.Summary{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "doubaotts speak",
		Status: r.Status,
		Failed: r.Status == "failed",
		Rows:   rows,
	}
	fmt.Fprintln(os.Stderr, summary.Render(60))
}
