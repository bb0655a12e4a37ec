package doubaotts

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, WithMetricsNamespace("tts"), WithConstLabels(prometheus.Labels{"env": "test"}))

	m.frameSent(EventStartConnection)
	m.error("transport")
	m.handshake("connection", time.Now())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"tts_frames_sent_total",
		"tts_errors_total",
		"tts_handshake_duration_seconds",
		"tts_audio_bytes_total",
		"tts_active_sessions",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered; got %v", want, names)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.frameSent(EventTaskRequest)
	m.frameReceived(EventTTSResponse)
	m.audio(10)
	m.handshake("session", time.Now())
	m.error("remote")
	m.sessionOpened()
	m.sessionClosed()
}

func TestMetrics_ClientSession(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	conn := newFakeConn(handshakeReplies(func(f *Frame) [][]byte {
		switch f.Optional.Event {
		case EventTaskRequest:
			sid := f.Optional.SessionID
			return [][]byte{
				serverAudio(sid, []byte{1, 2, 3}),
				serverAudio(sid, []byte{4, 5}),
				serverEvent(EventTTSSentenceEnd, sid, nil),
			}
		case EventFinishConnection:
			return [][]byte{serverEvent(EventConnectionFinished, "", nil)}
		}
		return nil
	}))
	client := newTestClient(conn, &recorder{}, WithMetrics(m))
	ctx := context.Background()

	if err := client.StreamingCall(ctx, "hello"); err != nil {
		t.Fatalf("StreamingCall() error: %v", err)
	}
	if got := metricGaugeValue(t, m.activeSessions); got != 1 {
		t.Errorf("active_sessions = %v, want 1", got)
	}
	if err := client.StreamingComplete(ctx); err != nil {
		t.Fatalf("StreamingComplete() error: %v", err)
	}

	if got := metricGaugeValue(t, m.activeSessions); got != 0 {
		t.Errorf("active_sessions after complete = %v, want 0", got)
	}
	if got := metricCounterValue(t, m.audioBytes); got != 5 {
		t.Errorf("audio_bytes_total = %v, want 5", got)
	}
	if got := metricCounterValue(t, m.framesSent.WithLabelValues("TaskRequest")); got != 1 {
		t.Errorf("frames_sent_total{event=TaskRequest} = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.framesReceived.WithLabelValues("TTSResponse")); got != 2 {
		t.Errorf("frames_received_total{event=TTSResponse} = %v, want 2", got)
	}
}

func TestMetrics_StartupTimeout(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	client := newTestClient(newFakeConn(nil), &recorder{}, WithMetrics(m), WithHandshakeTimeout(20*time.Millisecond))

	if err := client.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want timeout")
	}
	if got := metricCounterValue(t, m.errors.WithLabelValues("startup_timeout")); got != 1 {
		t.Errorf("errors_total{kind=startup_timeout} = %v, want 1", got)
	}
}
