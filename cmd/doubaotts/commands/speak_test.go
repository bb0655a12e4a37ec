package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/doubaotts/pkg/cli"
	"github.com/haivivi/doubaotts/pkg/doubaotts"
)

// echoServer answers each TaskRequest with the submitted text as audio.
// With failOn set, the session fails when that text arrives.
func echoServer(t *testing.T, failOn string) *httptest.Server {
	t.Helper()
	return scriptedServer(t, failOn, "")
}

// scriptedServer is echoServer that, once stallOn arrives, stops answering
// anything, including the finish requests.
func scriptedServer(t *testing.T, failOn, stallOn string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		header := func(mt doubaotts.MessageType) doubaotts.Header {
			return doubaotts.Header{Version: 1, Size: 1, MessageType: mt, Flags: doubaotts.FlagWithEvent, Serialization: doubaotts.SerializationJSON}
		}
		full := header(doubaotts.MsgTypeFullServerResponse)
		write := func(resp *doubaotts.Response) {
			data, err := resp.MarshalBinary()
			if err == nil {
				conn.WriteMessage(websocket.BinaryMessage, data)
			}
		}

		stalled := false
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f, err := doubaotts.ParseFrame(data)
			if err != nil {
				return
			}
			sid := f.Optional.SessionID
			if stalled {
				continue
			}
			switch f.Optional.Event {
			case doubaotts.EventStartConnection:
				write(&doubaotts.Response{Header: full, Event: doubaotts.EventConnectionStarted, ConnectionID: "c1"})
			case doubaotts.EventStartSession:
				write(&doubaotts.Response{Header: full, Event: doubaotts.EventSessionStarted, SessionID: sid, ResponseMeta: "{}"})
			case doubaotts.EventTaskRequest:
				var req doubaotts.TaskRequest
				json.Unmarshal(f.Payload, &req)
				if stallOn != "" && req.ReqParams.Text == stallOn {
					stalled = true
					continue
				}
				if failOn != "" && req.ReqParams.Text == failOn {
					write(&doubaotts.Response{Header: full, Event: doubaotts.EventSessionFailed, SessionID: sid,
						ResponseMeta: `{"status_code":45000001,"message":"text rejected"}`})
					continue
				}
				write(&doubaotts.Response{Header: header(doubaotts.MsgTypeAudioOnlyResponse), Event: doubaotts.EventTTSResponse, SessionID: sid, Payload: []byte(req.ReqParams.Text)})
				write(&doubaotts.Response{Header: full, Event: doubaotts.EventTTSSentenceEnd, SessionID: sid, PayloadJSON: "{}"})
			case doubaotts.EventFinishSession:
				write(&doubaotts.Response{Header: full, Event: doubaotts.EventSessionFinished, SessionID: sid, ResponseMeta: "{}"})
			case doubaotts.EventFinishConnection:
				write(&doubaotts.Response{Header: full, Event: doubaotts.EventConnectionFinished, ResponseMeta: "{}"})
				return
			}
		}
	}))
}

func testOptions(srv *httptest.Server) []doubaotts.Option {
	ctx := &cli.Context{Name: "test", AppID: "app", AccessKey: "key", URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	return clientOptions(ctx, "", "", 0)
}

func TestSpeak_Completed(t *testing.T) {
	srv := echoServer(t, "")
	defer srv.Close()

	var out bytes.Buffer
	result, err := speak(context.Background(), "app", testOptions(srv), []string{"ab", "cd", "ef"}, &out, 0)
	if err != nil {
		t.Fatalf("speak() error: %v", err)
	}
	if out.String() != "abcdef" {
		t.Errorf("audio = %q, want %q", out.String(), "abcdef")
	}
	if result.Status != "completed" || result.AudioBytes != 6 || result.Texts != 3 {
		t.Errorf("result = %+v", result)
	}
	if result.Sentences != 3 {
		t.Errorf("Sentences = %d, want 3", result.Sentences)
	}
	if result.ConnectionID != "c1" || result.SessionID == "" {
		t.Errorf("ids = %q/%q", result.ConnectionID, result.SessionID)
	}
}

func TestSpeak_SessionFailed(t *testing.T) {
	srv := echoServer(t, "bad")
	defer srv.Close()

	var out bytes.Buffer
	result, err := speak(context.Background(), "app", testOptions(srv), []string{"ok", "bad"}, &out, 0)
	if _, ok := doubaotts.AsError(err); !ok {
		t.Fatalf("speak() error = %v, want *doubaotts.Error", err)
	}
	if result.Status != "failed" || !strings.Contains(result.Error, "text rejected") {
		t.Errorf("result = %+v", result)
	}
}

func TestSpeak_CancelledByContext(t *testing.T) {
	srv := echoServer(t, "")
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	result, err := speak(ctx, "app", testOptions(srv), []string{"never"}, &out, 0)
	if err != nil {
		t.Fatalf("speak() error: %v", err)
	}
	if result.Status != "cancelled" || out.Len() != 0 {
		t.Errorf("result = %+v, audio = %q", result, out.String())
	}
}

func TestSpeak_CancelAfter(t *testing.T) {
	srv := echoServer(t, "")
	defer srv.Close()

	var out bytes.Buffer
	// The deadline passes before the second text at the latest.
	result, err := speak(context.Background(), "app", testOptions(srv), []string{"a", "b"}, &out, time.Nanosecond)
	if err != nil {
		t.Fatalf("speak() error: %v", err)
	}
	if result.Status != "cancelled" {
		t.Errorf("Status = %q, want cancelled", result.Status)
	}
}

func TestSpeak_CancelWhileCompleting(t *testing.T) {
	srv := scriptedServer(t, "", "slow")
	defer srv.Close()

	var out bytes.Buffer
	begin := time.Now()
	result, err := speak(context.Background(), "app", testOptions(srv), []string{"ab", "slow"}, &out, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("speak() error: %v", err)
	}
	if result.Status != "cancelled" {
		t.Errorf("Status = %q, want cancelled", result.Status)
	}
	if elapsed := time.Since(begin); elapsed > 3*time.Second {
		t.Errorf("speak() took %s after the cancel deadline", elapsed)
	}
}

func TestClientOptions_Overrides(t *testing.T) {
	srv := echoServer(t, "")
	defer srv.Close()

	ctx := &cli.Context{
		AppID:            "app",
		AccessKey:        "key",
		URL:              "ws" + strings.TrimPrefix(srv.URL, "http"),
		Speaker:          "context-voice",
		SampleRate:       16000,
		HandshakeTimeout: 2,
	}
	opts := clientOptions(ctx, "flag-voice", "mp3", 0)
	client := doubaotts.NewClient("app", opts...)
	defer client.Close()

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
}

func TestSpeak_Trace(t *testing.T) {
	srv := echoServer(t, "")
	defer srv.Close()

	var spans bytes.Buffer
	tp, err := startTracing(&spans)
	if err != nil {
		t.Fatalf("startTracing() error: %v", err)
	}
	opts := append(testOptions(srv), doubaotts.WithTracerProvider(tp))

	var out bytes.Buffer
	if _, err := speak(context.Background(), "app", opts, []string{"hi"}, &out, 0); err != nil {
		t.Fatalf("speak() error: %v", err)
	}
	stopTracing(tp)

	for _, name := range []string{"doubaotts.Start", "doubaotts.StreamingComplete", appName} {
		if !strings.Contains(spans.String(), name) {
			t.Errorf("trace output missing %q", name)
		}
	}
}

func TestAudioLength(t *testing.T) {
	tests := []struct {
		name       string
		bytes      int64
		format     string
		sampleRate int
		want       string
	}{
		{"defaults", 48000, "", 0, "1.0s"},
		{"pcm 16k", 32000, "pcm", 16000, "1.0s"},
		{"short", 4800, "pcm", 24000, "100ms"},
		{"mp3", 48000, "mp3", 24000, ""},
		{"no audio", 0, "pcm", 24000, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audioLength(tt.bytes, tt.format, tt.sampleRate); got != tt.want {
				t.Errorf("audioLength(%d, %q, %d) = %q, want %q", tt.bytes, tt.format, tt.sampleRate, got, tt.want)
			}
		})
	}
}
