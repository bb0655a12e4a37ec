package doubaotts

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	tests := []struct {
		name  string
		mt    MessageType
		flags MessageFlags
		ser   Serialization
		comp  Compression
		want  [4]byte
	}{
		{"start connection", MsgTypeFullClientRequest, FlagWithEvent, SerializationNone, CompressionNone, [4]byte{0x11, 0x14, 0x00, 0x00}},
		{"json request", MsgTypeFullClientRequest, FlagWithEvent, SerializationJSON, CompressionNone, [4]byte{0x11, 0x14, 0x10, 0x00}},
		{"audio response", MsgTypeAudioOnlyResponse, FlagWithEvent, SerializationNone, CompressionNone, [4]byte{0x11, 0xb4, 0x00, 0x00}},
		{"error gzip", MsgTypeErrorInformation, FlagNoSequence, SerializationJSON, CompressionGzip, [4]byte{0x11, 0xf0, 0x11, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeHeader(tt.mt, tt.flags, tt.ser, tt.comp)
			if got != tt.want {
				t.Errorf("EncodeHeader() = % x, want % x", got, tt.want)
			}

			h, err := DecodeHeader(got[:])
			if err != nil {
				t.Fatalf("DecodeHeader() error: %v", err)
			}
			if h.Version != 1 || h.Size != 1 {
				t.Errorf("version/size = %d/%d, want 1/1", h.Version, h.Size)
			}
			if h.MessageType != tt.mt || h.Flags != tt.flags || h.Serialization != tt.ser || h.Compression != tt.comp {
				t.Errorf("DecodeHeader() = %+v, fields do not match input", h)
			}
		})
	}
}

func TestDecodeHeader_Short(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		_, err := DecodeHeader(make([]byte, n))
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("DecodeHeader(%d bytes) error = %v, want ErrMalformedFrame", n, err)
		}
	}
}

func TestOptionalBytes(t *testing.T) {
	seq := int32(-7)
	tests := []struct {
		name string
		opt  Optional
		want []byte
	}{
		{"empty", Optional{}, nil},
		{"event only", Optional{Event: EventStartConnection}, []byte{0, 0, 0, 1}},
		{"event and session", Optional{Event: EventFinishSession, SessionID: "ab"}, []byte{0, 0, 0, 102, 0, 0, 0, 2, 'a', 'b'}},
		{"all fields", Optional{Event: EventTaskRequest, SessionID: "s", Sequence: &seq}, []byte{0, 0, 0, 200, 0, 0, 0, 1, 's', 0xff, 0xff, 0xff, 0xf9}},
		{"sequence without event", Optional{Sequence: &seq}, []byte{0xff, 0xff, 0xff, 0xf9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opt.Bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestReadLengthPrefixed(t *testing.T) {
	buf := []byte{0xaa, 0, 0, 0, 3, 'f', 'o', 'o', 0, 0, 0, 0}

	s, off, err := readString(buf, 1)
	if err != nil {
		t.Fatalf("readString() error: %v", err)
	}
	if s != "foo" || off != 8 {
		t.Errorf("readString() = %q, %d, want %q, 8", s, off, "foo")
	}

	p, off, err := readPayload(buf, off)
	if err != nil {
		t.Fatalf("readPayload() error: %v", err)
	}
	if len(p) != 0 || off != 12 {
		t.Errorf("readPayload() = % x, %d, want empty, 12", p, off)
	}

	bad := []struct {
		name string
		buf  []byte
	}{
		{"no prefix", []byte{0, 0}},
		{"overrun", []byte{0, 0, 0, 5, 'a', 'b'}},
		{"negative", []byte{0xff, 0xff, 0xff, 0xff, 'a'}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := readPayload(tt.buf, 0); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("readPayload() error = %v, want ErrMalformedFrame", err)
			}
			if _, _, err := readString(tt.buf, 0); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("readString() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	b := &requestBuilder{uid: "u1", speaker: "spk", audio: AudioParams{Format: "pcm", SampleRate: 24000}}
	startSession, err := b.startSession("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	task, err := b.taskRequest("hello", "sess-1")
	if err != nil {
		t.Fatal(err)
	}

	frames := []*Frame{
		b.startConnection(),
		startSession,
		task,
		b.finishSession("sess-1"),
		b.finishConnection(),
	}

	for _, want := range frames {
		t.Run(want.Optional.Event.String(), func(t *testing.T) {
			got, err := ParseFrame(want.Bytes())
			if err != nil {
				t.Fatalf("ParseFrame() error: %v", err)
			}
			if got.Header != want.Header {
				t.Errorf("Header = %+v, want %+v", got.Header, want.Header)
			}
			if got.Optional.Event != want.Optional.Event {
				t.Errorf("Event = %s, want %s", got.Optional.Event, want.Optional.Event)
			}
			if got.Optional.SessionID != want.Optional.SessionID {
				t.Errorf("SessionID = %q, want %q", got.Optional.SessionID, want.Optional.SessionID)
			}
			if !bytes.Equal(got.Payload, want.Payload) {
				t.Errorf("Payload = %s, want %s", got.Payload, want.Payload)
			}
		})
	}
}

func TestFrameBytes_Layout(t *testing.T) {
	f := &Frame{
		Header:   clientRequestHeader(SerializationJSON),
		Optional: Optional{Event: EventFinishSession, SessionID: "id"},
		Payload:  []byte("{}"),
	}
	want := []byte{
		0x11, 0x14, 0x10, 0x00, // header
		0, 0, 0, 102, // event
		0, 0, 0, 2, 'i', 'd', // session id
		0, 0, 0, 2, '{', '}', // payload
	}
	if got := f.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
}

func TestParseFrame_Truncated(t *testing.T) {
	full := (&requestBuilder{}).finishSession("session").Bytes()
	for n := 0; n < len(full); n++ {
		if _, err := ParseFrame(full[:n]); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("ParseFrame(%d of %d bytes) error = %v, want ErrMalformedFrame", n, len(full), err)
		}
	}
}
