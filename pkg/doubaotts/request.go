package doubaotts

import (
	"encoding/json"
	"fmt"
)

const requestNamespace = "BidirectionalTTS"

var emptyObject = []byte("{}")

// AudioParams selects the output audio encoding.
type AudioParams struct {
	Format     string `json:"format"`      // pcm, mp3, ogg_opus
	SampleRate int    `json:"sample_rate"` // 8000, 16000, 24000, ...
}

// TaskRequest is the JSON payload of StartSession and TaskRequest frames.
type TaskRequest struct {
	User      RequestUser   `json:"user"`
	Event     Event         `json:"event"`
	Namespace string        `json:"namespace"`
	ReqParams RequestParams `json:"req_params"`
}

// RequestUser identifies the end user to the service.
type RequestUser struct {
	UID string `json:"uid"`
}

// RequestParams carries the text and voice settings.
type RequestParams struct {
	Text        string      `json:"text"`
	Speaker     string      `json:"speaker"`
	AudioParams AudioParams `json:"audio_params"`
}

// requestBuilder assembles the five outbound frames.
type requestBuilder struct {
	uid     string
	speaker string
	audio   AudioParams
}

func clientRequestHeader(s Serialization) Header {
	return Header{
		Version:       protocolVersionV1,
		Size:          headerSizeWords,
		MessageType:   MsgTypeFullClientRequest,
		Flags:         FlagWithEvent,
		Serialization: s,
		Compression:   CompressionNone,
	}
}

func (b *requestBuilder) payload(event Event, text string) ([]byte, error) {
	data, err := json.Marshal(&TaskRequest{
		User:      RequestUser{UID: b.uid},
		Event:     event,
		Namespace: requestNamespace,
		ReqParams: RequestParams{
			Text:        text,
			Speaker:     b.speaker,
			AudioParams: b.audio,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return data, nil
}

// startConnection carries no serialization marker, only an empty object.
func (b *requestBuilder) startConnection() *Frame {
	return &Frame{
		Header:   clientRequestHeader(SerializationNone),
		Optional: Optional{Event: EventStartConnection},
		Payload:  emptyObject,
	}
}

func (b *requestBuilder) startSession(sessionID string) (*Frame, error) {
	payload, err := b.payload(EventStartSession, "")
	if err != nil {
		return nil, err
	}
	return &Frame{
		Header:   clientRequestHeader(SerializationJSON),
		Optional: Optional{Event: EventStartSession, SessionID: sessionID},
		Payload:  payload,
	}, nil
}

func (b *requestBuilder) taskRequest(text, sessionID string) (*Frame, error) {
	payload, err := b.payload(EventTaskRequest, text)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Header:   clientRequestHeader(SerializationJSON),
		Optional: Optional{Event: EventTaskRequest, SessionID: sessionID},
		Payload:  payload,
	}, nil
}

func (b *requestBuilder) finishSession(sessionID string) *Frame {
	return &Frame{
		Header:   clientRequestHeader(SerializationJSON),
		Optional: Optional{Event: EventFinishSession, SessionID: sessionID},
		Payload:  emptyObject,
	}
}

func (b *requestBuilder) finishConnection() *Frame {
	return &Frame{
		Header:   clientRequestHeader(SerializationJSON),
		Optional: Optional{Event: EventFinishConnection},
		Payload:  emptyObject,
	}
}
