package doubaotts

import (
	"bytes"
	"fmt"
)

// Response is a decoded server frame. Which fields are set depends on Event;
// see ParseResponse.
type Response struct {
	Header Header

	Event        Event
	ConnectionID string
	SessionID    string
	ResponseMeta string // JSON metadata of connection/session events
	PayloadJSON  string // JSON text of sentence start/end events
	Payload      []byte // audio chunk, or error payload for ErrorInformation
	ErrorCode    int32
}

// IsAudio reports whether r carries an audio chunk.
func (r *Response) IsAudio() bool {
	return r.Event == EventTTSResponse && r.Header.MessageType == MsgTypeAudioOnlyResponse
}

// ParseResponse decodes a server frame.
//
// For FullServerResponse and AudioOnlyResponse frames flagged WithEvent the
// event code is read first, then the event-specific fields:
//
//	ConnectionStarted                              connection id
//	ConnectionFailed                               response meta
//	SessionStarted, SessionFailed, SessionFinished session id, response meta
//	TTSResponse                                    session id, audio payload
//	TTSSentenceStart, TTSSentenceEnd               session id, payload json
//
// Other events leave the remaining fields unset. ErrorInformation frames carry
// an error code followed by a payload.
func ParseResponse(b []byte) (*Response, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	r := &Response{Header: h}
	off, err := h.end(b)
	if err != nil {
		return nil, err
	}

	switch {
	case h.MessageType.isServerResponse() && h.Flags == FlagWithEvent:
		var ev int32
		if ev, off, err = readInt32(b, off); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		r.Event = Event(ev)
		if err := r.readEventFields(b, off); err != nil {
			return nil, fmt.Errorf("parse %s: %w", r.Event, err)
		}

	case h.MessageType == MsgTypeErrorInformation:
		if r.ErrorCode, off, err = readInt32(b, off); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
		if r.Payload, _, err = readPayload(b, off); err != nil {
			return nil, fmt.Errorf("read error payload: %w", err)
		}
	}
	return r, nil
}

func (r *Response) readEventFields(b []byte, off int) (err error) {
	switch r.Event {
	case EventNone:
	case EventConnectionStarted:
		r.ConnectionID, _, err = readString(b, off)
	case EventConnectionFailed:
		r.ResponseMeta, _, err = readString(b, off)
	case EventSessionStarted, EventSessionFailed, EventSessionFinished:
		if r.SessionID, off, err = readString(b, off); err != nil {
			return err
		}
		r.ResponseMeta, _, err = readString(b, off)
	case EventTTSResponse:
		if r.SessionID, off, err = readString(b, off); err != nil {
			return err
		}
		r.Payload, _, err = readPayload(b, off)
	case EventTTSSentenceStart, EventTTSSentenceEnd:
		if r.SessionID, off, err = readString(b, off); err != nil {
			return err
		}
		r.PayloadJSON, _, err = readString(b, off)
	default:
		// Unknown events are accepted without further fields.
	}
	return err
}

// MarshalBinary encodes r with the same per-event layout ParseResponse reads.
// A zero Header.Version is filled in as version 1 with a one-word header.
func (r *Response) MarshalBinary() ([]byte, error) {
	h := r.Header
	if h.Version == 0 {
		h.Version, h.Size = protocolVersionV1, headerSizeWords
	}
	hb := h.Bytes()
	var buf bytes.Buffer
	buf.Write(hb[:])

	switch {
	case h.MessageType.isServerResponse() && h.Flags == FlagWithEvent:
		writeInt32(&buf, int32(r.Event))
		switch r.Event {
		case EventNone:
		case EventConnectionStarted:
			writeString(&buf, r.ConnectionID)
		case EventConnectionFailed:
			writeString(&buf, r.ResponseMeta)
		case EventSessionStarted, EventSessionFailed, EventSessionFinished:
			writeString(&buf, r.SessionID)
			writeString(&buf, r.ResponseMeta)
		case EventTTSResponse:
			writeString(&buf, r.SessionID)
			writeBytes(&buf, r.Payload)
		case EventTTSSentenceStart, EventTTSSentenceEnd:
			writeString(&buf, r.SessionID)
			writeString(&buf, r.PayloadJSON)
		}
	case h.MessageType == MsgTypeErrorInformation:
		writeInt32(&buf, r.ErrorCode)
		writeBytes(&buf, r.Payload)
	default:
		return nil, fmt.Errorf("marshal response: unsupported message type %s", h.MessageType)
	}
	return buf.Bytes(), nil
}
