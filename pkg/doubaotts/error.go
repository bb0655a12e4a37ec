package doubaotts

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned when bytes cannot be decoded as a frame.
	ErrMalformedFrame = errors.New("doubaotts: malformed frame")

	// ErrStartupTimeout is returned when the server does not acknowledge
	// StartConnection or StartSession within the handshake timeout.
	ErrStartupTimeout = errors.New("doubaotts: startup timeout")

	// ErrNotStarted is returned when text is submitted before the session is active.
	ErrNotStarted = errors.New("doubaotts: not started")

	// ErrAlreadyStarted is returned by Start on a client that has left the idle state.
	ErrAlreadyStarted = errors.New("doubaotts: already started")

	// ErrAlreadyStopped is returned once the client has completed, been
	// cancelled or failed.
	ErrAlreadyStopped = errors.New("doubaotts: already stopped")

	// ErrTransport wraps failures of the underlying connection.
	ErrTransport = errors.New("doubaotts: transport error")

	// ErrRemoteRejected is the sentinel behind every *Error.
	ErrRemoteRejected = errors.New("doubaotts: rejected by server")
)

// Error is a failure reported by the server, either through a
// ConnectionFailed / SessionFailed / ConnectionFinished event or an
// ErrorInformation frame.
type Error struct {
	// Event is the event that carried the failure. EventNone for ErrorInformation frames.
	Event Event `json:"-"`

	// Code is the status code from the response metadata, or the error code of
	// an ErrorInformation frame.
	Code int `json:"status_code"`

	// Message is the server's description.
	Message string `json:"message"`

	// SessionID is the session the failure refers to, if any.
	SessionID string `json:"-"`

	// Meta is the raw metadata or error payload as received.
	Meta string `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Meta
	}
	if e.Event == EventNone {
		return fmt.Sprintf("doubaotts: server error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("doubaotts: %s (code=%d): %s", e.Event, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return ErrRemoteRejected
}

// AsError tries to convert err to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// remoteError builds an *Error from a failure response. Metadata that is not
// JSON is kept verbatim in Meta.
func remoteError(resp *Response) *Error {
	if resp.Header.MessageType == MsgTypeErrorInformation {
		e := &Error{Meta: string(resp.Payload)}
		_ = json.Unmarshal(resp.Payload, e)
		if resp.ErrorCode != 0 {
			e.Code = int(resp.ErrorCode)
		}
		return e
	}
	e := &Error{
		Event:     resp.Event,
		SessionID: resp.SessionID,
		Meta:      resp.ResponseMeta,
	}
	if resp.ResponseMeta != "" {
		_ = json.Unmarshal([]byte(resp.ResponseMeta), e)
	}
	return e
}

// transportError tags err as a connection failure.
func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
