package doubaotts

import "strconv"

// Event identifies the semantic purpose of a frame. The numeric values are a
// stable contract with the remote service.
type Event int32

const (
	EventNone Event = 0

	// Upstream connection events
	EventStartConnection  Event = 1
	EventFinishConnection Event = 2

	// Downstream connection events
	EventConnectionStarted  Event = 50
	EventConnectionFailed   Event = 51 // usually an authentication failure
	EventConnectionFinished Event = 52

	// Upstream session events
	EventStartSession  Event = 100
	EventFinishSession Event = 102

	// Downstream session events
	EventSessionStarted  Event = 150
	EventSessionFinished Event = 152
	EventSessionFailed   Event = 153

	// Upstream task events
	EventTaskRequest Event = 200

	// Downstream TTS events
	EventTTSSentenceStart Event = 350
	EventTTSSentenceEnd   Event = 351
	EventTTSResponse      Event = 352
)

var eventNames = map[Event]string{
	EventNone:               "None",
	EventStartConnection:    "StartConnection",
	EventFinishConnection:   "FinishConnection",
	EventConnectionStarted:  "ConnectionStarted",
	EventConnectionFailed:   "ConnectionFailed",
	EventConnectionFinished: "ConnectionFinished",
	EventStartSession:       "StartSession",
	EventFinishSession:      "FinishSession",
	EventSessionStarted:     "SessionStarted",
	EventSessionFinished:    "SessionFinished",
	EventSessionFailed:      "SessionFailed",
	EventTaskRequest:        "TaskRequest",
	EventTTSSentenceStart:   "TTSSentenceStart",
	EventTTSSentenceEnd:     "TTSSentenceEnd",
	EventTTSResponse:        "TTSResponse",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "Event(" + strconv.Itoa(int(e)) + ")"
}

// sessionScoped reports whether a client frame for e carries a session id.
func (e Event) sessionScoped() bool {
	switch e {
	case EventStartSession, EventFinishSession, EventTaskRequest:
		return true
	}
	return false
}
