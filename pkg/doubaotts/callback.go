package doubaotts

// Callback receives session notifications. All methods are called from the
// client's receive goroutine, in wire order; a method that blocks stalls the
// dispatch of every later frame.
//
// OnData, OnComplete and OnEvent only see frames that arrive between
// SessionStarted and the end of teardown. Synthesis output sent before the
// session opens is dropped.
type Callback interface {
	// OnOpen is called once the session has started.
	OnOpen()

	// OnComplete is called when the server ends an utterance (TTSSentenceEnd).
	OnComplete()

	// OnError reports a server rejection (*Error), a malformed frame, or a
	// transport read failure.
	OnError(err error)

	// OnClose is called when the receive loop observes the connection closing.
	OnClose()

	// OnEvent receives informational events, such as TTSSentenceStart, and
	// any event without a dedicated handler. payload is the event's JSON text
	// or response metadata.
	OnEvent(event Event, payload string)

	// OnData receives one audio chunk. The slice is owned by the callee.
	OnData(audio []byte)
}

// NopCallback ignores every notification. Embed it to implement only the
// methods you need.
type NopCallback struct{}

func (NopCallback) OnOpen() {}
func (NopCallback) OnComplete() {}
func (NopCallback) OnError(error) {}
func (NopCallback) OnClose() {}
func (NopCallback) OnEvent(Event, string) {}
func (NopCallback) OnData([]byte) {}

// CallbackFuncs adapts plain functions to Callback. Nil fields are skipped.
type CallbackFuncs struct {
	Open     func()
	Complete func()
	Error    func(err error)
	Close    func()
	Event    func(event Event, payload string)
	Data     func(audio []byte)
}

func (f *CallbackFuncs) OnOpen() {
	if f.Open != nil {
		f.Open()
	}
}

func (f *CallbackFuncs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

func (f *CallbackFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f *CallbackFuncs) OnClose() {
	if f.Close != nil {
		f.Close()
	}
}

func (f *CallbackFuncs) OnEvent(event Event, payload string) {
	if f.Event != nil {
		f.Event(event, payload)
	}
}

func (f *CallbackFuncs) OnData(audio []byte) {
	if f.Data != nil {
		f.Data(audio)
	}
}
