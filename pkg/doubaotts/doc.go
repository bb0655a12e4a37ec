// Package doubaotts is a client for the Doubao (Volcengine) bidirectional
// streaming TTS API: text is submitted incrementally over one WebSocket and
// synthesized audio comes back asynchronously.
//
// # Protocol
//
// Every message is a binary frame:
//
//	header (4 bytes):
//	  (4bits) version + (4bits) header_size
//	  (4bits) message_type + (4bits) message_type_flags
//	  (4bits) serialization + (4bits) compression
//	  (8bits) reserved
//	optional:
//	  event (int32), then event-specific fields such as session id
//	payload:
//	  payload_size (int32) + payload_data
//
// All integers are big-endian; strings are length-prefixed UTF-8.
//
// A stream runs StartConnection → ConnectionStarted, StartSession →
// SessionStarted, any number of TaskRequest frames, then FinishSession and
// FinishConnection. Audio arrives as TTSResponse events.
//
// # Quick start
//
//	client := doubaotts.NewClient(appID,
//	    doubaotts.WithAccessKey(token),
//	    doubaotts.WithSpeaker("zh_female_wanwanxiaohe_moon_bigtts"),
//	    doubaotts.WithCallback(&doubaotts.CallbackFuncs{
//	        Data: func(audio []byte) { pcm.Write(audio) },
//	    }),
//	)
//	defer client.Close()
//
//	if err := client.StreamingCall(ctx, "你好，世界！"); err != nil {
//	    return err
//	}
//	return client.StreamingComplete(ctx)
//
// # Errors
//
// Handshake problems are returned by the first StreamingCall (or Start), for
// example ErrStartupTimeout. Failures reported by the server while the
// session runs are delivered to Callback.OnError as *Error:
//
//	if e, ok := doubaotts.AsError(err); ok {
//	    log.Printf("server rejected %s: %d %s", e.Event, e.Code, e.Message)
//	}
//
// No call is retried. A failed client must be replaced by a new one.
//
// # Observability
//
// WithLogger, WithMetrics and WithTracerProvider attach slog, Prometheus and
// OpenTelemetry respectively. All three are optional.
package doubaotts
