package doubaotts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Start performs the connection and session handshakes. StreamingCall calls
// it on first use, so calling it directly is only needed to connect ahead of
// the first text.
//
// Each handshake waits at most the handshake timeout for the server's
// acknowledgement and fails with ErrStartupTimeout otherwise. On any failure
// the client is closed and cannot be restarted.
func (c *Client) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.setStateLocked(StateConnectionOpening)
	c.mu.Unlock()

	ctx, span := c.startSpan(ctx, "doubaotts.Start")
	defer func() { c.endSpan(span, err) }()

	if err := c.handshake(ctx); err != nil {
		kind := "startup"
		if errors.Is(err, ErrStartupTimeout) {
			kind = "startup_timeout"
		}
		c.metrics.error(kind)
		c.log.Warn("doubaotts: handshake failed", "err", err)
		c.Close()
		return err
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	begin := time.Now()
	conn, err := c.config.dialer(ctx)
	if err != nil {
		return transportError("dial", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.loopDone = done
	c.mu.Unlock()

	if err := c.send(c.builder.startConnection()); err != nil {
		// Nothing will ever read from conn.
		close(done)
		return err
	}
	go c.receiveLoop(conn, done)

	if err := c.await(ctx, c.connectionReady, "connection"); err != nil {
		return err
	}
	c.metrics.handshake("connection", begin)

	begin = time.Now()
	sessionID := uuid.NewString()
	c.mu.Lock()
	if c.state != StateConnectionOpen {
		c.mu.Unlock()
		return c.stoppedErr()
	}
	c.sessionID = sessionID
	c.setStateLocked(StateSessionOpening)
	connectionID := c.connectionID
	c.mu.Unlock()
	c.log.Info("doubaotts: connection started", "connection_id", connectionID)

	frame, err := c.builder.startSession(sessionID)
	if err != nil {
		return err
	}
	if err := c.send(frame); err != nil {
		return err
	}
	if err := c.await(ctx, c.sessionReady, "session"); err != nil {
		return err
	}
	c.metrics.handshake("session", begin)
	c.log.Info("doubaotts: session started", "session_id", sessionID)
	return nil
}

// await blocks until s fires, the handshake timeout elapses, or ctx ends.
// A fired signal is not success by itself: failures release every waiter, so
// the state is checked afterwards.
func (c *Client) await(ctx context.Context, s *signal, phase string) error {
	timer := time.NewTimer(c.config.handshakeTimeout)
	defer timer.Stop()

	select {
	case <-s.done():
	case <-timer.C:
		return fmt.Errorf("%w: no %s acknowledgement within %s", ErrStartupTimeout, phase, c.config.handshakeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case phase == "connection" && c.state == StateConnectionOpen:
		return nil
	case phase == "session" && c.state == StateSessionActive:
		return nil
	}
	return c.stoppedErrLocked()
}

func (c *Client) stoppedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stoppedErrLocked()
}

func (c *Client) stoppedErrLocked() error {
	if c.failure != nil {
		return c.failure
	}
	return ErrAlreadyStopped
}

// StreamingCall submits text for synthesis, starting the connection and
// session on the first call.
func (c *Client) StreamingCall(ctx context.Context, text string) error {
	c.mu.Lock()
	first := c.state == StateIdle
	c.mu.Unlock()

	if first {
		if err := c.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyStarted) {
			return err
		}
	}
	return c.Submit(ctx, text)
}

// Submit sends one TaskRequest on the active session. Unlike StreamingCall
// it never starts the client.
func (c *Client) Submit(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	frame, err := c.builder.taskRequest(text, sessionID)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// activeLocked is the guard for operations that need an active session.
func (c *Client) activeLocked() error {
	switch {
	case c.state == StateSessionActive:
		return nil
	case c.state >= StateClosing:
		return ErrAlreadyStopped
	default:
		return ErrNotStarted
	}
}

// StreamingComplete finishes the session and connection, waits until the
// server has ended synthesis and confirmed the finish, then closes the
// client. Audio still in flight is delivered before it returns.
//
// The wait has no timeout of its own; ctx bounds it. If ctx ends first the
// client is closed anyway and ctx's error is returned.
func (c *Client) StreamingComplete(ctx context.Context) (err error) {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.setStateLocked(StateClosing)
	sessionID := c.sessionID
	c.mu.Unlock()

	ctx, span := c.startSpan(ctx, "doubaotts.StreamingComplete")
	defer func() { c.endSpan(span, err) }()

	if err := c.sendFinish(sessionID); err != nil {
		c.Close()
		return err
	}

	for _, s := range []*signal{c.complete, c.finished} {
		select {
		case <-s.done():
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		}
	}

	if err := c.Close(); err != nil {
		return err
	}
	if c.State() == StateFailed {
		return c.stoppedErr()
	}
	return nil
}

// StreamingCancel finishes the session and connection without waiting for
// outstanding audio, and closes the client. A StreamingComplete blocked on
// the server returns once the client is closed. Cancelling a stopped client
// is a no-op.
func (c *Client) StreamingCancel(ctx context.Context) error {
	c.mu.Lock()
	var sendFinish bool
	switch {
	case c.state == StateClosing:
		// StreamingComplete already sent the finish frames.
	case c.state > StateClosing:
		c.mu.Unlock()
		return nil
	case c.state != StateSessionActive:
		c.mu.Unlock()
		return ErrNotStarted
	default:
		c.setStateLocked(StateClosing)
		sendFinish = true
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	_, span := c.startSpan(ctx, "doubaotts.StreamingCancel")
	var sendErr error
	if sendFinish {
		sendErr = c.sendFinish(sessionID)
	}
	closeErr := c.Close()
	c.connectionReady.fire()
	c.complete.fire()
	c.finished.fire()
	err := errors.Join(sendErr, closeErr)
	c.endSpan(span, err)
	return err
}

func (c *Client) sendFinish(sessionID string) error {
	if err := c.send(c.builder.finishSession(sessionID)); err != nil {
		return err
	}
	return c.send(c.builder.finishConnection())
}

// Close closes the connection and waits for the receive loop to exit. It is
// safe to call more than once. Close must not be called from a Callback
// method.
func (c *Client) Close() error {
	c.mu.Lock()
	done := c.loopDone
	if c.closeCalled {
		c.mu.Unlock()
		if done != nil {
			<-done
		}
		return nil
	}
	c.closeCalled = true
	conn := c.conn
	if c.state != StateFailed {
		c.setStateLocked(StateClosed)
	}
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.sendMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = transportError("close", cerr)
		}
		c.sendMu.Unlock()
	}
	if done != nil {
		<-done
	}
	c.releaseWaiters()
	c.log.Debug("doubaotts: closed", "session_id", c.SessionID())
	return err
}

// send writes one frame. Writes are serialized by sendMu so frames are never
// interleaved on the wire.
func (c *Client) send(f *Frame) error {
	data := f.Bytes()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	conn, closed := c.conn, c.closeCalled
	c.mu.Unlock()
	if conn == nil || closed {
		return fmt.Errorf("%w: send %s: connection is not open", ErrTransport, f.Optional.Event)
	}

	if err := conn.WriteMessage(BinaryMessage, data); err != nil {
		c.metrics.error("transport")
		return transportError("send "+f.Optional.Event.String(), err)
	}
	c.metrics.frameSent(f.Optional.Event)
	c.log.Debug("doubaotts: sent", "event", f.Optional.Event, "session_id", f.Optional.SessionID, "size", len(data))
	return nil
}

// ================== Receive loop ==================

func (c *Client) receiveLoop(conn Conn, done chan struct{}) {
	defer close(done)
	defer c.releaseWaiters()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}
		if msgType != BinaryMessage {
			continue
		}

		resp, err := ParseResponse(data)
		if err != nil {
			c.metrics.error("malformed_frame")
			c.log.Warn("doubaotts: dropping connection on malformed frame", "err", err, "size", len(data))
			c.failLocal(err)
			c.cb.OnError(err)
			return
		}
		c.dispatch(resp)
	}
}

// readFailed reports the end of the inbound stream: OnClose for a closure
// (ours or the peer's), OnError for anything else.
func (c *Client) readFailed(err error) {
	c.mu.Lock()
	closing := c.closeCalled
	c.mu.Unlock()

	var closeErr *websocket.CloseError
	if closing || errors.As(err, &closeErr) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		c.setFailure(fmt.Errorf("%w: connection closed", ErrTransport))
		c.log.Debug("doubaotts: connection closed", "err", err)
		c.cb.OnClose()
		return
	}

	err = transportError("read", err)
	c.metrics.error("transport")
	c.log.Warn("doubaotts: read failed", "err", err)
	c.failLocal(err)
	c.cb.OnError(err)
}

// setFailure records why waiters may have been released, keeping the first cause.
func (c *Client) setFailure(err error) {
	c.mu.Lock()
	if c.failure == nil {
		c.failure = err
	}
	c.mu.Unlock()
}

// failLocal is fail for errors detected on our side of the connection; the
// receive loop has stopped, so the session cannot continue.
func (c *Client) failLocal(err error) {
	c.mu.Lock()
	if !c.state.terminal() {
		c.setStateLocked(StateFailed)
	}
	if c.failure == nil {
		c.failure = err
	}
	c.mu.Unlock()
}

func (c *Client) releaseWaiters() {
	c.connectionReady.fire()
	c.sessionReady.fire()
	c.complete.fire()
	c.finished.fire()
}

// dispatch routes one response. Callbacks run outside c.mu.
func (c *Client) dispatch(resp *Response) {
	c.metrics.frameReceived(resp.Event)
	c.log.Debug("doubaotts: recv",
		"type", resp.Header.MessageType,
		"event", resp.Event,
		"session_id", resp.SessionID,
		"size", len(resp.Payload),
	)

	if resp.Header.MessageType == MsgTypeErrorInformation {
		c.fail(remoteError(resp))
		return
	}

	switch resp.Event {
	case EventConnectionStarted:
		c.mu.Lock()
		if c.state == StateConnectionOpening {
			c.connectionID = resp.ConnectionID
			c.setStateLocked(StateConnectionOpen)
		}
		c.mu.Unlock()
		c.connectionReady.fire()

	case EventSessionStarted:
		c.mu.Lock()
		opened := c.state == StateSessionOpening
		if opened {
			c.setStateLocked(StateSessionActive)
		}
		c.mu.Unlock()
		c.sessionReady.fire()
		if opened {
			c.cb.OnOpen()
		}

	case EventTTSResponse, EventTTSSentenceStart, EventTTSSentenceEnd:
		if !c.streaming() {
			c.log.Debug("doubaotts: dropping session frame outside a session", "event", resp.Event, "state", c.State())
			return
		}
		c.dispatchSession(resp)

	case EventSessionFinished:
		if c.State() == StateClosing {
			// No sentence can follow a finished session.
			c.complete.fire()
			c.finished.fire()
		}
		c.cb.OnEvent(resp.Event, resp.ResponseMeta)

	case EventConnectionFinished:
		if c.State() == StateClosing {
			// Acknowledges our FinishConnection.
			c.complete.fire()
			c.finished.fire()
			c.cb.OnEvent(resp.Event, resp.ResponseMeta)
			return
		}
		c.fail(remoteError(resp))

	case EventConnectionFailed, EventSessionFailed:
		c.fail(remoteError(resp))

	default:
		if !c.streaming() {
			c.log.Debug("doubaotts: dropping event outside a session", "event", resp.Event, "state", c.State())
			return
		}
		payload := resp.PayloadJSON
		if payload == "" {
			payload = resp.ResponseMeta
		}
		c.cb.OnEvent(resp.Event, payload)
	}
}

// streaming reports whether session output may reach the callback: between
// SessionStarted and the end of teardown.
func (c *Client) streaming() bool {
	s := c.State()
	return s == StateSessionActive || s == StateClosing
}

// dispatchSession delivers synthesis output of the active session.
func (c *Client) dispatchSession(resp *Response) {
	switch resp.Event {
	case EventTTSResponse:
		if !resp.IsAudio() {
			c.cb.OnEvent(resp.Event, string(resp.Payload))
			return
		}
		c.metrics.audio(len(resp.Payload))
		c.cb.OnData(resp.Payload)

	case EventTTSSentenceStart:
		c.cb.OnEvent(resp.Event, resp.PayloadJSON)

	case EventTTSSentenceEnd:
		c.complete.fire()
		c.cb.OnComplete()
	}
}

// fail moves the client to StateFailed, unblocks every waiter and reports err.
func (c *Client) fail(err *Error) {
	c.mu.Lock()
	if !c.state.terminal() {
		c.setStateLocked(StateFailed)
	}
	if c.failure == nil {
		c.failure = err
	}
	c.mu.Unlock()

	c.metrics.error("remote")
	c.log.Warn("doubaotts: rejected by server", "event", err.Event, "code", err.Code, "message", err.Message, "session_id", err.SessionID)
	c.releaseWaiters()
	c.cb.OnError(err)
}
