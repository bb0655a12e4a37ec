package doubaotts

import (
	"fmt"
	"sync"
)

// State is the client's position in the connection/session lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnectionOpening
	StateConnectionOpen
	StateSessionOpening
	StateSessionActive
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnectionOpening:
		return "ConnectionOpening"
	case StateConnectionOpen:
		return "ConnectionOpen"
	case StateSessionOpening:
		return "SessionOpening"
	case StateSessionActive:
		return "SessionActive"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// terminal reports whether no further transition is possible.
func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}

// signal is a one-shot notification. fire is idempotent; every waiter on
// done is released by the first call.
type signal struct {
	once sync.Once
	ch   chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) fire() {
	s.once.Do(func() { close(s.ch) })
}

func (s *signal) done() <-chan struct{} {
	return s.ch
}

func (s *signal) fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
