package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned when iteration is complete.
var ErrIteratorDone = errors.New("iterator done")

// Buffer is a thread-safe, unbounded FIFO queue of elements.
//
// Producers call Add and never block; a consumer calls Next, which blocks
// until an element is available or the buffer is closed. This lets a
// producer running on a network goroutine hand work to a slower consumer
// without stalling the network.
//
// The buffer supports graceful shutdown through CloseWrite() (Next keeps
// returning queued elements, then ErrIteratorDone) or CloseWithError() (queued
// elements are dropped and every call fails with the error).
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
}

// N creates a new Buffer with the specified initial capacity. The capacity is
// a hint; the buffer grows as needed.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// Add appends t to the end of the buffer and wakes a waiting reader.
//
// Returns an error if the buffer is closed for writing or has been closed with
// an error.
func (b *Buffer[T]) Add(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	b.buf = append(b.buf, t)
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
	return nil
}

// Next removes and returns the oldest element, blocking while the buffer is
// empty and open.
//
// If the buffer is closed for writing and empty, Next returns
// ErrIteratorDone. If it was closed with an error, Next returns that error.
func (b *Buffer[T]) Next() (t T, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		err = fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		return
	}
	for len(b.buf) == 0 {
		if b.closeWrite {
			err = ErrIteratorDone
			return
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
		if b.closeErr != nil {
			err = fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
			return
		}
	}
	t = b.buf[0]
	var zero T
	b.buf[0] = zero
	b.buf = b.buf[1:]
	return
}

func (b *Buffer[T]) closeWithErrorLocked(err error) error {
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// CloseWithError closes both ends of the buffer. Pending and later calls
// return err; a nil err means io.ErrClosedPipe. Queued elements are dropped.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeWithErrorLocked(err)
}

// Error returns the error passed to CloseWithError, if any.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// Close is CloseWithError(io.ErrClosedPipe).
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}

// CloseWrite closes the write side of the buffer. Queued elements can still
// be read; after that Next returns ErrIteratorDone.
//
// Returns nil if the write side was already closed.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// Len returns the number of queued elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
