package buffer

import (
	"errors"
	"io"
	"sync/atomic"
)

// Chunks queues byte slices, such as audio frames arriving from a stream, for
// a single consumer that writes them out in order.
type Chunks struct {
	buf   *Buffer[[]byte]
	total atomic.Int64
}

// NewChunks creates an empty chunk queue.
func NewChunks() *Chunks {
	return &Chunks{buf: N[[]byte](64)}
}

// Push queues a copy of p. Empty chunks are ignored.
func (c *Chunks) Push(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	if err := c.buf.Add(chunk); err != nil {
		return err
	}
	c.total.Add(int64(len(chunk)))
	return nil
}

// Next returns the oldest queued chunk. It returns io.EOF once the queue is
// closed for writing and drained.
func (c *Chunks) Next() ([]byte, error) {
	chunk, err := c.buf.Next()
	if errors.Is(err, ErrIteratorDone) {
		return nil, io.EOF
	}
	return chunk, err
}

// WriteTo drains the queue into w until CloseWrite has been called and every
// chunk is written, or until the queue is closed with an error.
func (c *Chunks) WriteTo(w io.Writer) (n int64, err error) {
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		m, err := w.Write(chunk)
		n += int64(m)
		if err != nil {
			c.buf.CloseWithError(err)
			return n, err
		}
	}
}

// CloseWrite marks the end of the stream.
func (c *Chunks) CloseWrite() error {
	return c.buf.CloseWrite()
}

// CloseWithError aborts the stream; queued chunks are dropped.
func (c *Chunks) CloseWithError(err error) error {
	return c.buf.CloseWithError(err)
}

// Total returns the number of bytes pushed so far.
func (c *Chunks) Total() int64 {
	return c.total.Load()
}

// Len returns the number of chunks waiting to be written.
func (c *Chunks) Len() int {
	return c.buf.Len()
}
