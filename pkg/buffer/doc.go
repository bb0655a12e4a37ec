// Package buffer provides thread-safe queues for handing streamed data from a
// producer goroutine to a consumer.
//
//   - Buffer: a generic unbounded FIFO. Add never blocks; Next blocks until an
//     element arrives or the buffer is closed.
//
//   - Chunks: a Buffer of byte slices that copies on Push and implements
//     io.WriterTo, so a stream of audio frames can be drained into a file.
//
// Both support graceful shutdown through CloseWrite() (queued data is still
// delivered) or CloseWithError() (immediate closure).
//
// Example usage:
//
//	chunks := buffer.NewChunks()
//	go func() {
//	    for frame := range frames {
//	        chunks.Push(frame)
//	    }
//	    chunks.CloseWrite()
//	}()
//	n, err := chunks.WriteTo(out)
package buffer
