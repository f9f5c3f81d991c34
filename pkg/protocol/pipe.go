package protocol

import (
	"io"
	"sync"
)

// Pipe is a channel-backed ChunkStream connecting a producing goroutine (a
// runtime adapter reading an upstream) to a consuming one (the SSE encoder).
// The producer calls Send/Fail/CloseSend; the consumer calls Recv/Close.
type Pipe struct {
	chunks chan *Chunk
	errs   chan error
	done   chan struct{}

	closeOnce sync.Once
	sendOnce  sync.Once
	onClose   func()
}

// NewPipe creates a Pipe. onClose, if non-nil, runs once when the consumer
// closes the stream; adapters use it to cancel the upstream call so no
// orphaned read survives the consumer.
func NewPipe(onClose func()) *Pipe {
	return &Pipe{
		// A single slot: the producer may run at most one chunk ahead of
		// the consumer, so callback work settles before the next upstream
		// read.
		chunks:  make(chan *Chunk, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Send publishes a chunk, dropping it if the consumer already closed.
func (p *Pipe) Send(c *Chunk) {
	if c == nil {
		return
	}
	select {
	case <-p.done:
	case p.chunks <- c:
	}
}

// Fail records a terminal error for the consumer. Only the first error wins.
func (p *Pipe) Fail(err error) {
	select {
	case p.errs <- err:
	default:
	}
	p.CloseSend()
}

// CloseSend marks the producing side finished. Called exactly once by the
// adapter when the upstream stream ends.
func (p *Pipe) CloseSend() {
	p.sendOnce.Do(func() { close(p.chunks) })
}

// Recv returns the next chunk, io.EOF on normal exhaustion, or the producer's
// terminal error.
func (p *Pipe) Recv() (*Chunk, error) {
	select {
	case <-p.done:
		return nil, ErrStreamClosed
	case c, ok := <-p.chunks:
		if !ok {
			select {
			case err := <-p.errs:
				return nil, err
			default:
				return nil, io.EOF
			}
		}
		return c, nil
	}
}

// Close tears the stream down from the consuming side.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}
