package llm

import (
	"context"
	"io"

	"github.com/fissio-dev/fissio/core"
)

// ChunkKind distinguishes the two shapes a Stream can yield.
type ChunkKind int

const (
	ChunkContent ChunkKind = iota
	ChunkUsage
)

// StreamChunk is one item pulled from a Stream: either a content delta or
// a terminal usage report. A stream never emits more than one Usage
// chunk per call.
type StreamChunk struct {
	Kind    ChunkKind
	Content string
	Usage   core.TokenUsage
}

// Stream is a pull-based iterator over StreamChunk. Callers call Next
// until it returns io.EOF; the engine never buffers a whole response in
// memory on the stream path. The provider call runs under the ctx given
// to the call that created the stream; cancelling that ctx aborts it.
// The ctx given to Next only unblocks that Next call, and dropping the
// stream without draining it does not stop the provider call.
type Stream interface {
	Next(ctx context.Context) (StreamChunk, error)
}

// chanStream implements Stream over a channel fed by a background
// goroutine reading the provider's wire format. It is the shared
// plumbing all three backends build their streaming calls on.
type chanStream struct {
	chunks chan StreamChunk
	errc   chan error
	done   bool
}

func newChanStream() *chanStream {
	return &chanStream{
		chunks: make(chan StreamChunk, 8),
		errc:   make(chan error, 1),
	}
}

func (s *chanStream) emit(c StreamChunk) { s.chunks <- c }

func (s *chanStream) fail(err error) {
	s.errc <- err
	close(s.chunks)
}

func (s *chanStream) close() { close(s.chunks) }

func (s *chanStream) Next(ctx context.Context) (StreamChunk, error) {
	if s.done {
		return StreamChunk{}, io.EOF
	}
	select {
	case c, ok := <-s.chunks:
		if !ok {
			select {
			case err := <-s.errc:
				s.done = true
				return StreamChunk{}, err
			default:
				s.done = true
				return StreamChunk{}, io.EOF
			}
		}
		return c, nil
	case <-ctx.Done():
		s.done = true
		return StreamChunk{}, ctx.Err()
	}
}
