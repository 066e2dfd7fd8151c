package llm

import (
	"context"
	"io"
	"testing"
)

func TestChanStream_EmitThenClose(t *testing.T) {
	s := newChanStream()
	s.emit(StreamChunk{Kind: ChunkContent, Content: "a"})
	s.emit(StreamChunk{Kind: ChunkContent, Content: "b"})
	s.close()

	ctx := context.Background()
	var got []string
	for {
		c, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, c.Content)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestChanStream_FailSurfacesError(t *testing.T) {
	s := newChanStream()
	s.emit(StreamChunk{Kind: ChunkContent, Content: "a"})
	boom := io.ErrUnexpectedEOF
	s.fail(boom)

	ctx := context.Background()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("expected the buffered chunk before the error, got %v", err)
	}
	if _, err := s.Next(ctx); err != boom {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestChanStream_ContextCancellationUnblocksNext(t *testing.T) {
	s := newChanStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); err == nil {
		t.Fatal("expected a cancelled context to unblock Next with an error")
	}
}
