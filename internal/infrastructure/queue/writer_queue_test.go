package queue

import (
	"bytes"
	"context"
	"testing"
)

func TestWriterQueue_Put(t *testing.T) {
	var buf bytes.Buffer
	q := NewWriterQueue(&buf)
	ctx := context.Background()

	if err := q.Put(ctx, []byte("a: 1\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Put(ctx, []byte(`{"b":2}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "---\na: 1\n---\n{\"b\":2}\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
	if err := q.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
