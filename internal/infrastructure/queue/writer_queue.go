package queue

import (
	"context"
	"fmt"
	"io"
	"sync"

	"feedqueue/internal/domain/repository"
)

const documentSeparator = "---\n"

type writerQueue struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterQueue writes each message to w as its own document.
func NewWriterQueue(w io.Writer) repository.QueueRepository {
	return &writerQueue{w: w}
}

func (q *writerQueue) Put(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := io.WriteString(q.w, documentSeparator); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if _, err := q.w.Write(body); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if len(body) == 0 || body[len(body)-1] != '\n' {
		if _, err := io.WriteString(q.w, "\n"); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}
	return nil
}

func (q *writerQueue) Close() error {
	return nil
}
