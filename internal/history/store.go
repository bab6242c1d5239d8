// Package history is a write-only audit archive of supervised tasks. The
// supervisor never reads it back to rebuild state; it exists for operators.
package history

import (
	"context"
	"strings"
	"time"
)

type Record struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

type Store interface {
	SaveRecord(ctx context.Context, rec Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// NewStore returns a Postgres-backed store, or nil when no database URL is
// configured. A nil store disables archiving.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
