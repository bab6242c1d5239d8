package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initHistorySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initHistorySchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS task_history (
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ NULL,
			ended_at TIMESTAMPTZ NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (name, submitted_at)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_history_recorded ON task_history (recorded_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init history schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO task_history (
			name, status, error, submitted_at, started_at, ended_at
		) VALUES (
			$1,$2,$3,$4,$5,$6
		)
		ON CONFLICT (name, submitted_at) DO UPDATE SET
			status=EXCLUDED.status,
			error=EXCLUDED.error,
			started_at=EXCLUDED.started_at,
			ended_at=EXCLUDED.ended_at,
			recorded_at=now()`,
		rec.Name,
		rec.Status,
		rec.Error,
		rec.SubmittedAt,
		rec.StartedAt,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert task history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT name, status, error, submitted_at, started_at, ended_at
		   FROM task_history ORDER BY recorded_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec             Record
			startedNullable *time.Time
			endedNullable   *time.Time
		)
		if err := rows.Scan(
			&rec.Name,
			&rec.Status,
			&rec.Error,
			&rec.SubmittedAt,
			&startedNullable,
			&endedNullable,
		); err != nil {
			return nil, fmt.Errorf("scan task history row: %w", err)
		}
		rec.StartedAt = startedNullable
		rec.EndedAt = endedNullable
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task history rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
