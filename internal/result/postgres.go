package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps runs as JSONB rows keyed by run id.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS evaluation_runs (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  winner TEXT NOT NULL DEFAULT '',
  completed_at TIMESTAMP WITH TIME ZONE NOT NULL,
  payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluation_runs_completed_at ON evaluation_runs (completed_at DESC);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Save(ctx context.Context, run *EvaluationRun) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO evaluation_runs (id, task_id, mode, winner, completed_at, payload)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id)
DO UPDATE SET task_id=EXCLUDED.task_id,
  mode=EXCLUDED.mode,
  winner=EXCLUDED.winner,
  completed_at=EXCLUDED.completed_at,
  payload=EXCLUDED.payload`,
		run.ID, run.TaskID, string(run.Mode), run.Winner, run.CompletedAt, payload)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*EvaluationRun, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM evaluation_runs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return DecodeRun(payload)
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]*EvaluationRun, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM evaluation_runs ORDER BY completed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*EvaluationRun
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run, err := DecodeRun(payload)
		if err != nil {
			clog.FromContext(ctx).Warnf("skipping stored run %s: %v", id, err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
