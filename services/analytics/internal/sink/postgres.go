package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/storyhub/internal/platform/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analytics_events (
	event_id    text PRIMARY KEY,
	subject     text NOT NULL,
	event_name  text NOT NULL,
	user_id     text NOT NULL,
	story_id    text,
	occurred_at timestamptz NOT NULL,
	properties  jsonb NOT NULL DEFAULT '{}'::jsonb,
	received_at timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_events_subject_time ON analytics_events (subject, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS story_stats (
	story_id         text PRIMARY KEY,
	views            bigint NOT NULL DEFAULT 0,
	comments         bigint NOT NULL DEFAULT 0,
	progress_updates bigint NOT NULL DEFAULT 0,
	updated_at       timestamptz NOT NULL DEFAULT now()
)`,
}

// The counters move only when the event row is new, which keeps
// redelivered batches from double counting.
const insertEventSQL = `
WITH ins AS (
	INSERT INTO analytics_events (event_id, subject, event_name, user_id, story_id, occurred_at, properties)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	ON CONFLICT (event_id) DO NOTHING
	RETURNING story_id
), stats AS (
	INSERT INTO story_stats AS s (story_id, views, comments, progress_updates)
	SELECT story_id, $8, $9, $10 FROM ins WHERE story_id IS NOT NULL
	ON CONFLICT (story_id) DO UPDATE SET
		views            = s.views + EXCLUDED.views,
		comments         = s.comments + EXCLUDED.comments,
		progress_updates = s.progress_updates + EXCLUDED.progress_updates,
		updated_at       = now()
)
SELECT count(*) FROM ins`

type PostgresSink struct {
	db *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: pool}
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	return db.ApplySchema(ctx, s.db, schema...)
}

// Write stores records in one transaction and returns how many were new.
func (s *PostgresSink) Write(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		props, err := json.Marshal(r.Properties)
		if err != nil {
			return 0, fmt.Errorf("marshal properties of %s: %w", r.EventID, err)
		}
		d := deltaFor(r.Subject)
		batch.Queue(insertEventSQL,
			r.EventID, r.Subject, r.EventName, r.UserID, r.StoryID, r.OccurredAt, props,
			d.views, d.comments, d.progress)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	written := 0
	for range records {
		var n int
		if err := br.QueryRow().Scan(&n); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("insert event: %w", err)
		}
		written += n
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("batch close: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("db commit: %w", err)
	}
	return written, nil
}

func (s *PostgresSink) TopStories(ctx context.Context, by Ranking, limit int) ([]StoryStats, error) {
	order := "views"
	if by == ByComments {
		order = "comments"
	}
	rows, err := s.db.Query(ctx,
		`SELECT story_id, views, comments, progress_updates, updated_at
		   FROM story_stats
		  ORDER BY `+order+` DESC, story_id
		  LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[StoryStats])
}
