package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/storyhub/internal/platform/db"
)

const schemaReadingProgress = `
CREATE TABLE IF NOT EXISTS reading_progress (
  user_id    uuid        NOT NULL,
  story_id   uuid        NOT NULL,
  chapter_id integer     NOT NULL DEFAULT 1 CHECK (chapter_id > 0),
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (user_id, story_id)
)`

const upsertProgress = `
INSERT INTO reading_progress (user_id, story_id, chapter_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id, story_id)
DO UPDATE SET
  chapter_id = EXCLUDED.chapter_id,
  updated_at = EXCLUDED.updated_at
WHERE reading_progress.chapter_id IS DISTINCT FROM EXCLUDED.chapter_id`

// upsertBatchSize bounds a single pgx batch.
const upsertBatchSize = 500

// PostgresProgressStore is the production Postgres-backed implementation.
type PostgresProgressStore struct {
	db *pgxpool.Pool
}

func NewPostgresProgressStore(db *pgxpool.Pool) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

func (s *PostgresProgressStore) EnsureSchema(ctx context.Context) error {
	return db.ApplySchema(ctx, s.db, schemaReadingProgress)
}

func (s *PostgresProgressStore) LoadAll(ctx context.Context) ([]ProgressRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT user_id, story_id, chapter_id, created_at, updated_at
FROM reading_progress`)
	if err != nil {
		return nil, fmt.Errorf("query reading_progress: %w", err)
	}
	defer rows.Close()

	var out []ProgressRecord
	for rows.Next() {
		var rec ProgressRecord
		if err := rows.Scan(&rec.UserID, &rec.StoryID, &rec.ChapterID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reading_progress: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows reading_progress: %w", err)
	}
	return out, nil
}

// UpsertMany writes recs in batches; an unchanged chapter leaves updated_at alone.
func (s *PostgresProgressStore) UpsertMany(ctx context.Context, recs []ProgressRecord) error {
	now := time.Now().UTC()
	for start := 0; start < len(recs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(recs))

		batch := &pgx.Batch{}
		for _, rec := range recs[start:end] {
			batch.Queue(upsertProgress, rec.UserID, rec.StoryID, rec.ChapterID, now)
		}
		if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert reading_progress batch at %d: %w", start, err)
		}
	}
	return nil
}
