package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/storyhub/internal/platform/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stories (
	id                 uuid PRIMARY KEY,
	title              text NOT NULL,
	author             text NOT NULL DEFAULT '',
	description        text NOT NULL DEFAULT '',
	genre              text NOT NULL DEFAULT '',
	thumbnail          text NOT NULL DEFAULT '',
	status             text NOT NULL DEFAULT 'ongoing',
	type               text NOT NULL DEFAULT 'normal',
	views              bigint NOT NULL DEFAULT 0 CHECK (views >= 0),
	number_of_chapters int NOT NULL DEFAULT 0,
	latest_chapter     int NOT NULL DEFAULT 0,
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS stories_created_at_idx ON stories (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS stories_views_idx ON stories (views DESC)`,
	`CREATE INDEX IF NOT EXISTS stories_genre_idx ON stories (genre)`,
	`CREATE TABLE IF NOT EXISTS chapters (
	id         uuid PRIMARY KEY,
	story_id   uuid NOT NULL REFERENCES stories (id) ON DELETE CASCADE,
	number     int NOT NULL CHECK (number >= 1),
	title      text NOT NULL,
	content    text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	UNIQUE (story_id, number)
)`,
	`CREATE TABLE IF NOT EXISTS genres (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS genres_name_lower_idx ON genres (lower(name))`,
	`CREATE TABLE IF NOT EXISTS catalog_outbox (
	id           uuid PRIMARY KEY,
	event_type   text NOT NULL,
	payload      jsonb NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now(),
	published_at timestamptz
)`,
	`CREATE INDEX IF NOT EXISTS catalog_outbox_pending_idx ON catalog_outbox (created_at) WHERE published_at IS NULL`,
}

const storyColumns = `id, title, author, description, genre, thumbnail, status, type, views, number_of_chapters, latest_chapter, created_at, updated_at`

// PostgresStoryStore is the production Postgres-backed implementation.
type PostgresStoryStore struct {
	db *pgxpool.Pool
}

func NewPostgresStoryStore(db *pgxpool.Pool) *PostgresStoryStore {
	return &PostgresStoryStore{db: db}
}

func (s *PostgresStoryStore) EnsureSchema(ctx context.Context) error {
	return db.ApplySchema(ctx, s.db, schema...)
}

// ── Reads ──────────────────────────────────────────────────────────────────

func (s *PostgresStoryStore) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	var b sqlBuilder
	where, err := b.where(req.Query)
	if err != nil {
		return SearchResult{}, err
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM stories WHERE `+where, b.args...).Scan(&total); err != nil {
		return SearchResult{}, fmt.Errorf("count stories: %w", err)
	}
	if total == 0 {
		return SearchResult{Stories: []Story{}}, nil
	}

	limit := b.arg(req.Limit)
	offset := b.arg(req.Offset)
	rows, err := s.db.Query(ctx, `SELECT `+storyColumns+` FROM stories WHERE `+where+
		` ORDER BY `+orderBy(req.Sort)+` LIMIT `+limit+` OFFSET `+offset, b.args...)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search stories: %w", err)
	}
	defer rows.Close()

	stories, err := scanStories(rows)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Stories: stories, Total: total}, nil
}

func (s *PostgresStoryStore) Options(ctx context.Context) (FilterOptions, error) {
	batch := &pgx.Batch{}
	for _, col := range []string{"genre", "status", "type"} {
		batch.Queue(`SELECT DISTINCT ` + col + ` FROM stories WHERE ` + col + ` <> '' ORDER BY 1`)
	}
	br := s.db.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var out FilterOptions
	for _, dst := range []*[]string{&out.Genres, &out.Statuses, &out.Types} {
		rows, err := br.Query()
		if err != nil {
			return FilterOptions{}, fmt.Errorf("filter options: %w", err)
		}
		vals, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return FilterOptions{}, fmt.Errorf("filter options: %w", err)
		}
		*dst = vals
	}
	return out, nil
}

func (s *PostgresStoryStore) View(ctx context.Context, id uuid.UUID) (Story, error) {
	row := s.db.QueryRow(ctx, `
UPDATE stories SET views = views + 1
WHERE id = $1
RETURNING `+storyColumns, id)
	st, err := scanStory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Story{}, ErrNotFound
	}
	return st, err
}

// ── Writes ─────────────────────────────────────────────────────────────────

func (s *PostgresStoryStore) Create(ctx context.Context, in StoryInput) (Story, error) {
	now := time.Now().UTC()
	return s.inTx(ctx, EventStoryUpserted, func(tx pgx.Tx) (Story, error) {
		return scanStory(tx.QueryRow(ctx, `
INSERT INTO stories (id, title, author, description, genre, thumbnail, status, type, number_of_chapters, latest_chapter, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING `+storyColumns,
			uuid.New(), in.Title, in.Author, in.Description, in.Genre, in.Thumbnail,
			in.Status, in.Type, in.NumberOfChapters, in.LatestChapter, now))
	})
}

func (s *PostgresStoryStore) Update(ctx context.Context, id uuid.UUID, in StoryInput) (Story, error) {
	return s.inTx(ctx, EventStoryUpserted, func(tx pgx.Tx) (Story, error) {
		return scanStory(tx.QueryRow(ctx, `
UPDATE stories
SET title=$2, author=$3, description=$4, genre=$5, thumbnail=$6, status=$7, type=$8,
    number_of_chapters=$9, latest_chapter=$10, updated_at=now()
WHERE id=$1
RETURNING `+storyColumns,
			id, in.Title, in.Author, in.Description, in.Genre, in.Thumbnail,
			in.Status, in.Type, in.NumberOfChapters, in.LatestChapter))
	})
}

func (s *PostgresStoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.inTx(ctx, EventStoryDeleted, func(tx pgx.Tx) (Story, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM stories WHERE id=$1`, id)
		if err != nil {
			return Story{}, err
		}
		if tag.RowsAffected() == 0 {
			return Story{}, pgx.ErrNoRows
		}
		return Story{ID: id}, nil
	})
	return err
}

// inTx runs a story write and records its outbox event in the same transaction.
func (s *PostgresStoryStore) inTx(ctx context.Context, eventType string, write func(pgx.Tx) (Story, error)) (Story, error) {
	return withOutbox(ctx, s.db, eventType, ErrNotFound, write, storyEvent)
}

// withOutbox runs write and inserts event(result) into catalog_outbox in the
// same transaction. pgx.ErrNoRows from write is reported as notFound.
func withOutbox[T any](ctx context.Context, pool *pgxpool.Pool, eventType string, notFound error,
	write func(pgx.Tx) (T, error), event func(T) map[string]any) (T, error) {
	var zero T
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	v, err := write(tx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, notFound
		}
		return zero, err
	}
	if err := insertOutboxEvent(ctx, tx, eventType, event(v)); err != nil {
		return zero, fmt.Errorf("db outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("db commit: %w", err)
	}
	return v, nil
}

// ── helpers ────────────────────────────────────────────────────────────────

func storyEvent(st Story) map[string]any {
	ev := map[string]any{"story_id": st.ID.String()}
	if st.Genre != "" {
		ev["genre"] = st.Genre
		ev["status"] = st.Status
		ev["type"] = st.Type
	}
	return ev
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO catalog_outbox (id, event_type, payload) VALUES ($1,$2,$3)`,
		uuid.New(), eventType, b,
	)
	return err
}

func scanStory(row pgx.Row) (Story, error) {
	var st Story
	err := row.Scan(&st.ID, &st.Title, &st.Author, &st.Description, &st.Genre, &st.Thumbnail,
		&st.Status, &st.Type, &st.Views, &st.NumberOfChapters, &st.LatestChapter, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func scanStories(rows pgx.Rows) ([]Story, error) {
	out := []Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
