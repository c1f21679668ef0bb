package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const chapterColumns = `id, story_id, number, title, content, created_at, updated_at`

const recountChaptersSQL = `
UPDATE stories SET
	number_of_chapters = (SELECT count(*) FROM chapters WHERE story_id = $1),
	latest_chapter     = COALESCE((SELECT max(number) FROM chapters WHERE story_id = $1), 0),
	updated_at         = now()
WHERE id = $1`

func (s *PostgresStoryStore) ListChapters(ctx context.Context, storyID uuid.UUID) ([]Chapter, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stories WHERE id = $1)`, storyID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("story exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(ctx, `
SELECT id, story_id, number, title, '' AS content, created_at, updated_at
FROM chapters WHERE story_id = $1
ORDER BY number`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	chapters, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Chapter])
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

func (s *PostgresStoryStore) GetChapter(ctx context.Context, id uuid.UUID) (Chapter, error) {
	rows, err := s.db.Query(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = $1`, id)
	if err != nil {
		return Chapter{}, fmt.Errorf("get chapter: %w", err)
	}
	ch, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Chapter])
	if errors.Is(err, pgx.ErrNoRows) {
		return Chapter{}, ErrChapterNotFound
	}
	return ch, err
}

func (s *PostgresStoryStore) CreateChapter(ctx context.Context, storyID uuid.UUID, in ChapterInput) (Chapter, error) {
	ch, err := withOutbox(ctx, s.db, EventChapterUpserted, ErrChapterNotFound, func(tx pgx.Tx) (Chapter, error) {
		rows, err := tx.Query(ctx, `
INSERT INTO chapters (id, story_id, number, title, content)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+chapterColumns, uuid.New(), storyID, in.Number, in.Title, in.Content)
		if err != nil {
			return Chapter{}, err
		}
		ch, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Chapter])
		if err != nil {
			return Chapter{}, err
		}
		_, err = tx.Exec(ctx, recountChaptersSQL, storyID)
		return ch, err
	}, chapterEvent)
	return ch, chapterWriteError(err)
}

func (s *PostgresStoryStore) UpdateChapter(ctx context.Context, id uuid.UUID, in ChapterInput) (Chapter, error) {
	ch, err := withOutbox(ctx, s.db, EventChapterUpserted, ErrChapterNotFound, func(tx pgx.Tx) (Chapter, error) {
		rows, err := tx.Query(ctx, `
UPDATE chapters SET number=$2, title=$3, content=$4, updated_at=now()
WHERE id=$1
RETURNING `+chapterColumns, id, in.Number, in.Title, in.Content)
		if err != nil {
			return Chapter{}, err
		}
		ch, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Chapter])
		if err != nil {
			return Chapter{}, err
		}
		_, err = tx.Exec(ctx, recountChaptersSQL, ch.StoryID)
		return ch, err
	}, chapterEvent)
	return ch, chapterWriteError(err)
}

func (s *PostgresStoryStore) DeleteChapter(ctx context.Context, id uuid.UUID) error {
	_, err := withOutbox(ctx, s.db, EventChapterDeleted, ErrChapterNotFound, func(tx pgx.Tx) (Chapter, error) {
		ch := Chapter{ID: id}
		if err := tx.QueryRow(ctx, `DELETE FROM chapters WHERE id=$1 RETURNING story_id, number`, id).
			Scan(&ch.StoryID, &ch.Number); err != nil {
			return Chapter{}, err
		}
		_, err := tx.Exec(ctx, recountChaptersSQL, ch.StoryID)
		return ch, err
	}, chapterEvent)
	return err
}

// chapterWriteError maps constraint violations to store errors.
func chapterWriteError(err error) error {
	switch pgErrCode(err) {
	case "23505":
		return ErrDuplicateChapter
	case "23503":
		return ErrNotFound
	}
	return err
}
