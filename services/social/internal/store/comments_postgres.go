package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/storyhub/internal/platform/db"
)

var commentSchema = []string{
	`CREATE TABLE IF NOT EXISTS comments (
	id         uuid PRIMARY KEY,
	story_id   uuid NOT NULL,
	chapter_id int CHECK (chapter_id > 0),
	user_id    text NOT NULL,
	parent_id  uuid REFERENCES comments (id),
	body       text NOT NULL,
	likes      int NOT NULL DEFAULT 0 CHECK (likes >= 0),
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz,
	deleted_at timestamptz
)`,
	`CREATE INDEX IF NOT EXISTS comments_story_roots_idx ON comments (story_id, created_at DESC, id DESC) WHERE parent_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS comments_parent_idx ON comments (parent_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS comment_likes (
	comment_id uuid NOT NULL REFERENCES comments (id),
	user_id    text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (comment_id, user_id)
)`,
}

const commentColumns = `id::text, story_id::text, chapter_id, user_id, parent_id::text, body, likes, created_at, updated_at, deleted_at`

// PostgresCommentStore persists comments in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

func (s *PostgresCommentStore) EnsureSchema(ctx context.Context) error {
	return db.ApplySchema(ctx, s.pool, commentSchema...)
}

func (s *PostgresCommentStore) Create(ctx context.Context, c Comment) (Comment, error) {
	if c.ParentID != nil {
		var ok bool
		err := s.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM comments
	WHERE id = $1 AND story_id = $2 AND parent_id IS NULL AND deleted_at IS NULL
)`, *c.ParentID, c.StoryID).Scan(&ok)
		if err != nil {
			return Comment{}, err
		}
		if !ok {
			return Comment{}, ErrInvalidParent
		}
	}

	row := s.pool.QueryRow(ctx, `
INSERT INTO comments (id, story_id, chapter_id, user_id, parent_id, body)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+commentColumns,
		uuid.New(), c.StoryID, c.ChapterID, c.UserID, c.ParentID, c.Body)
	return scanComment(row)
}

func (s *PostgresCommentStore) ListThread(ctx context.Context, q ThreadQuery) (ThreadPage, error) {
	filter := `story_id = $1 AND parent_id IS NULL`
	args := []any{q.StoryID}
	if q.ChapterID != nil {
		filter += ` AND chapter_id = $2`
		args = append(args, *q.ChapterID)
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE `+filter, args...).Scan(&total); err != nil {
		return ThreadPage{}, fmt.Errorf("count comments: %w", err)
	}
	if total == 0 {
		return ThreadPage{Nodes: []CommentTreeNode{}}, nil
	}

	n := len(args)
	roots, err := s.scanComments(ctx, fmt.Sprintf(`
SELECT %s FROM comments
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, commentColumns, filter, n+1, n+2), append(args, q.Limit, q.Offset)...)
	if err != nil {
		return ThreadPage{}, err
	}
	if len(roots) == 0 {
		return ThreadPage{Nodes: []CommentTreeNode{}, Total: total}, nil
	}

	rootIDs := make([]string, len(roots))
	for i, r := range roots {
		rootIDs[i] = r.ID
	}
	replies, err := s.scanComments(ctx, `
SELECT `+commentColumns+` FROM comments
WHERE parent_id = ANY($1::uuid[])
ORDER BY created_at ASC, id ASC`, rootIDs)
	if err != nil {
		return ThreadPage{}, err
	}

	replyMap := make(map[string][]Comment)
	for _, r := range replies {
		if r.ParentID != nil {
			replyMap[*r.ParentID] = append(replyMap[*r.ParentID], r)
		}
	}

	nodes := make([]CommentTreeNode, len(roots))
	for i, r := range roots {
		nodes[i] = CommentTreeNode{Comment: r, Replies: replyMap[r.ID]}
		if nodes[i].Replies == nil {
			nodes[i].Replies = []Comment{}
		}
	}
	return ThreadPage{Nodes: nodes, Total: total}, nil
}

func (s *PostgresCommentStore) UpdateBody(ctx context.Context, commentID, userID, body string) error {
	const q = `UPDATE comments SET body = $1, updated_at = now()
	           WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, q, body, commentID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFoundOrForbidden
	}
	return nil
}

func (s *PostgresCommentStore) SoftDelete(ctx context.Context, commentID, userID string, asAdmin bool) error {
	const q = `UPDATE comments SET body = $3, deleted_at = now()
	           WHERE id = $1 AND ($2 = '' OR user_id = $2) AND deleted_at IS NULL`
	owner := userID
	if asAdmin {
		owner = ""
	}
	tag, err := s.pool.Exec(ctx, q, commentID, owner, DeletedBody)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFoundOrForbidden
	}
	return nil
}

func (s *PostgresCommentStore) DeleteByStory(ctx context.Context, storyID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE comments SET body = $2, deleted_at = now() WHERE story_id = $1 AND deleted_at IS NULL`,
		storyID, DeletedBody)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresCommentStore) Like(ctx context.Context, commentID, userID string) error {
	return s.toggleLike(ctx, commentID, func(tx pgx.Tx) (int, error) {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1 AND deleted_at IS NULL)`, commentID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrNotFoundOrForbidden
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			commentID, userID)
		return int(tag.RowsAffected()), err
	})
}

func (s *PostgresCommentStore) Unlike(ctx context.Context, commentID, userID string) error {
	return s.toggleLike(ctx, commentID, func(tx pgx.Tx) (int, error) {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrNotFoundOrForbidden
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
		return -int(tag.RowsAffected()), err
	})
}

// toggleLike runs change in a transaction and applies the like delta it
// reports to the comment's counter.
func (s *PostgresCommentStore) toggleLike(ctx context.Context, commentID string, change func(pgx.Tx) (int, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	delta, err := change(tx)
	if err != nil {
		return err
	}
	if delta != 0 {
		if _, err := tx.Exec(ctx, `UPDATE comments SET likes = likes + $1 WHERE id = $2`, delta, commentID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresCommentStore) scanComments(ctx context.Context, q string, args ...any) ([]Comment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.StoryID, &c.ChapterID, &c.UserID, &c.ParentID,
		&c.Body, &c.Likes, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFoundOrForbidden
	}
	return c, err
}
