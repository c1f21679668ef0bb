package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFoundOrForbidden = errors.New("comment not found or not owned by user")
	ErrInvalidParent       = errors.New("parent must be a live root comment on the same story")
)

// DeletedBody replaces the body of a soft-deleted comment.
const DeletedBody = "[deleted]"

// Comment represents a single comment row.
type Comment struct {
	ID        string     `json:"id"`
	StoryID   string     `json:"storyId"`
	ChapterID *int       `json:"chapterId,omitempty"`
	UserID    string     `json:"userId"`
	ParentID  *string    `json:"parentId,omitempty"`
	Body      string     `json:"body"`
	Likes     int        `json:"likes"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// CommentTreeNode is a root comment with its direct replies.
type CommentTreeNode struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

// ThreadQuery selects one page of root comments on a story, optionally
// narrowed to a chapter.
type ThreadQuery struct {
	StoryID   string
	ChapterID *int
	Offset    int
	Limit     int
}

type ThreadPage struct {
	Nodes []CommentTreeNode
	Total int64 // root comments matching the query
}

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, c Comment) (Comment, error)
	// ListThread returns roots newest first, each with replies oldest first.
	ListThread(ctx context.Context, q ThreadQuery) (ThreadPage, error)
	UpdateBody(ctx context.Context, commentID, userID, body string) error
	// SoftDelete removes a comment written by userID, or any comment when asAdmin.
	SoftDelete(ctx context.Context, commentID, userID string, asAdmin bool) error
	// DeleteByStory soft-deletes every live comment on a story.
	DeleteByStory(ctx context.Context, storyID string) (int64, error)
	// Like and Unlike are idempotent per (comment, user).
	Like(ctx context.Context, commentID, userID string) error
	Unlike(ctx context.Context, commentID, userID string) error
}
