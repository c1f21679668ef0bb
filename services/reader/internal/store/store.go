package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultChapter is the position reported for a reader who never opened a story.
const DefaultChapter = 1

// ProgressRecord is the persisted reading position of one user in one story.
// (UserID, StoryID) is unique.
type ProgressRecord struct {
	UserID    uuid.UUID
	StoryID   uuid.UUID
	ChapterID int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProgressStore defines persistence operations for reading progress.
type ProgressStore interface {
	// EnsureSchema creates the backing table when missing.
	EnsureSchema(ctx context.Context) error
	// LoadAll returns every persisted record.
	LoadAll(ctx context.Context) ([]ProgressRecord, error)
	// UpsertMany inserts or overwrites records keyed by (UserID, StoryID).
	UpsertMany(ctx context.Context, recs []ProgressRecord) error
}
