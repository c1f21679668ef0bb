package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrChapterNotFound  = errors.New("chapter not found")
	ErrDuplicateChapter = errors.New("chapter number already exists for story")
)

const (
	EventChapterUpserted = "catalog.chapter.upserted"
	EventChapterDeleted  = "catalog.chapter.deleted"
)

// Chapter is one text chapter of a story. Number is the reading position
// counted by the reader service; it is unique within a story.
type Chapter struct {
	ID        uuid.UUID `json:"id"`
	StoryID   uuid.UUID `json:"storyId"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ChapterInput struct {
	Number  int    `json:"number" validate:"required,min=1"`
	Title   string `json:"title" validate:"required,max=300"`
	Content string `json:"content" validate:"required,max=200000"`
}

// ChapterStore persists chapters. Every write recounts the owning story's
// numberOfChapters and latestChapter in the same unit of work.
type ChapterStore interface {
	// ListChapters returns the chapters of a story ordered by number, without
	// their content. ErrNotFound when the story does not exist.
	ListChapters(ctx context.Context, storyID uuid.UUID) ([]Chapter, error)
	GetChapter(ctx context.Context, id uuid.UUID) (Chapter, error)
	CreateChapter(ctx context.Context, storyID uuid.UUID, in ChapterInput) (Chapter, error)
	UpdateChapter(ctx context.Context, id uuid.UUID, in ChapterInput) (Chapter, error)
	DeleteChapter(ctx context.Context, id uuid.UUID) error
}

func chapterEvent(ch Chapter) map[string]any {
	return map[string]any{
		"chapter_id": ch.ID.String(),
		"story_id":   ch.StoryID.String(),
		"number":     ch.Number,
	}
}
