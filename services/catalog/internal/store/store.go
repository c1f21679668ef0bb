package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/storyhub/services/catalog/internal/filter"
)

var ErrNotFound = errors.New("story not found")

// Outbox event subjects, published to the CATALOG_EVENTS stream.
const (
	EventStoryUpserted = "catalog.story.upserted"
	EventStoryDeleted  = "catalog.story.deleted"
)

// Story is the catalog representation of a story.
type Story struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	Description      string    `json:"description"`
	Genre            string    `json:"genre"`
	Thumbnail        string    `json:"thumbnail"`
	Status           string    `json:"status"`
	Type             string    `json:"type"`
	Views            int64     `json:"views"`
	NumberOfChapters int       `json:"numberOfChapters"`
	LatestChapter    int       `json:"latestChapter"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Field exposes story attributes by filter field name, for in-process matching.
func (s Story) Field(name string) (any, bool) {
	switch name {
	case filter.FieldGenre:
		return s.Genre, true
	case filter.FieldStatus:
		return s.Status, true
	case filter.FieldType:
		return s.Type, true
	case filter.FieldTitle:
		return s.Title, true
	case filter.FieldAuthor:
		return s.Author, true
	case filter.FieldDescription:
		return s.Description, true
	case filter.FieldCreatedAt:
		return s.CreatedAt, true
	case filter.FieldViews:
		return s.Views, true
	}
	return nil, false
}

// StoryInput carries the writable attributes of a story.
type StoryInput struct {
	Title            string `json:"title" validate:"required,max=300"`
	Author           string `json:"author" validate:"max=200"`
	Description      string `json:"description" validate:"max=10000"`
	Genre            string `json:"genre" validate:"required,max=100"`
	Thumbnail        string `json:"thumbnail" validate:"omitempty,url"`
	Status           string `json:"status" validate:"required,oneof=ongoing completed"`
	Type             string `json:"type" validate:"required,oneof=normal vip"`
	NumberOfChapters int    `json:"numberOfChapters" validate:"gte=0"`
	LatestChapter    int    `json:"latestChapter" validate:"gte=0"`
}

type SortOrder string

const (
	SortPopular      SortOrder = "popular"
	SortLatest       SortOrder = "latest"
	SortOldest       SortOrder = "oldest"
	SortAlphabetical SortOrder = "alphabetical"
)

// ParseSort maps a sort parameter to a SortOrder; unknown values sort by latest.
func ParseSort(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortPopular:
		return SortPopular
	case SortOldest:
		return SortOldest
	case SortAlphabetical:
		return SortAlphabetical
	}
	return SortLatest
}

type SearchRequest struct {
	Query  filter.Query
	Sort   SortOrder
	Offset int
	Limit  int
}

type SearchResult struct {
	Stories []Story
	Total   int64
}

// FilterOptions lists the distinct values present for each exact-match filter.
type FilterOptions struct {
	Genres   []string `json:"genres"`
	Statuses []string `json:"statuses"`
	Types    []string `json:"types"`
}

// StoryStore defines all persistence operations for the catalog service.
type StoryStore interface {
	EnsureSchema(ctx context.Context) error

	// Reads
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
	Options(ctx context.Context) (FilterOptions, error)
	// View returns the story and counts one view of it.
	View(ctx context.Context, id uuid.UUID) (Story, error)

	// Writes
	Create(ctx context.Context, in StoryInput) (Story, error)
	Update(ctx context.Context, id uuid.UUID, in StoryInput) (Story, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
