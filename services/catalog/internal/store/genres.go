package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrGenreNotFound  = errors.New("genre not found")
	ErrDuplicateGenre = errors.New("genre already exists")
)

const (
	EventGenreUpserted = "catalog.genre.upserted"
	EventGenreDeleted  = "catalog.genre.deleted"
)

// Genre is a curated genre name. Stories reference genres by name.
type Genre struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type GenreInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// GenreStore persists the genre list. Names are unique case-insensitively.
// Renaming a genre renames it on every story that carries the old name;
// deleting a genre leaves stories untouched.
type GenreStore interface {
	ListGenres(ctx context.Context) ([]Genre, error)
	GetGenre(ctx context.Context, id uuid.UUID) (Genre, error)
	CreateGenre(ctx context.Context, in GenreInput) (Genre, error)
	RenameGenre(ctx context.Context, id uuid.UUID, in GenreInput) (Genre, error)
	DeleteGenre(ctx context.Context, id uuid.UUID) error
}

// Catalog is the full persistence surface of the catalog service.
type Catalog interface {
	StoryStore
	ChapterStore
	GenreStore
}

func genreEvent(g Genre) map[string]any {
	return map[string]any{"genre_id": g.ID.String(), "name": g.Name}
}
