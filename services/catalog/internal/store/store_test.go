package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storyhub/services/catalog/internal/filter"
)

var (
	_ Catalog = (*PostgresStoryStore)(nil)
	_ Catalog = (*InMemoryStoryStore)(nil)
)

func TestWhere_Empty(t *testing.T) {
	var b sqlBuilder
	sql, err := b.where(filter.Query{})
	require.NoError(t, err)
	assert.Equal(t, "TRUE", sql)
	assert.Empty(t, b.args)
}

func TestWhere_StoryScenario(t *testing.T) {
	q := filter.Query{
		filter.FieldGenre: filter.Eq("Manga"),
		filter.KeyOr: filter.Or(
			filter.Query{filter.FieldTitle: filter.Contains("naruto")},
			filter.Query{filter.FieldAuthor: filter.Contains("naruto")},
			filter.Query{filter.FieldDescription: filter.Contains("naruto")},
		),
		filter.FieldViews: filter.Range(int64(1000), nil),
	}

	var b sqlBuilder
	sql, err := b.where(q)
	require.NoError(t, err)

	assert.Equal(t,
		`((title ILIKE $1 ESCAPE '\') OR (author ILIKE $2 ESCAPE '\') OR (description ILIKE $3 ESCAPE '\')) AND genre = $4 AND views >= $5`,
		sql)
	assert.Equal(t, []any{"%naruto%", "%naruto%", "%naruto%", "Manga", int64(1000)}, b.args)
}

func TestWhere_RangeAndMembership(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := filter.Query{
		filter.FieldCreatedAt: filter.Range(start, nil),
		filter.FieldStatus:    filter.In("ongoing", "completed"),
		filter.FieldViews:     filter.Range(int64(5), int64(50)),
	}

	var b sqlBuilder
	sql, err := b.where(q)
	require.NoError(t, err)
	assert.Equal(t, "created_at >= $1 AND status IN ($2, $3) AND views >= $4 AND views <= $5", sql)
	assert.Len(t, b.args, 5)
}

func TestWhere_EscapesLikeWildcards(t *testing.T) {
	var b sqlBuilder
	_, err := b.where(filter.Query{filter.FieldTitle: filter.Contains(`100%_done\`)})
	require.NoError(t, err)
	assert.Equal(t, []any{`%100\%\_done\\%`}, b.args)
}

func TestWhere_RejectsUnknownField(t *testing.T) {
	var b sqlBuilder
	_, err := b.where(filter.Query{"title; DROP TABLE stories": filter.Eq("x")})
	assert.Error(t, err)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "views DESC, id", orderBy(SortPopular))
	assert.Equal(t, "created_at DESC, id", orderBy(SortLatest))
	assert.Equal(t, "created_at ASC, id", orderBy(SortOldest))
	assert.Equal(t, "title ASC, id", orderBy(SortAlphabetical))
	assert.Equal(t, SortLatest, ParseSort("bogus"))
	assert.Equal(t, SortPopular, ParseSort(" Popular "))
}

func seed(s *InMemoryStoryStore) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []Story{
		{Title: "Naruto", Author: "Kishimoto", Genre: "Manga", Status: "completed", Type: "normal", Views: 5000},
		{Title: "Bleach", Author: "Kubo", Genre: "Manga", Status: "completed", Type: "vip", Views: 800},
		{Title: "Arcane Tales", Author: "Someone", Description: "not about naruto", Genre: "Fantasy", Status: "ongoing", Type: "normal", Views: 1200},
	} {
		st.ID = uuid.New()
		st.CreatedAt = base.AddDate(0, 0, i)
		s.Put(st)
	}
}

func TestInMemory_SearchFiltersSortsAndPages(t *testing.T) {
	s := NewInMemoryStoryStore()
	seed(s)
	ctx := context.Background()

	p := filter.Params{Search: "NARUTO", MinViews: ptr(int64(1000))}
	q := filter.NewStoryContext().Apply(filter.Query{}, p)

	res, err := s.Search(ctx, SearchRequest{Query: q, Sort: SortPopular, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Total)
	assert.Equal(t, "Naruto", res.Stories[0].Title)
	assert.Equal(t, "Arcane Tales", res.Stories[1].Title)

	res, err = s.Search(ctx, SearchRequest{Query: filter.Query{}, Sort: SortAlphabetical, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	require.Len(t, res.Stories, 1)
	assert.Equal(t, "Bleach", res.Stories[0].Title)

	res, err = s.Search(ctx, SearchRequest{Query: filter.Query{}, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Empty(t, res.Stories)
}

func TestInMemory_SearchLatestFirstByDefault(t *testing.T) {
	s := NewInMemoryStoryStore()
	seed(s)
	res, err := s.Search(context.Background(), SearchRequest{Query: filter.Query{}, Sort: SortLatest, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "Arcane Tales", res.Stories[0].Title)
}

func TestInMemory_Options(t *testing.T) {
	s := NewInMemoryStoryStore()
	seed(s)
	opts, err := s.Options(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fantasy", "Manga"}, opts.Genres)
	assert.Equal(t, []string{"completed", "ongoing"}, opts.Statuses)
	assert.Equal(t, []string{"normal", "vip"}, opts.Types)
}

func TestInMemory_CRUDAndViews(t *testing.T) {
	s := NewInMemoryStoryStore()
	ctx := context.Background()

	st, err := s.Create(ctx, StoryInput{Title: "One Piece", Genre: "Manga", Status: "ongoing", Type: "normal"})
	require.NoError(t, err)

	viewed, err := s.View(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewed.Views)

	upd, err := s.Update(ctx, st.ID, StoryInput{Title: "One Piece", Genre: "Adventure", Status: "ongoing", Type: "vip"})
	require.NoError(t, err)
	assert.Equal(t, "Adventure", upd.Genre)
	assert.Equal(t, int64(1), upd.Views, "update must keep the view count")

	require.NoError(t, s.Delete(ctx, st.ID))
	assert.ErrorIs(t, s.Delete(ctx, st.ID), ErrNotFound)
	_, err = s.View(ctx, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, st.ID, StoryInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
