package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestProgressStoreInterface(t *testing.T) {
	var _ ProgressStore = (*InMemoryProgressStore)(nil)
	var _ ProgressStore = (*PostgresProgressStore)(nil)
}

func TestInMemoryProgressStore_UpsertIsKeyedByPair(t *testing.T) {
	s := NewInMemoryProgressStore()
	ctx := context.Background()
	user, story := uuid.New(), uuid.New()

	if err := s.UpsertMany(ctx, []ProgressRecord{{UserID: user, StoryID: story, ChapterID: 2}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertMany(ctx, []ProgressRecord{{UserID: user, StoryID: story, ChapterID: 7}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected one record per pair, got %d", s.Len())
	}

	recs, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recs[0].ChapterID != 7 {
		t.Fatalf("expected chapter 7, got %d", recs[0].ChapterID)
	}
	if recs[0].CreatedAt.IsZero() || recs[0].UpdatedAt.Before(recs[0].CreatedAt) {
		t.Fatalf("unexpected timestamps: %+v", recs[0])
	}
}

func TestInMemoryProgressStore_Failure(t *testing.T) {
	s := NewInMemoryProgressStore()
	s.FailWith = errors.New("connection refused")

	if _, err := s.LoadAll(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if err := s.UpsertMany(context.Background(), []ProgressRecord{{UserID: uuid.New(), StoryID: uuid.New(), ChapterID: 1}}); err == nil {
		t.Fatal("expected upsert error")
	}
	if s.Len() != 0 {
		t.Fatal("failed upsert must not persist anything")
	}
}
