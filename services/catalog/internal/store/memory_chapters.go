package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

func (s *InMemoryStoryStore) ListChapters(_ context.Context, storyID uuid.UUID) ([]Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.stories[storyID]; !ok {
		return nil, ErrNotFound
	}
	out := []Chapter{}
	for _, ch := range s.chapters {
		if ch.StoryID == storyID {
			ch.Content = ""
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *InMemoryStoryStore) GetChapter(_ context.Context, id uuid.UUID) (Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chapters[id]
	if !ok {
		return Chapter{}, ErrChapterNotFound
	}
	return ch, nil
}

func (s *InMemoryStoryStore) CreateChapter(_ context.Context, storyID uuid.UUID, in ChapterInput) (Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[storyID]; !ok {
		return Chapter{}, ErrNotFound
	}
	if s.numberTaken(storyID, in.Number, uuid.Nil) {
		return Chapter{}, ErrDuplicateChapter
	}
	now := time.Now().UTC()
	ch := Chapter{
		ID:        uuid.New(),
		StoryID:   storyID,
		Number:    in.Number,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chapters[ch.ID] = ch
	s.recount(storyID, now)
	return ch, nil
}

func (s *InMemoryStoryStore) UpdateChapter(_ context.Context, id uuid.UUID, in ChapterInput) (Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[id]
	if !ok {
		return Chapter{}, ErrChapterNotFound
	}
	if s.numberTaken(ch.StoryID, in.Number, id) {
		return Chapter{}, ErrDuplicateChapter
	}
	now := time.Now().UTC()
	ch.Number, ch.Title, ch.Content, ch.UpdatedAt = in.Number, in.Title, in.Content, now
	s.chapters[id] = ch
	s.recount(ch.StoryID, now)
	return ch, nil
}

func (s *InMemoryStoryStore) DeleteChapter(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[id]
	if !ok {
		return ErrChapterNotFound
	}
	delete(s.chapters, id)
	s.recount(ch.StoryID, time.Now().UTC())
	return nil
}

// numberTaken reports whether another chapter of storyID already uses number.
// Caller holds s.mu.
func (s *InMemoryStoryStore) numberTaken(storyID uuid.UUID, number int, except uuid.UUID) bool {
	for id, ch := range s.chapters {
		if id != except && ch.StoryID == storyID && ch.Number == number {
			return true
		}
	}
	return false
}

// recount refreshes the story's chapter counters. Caller holds s.mu.
func (s *InMemoryStoryStore) recount(storyID uuid.UUID, now time.Time) {
	st, ok := s.stories[storyID]
	if !ok {
		return
	}
	st.NumberOfChapters, st.LatestChapter = 0, 0
	for _, ch := range s.chapters {
		if ch.StoryID == storyID {
			st.NumberOfChapters++
			st.LatestChapter = max(st.LatestChapter, ch.Number)
		}
	}
	st.UpdatedAt = now
	s.stories[storyID] = st
}

// ── Genres ─────────────────────────────────────────────────────────────────

func (s *InMemoryStoryStore) ListGenres(context.Context) ([]Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *InMemoryStoryStore) GetGenre(_ context.Context, id uuid.UUID) (Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.genres[id]
	if !ok {
		return Genre{}, ErrGenreNotFound
	}
	return g, nil
}

func (s *InMemoryStoryStore) CreateGenre(_ context.Context, in GenreInput) (Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genreTaken(in.Name, uuid.Nil) {
		return Genre{}, ErrDuplicateGenre
	}
	g := Genre{ID: uuid.New(), Name: in.Name, CreatedAt: time.Now().UTC()}
	s.genres[g.ID] = g
	return g, nil
}

func (s *InMemoryStoryStore) RenameGenre(_ context.Context, id uuid.UUID, in GenreInput) (Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.genres[id]
	if !ok {
		return Genre{}, ErrGenreNotFound
	}
	if s.genreTaken(in.Name, id) {
		return Genre{}, ErrDuplicateGenre
	}
	now := time.Now().UTC()
	for sid, st := range s.stories {
		if st.Genre == g.Name {
			st.Genre, st.UpdatedAt = in.Name, now
			s.stories[sid] = st
		}
	}
	g.Name = in.Name
	s.genres[id] = g
	return g, nil
}

func (s *InMemoryStoryStore) DeleteGenre(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.genres[id]; !ok {
		return ErrGenreNotFound
	}
	delete(s.genres, id)
	return nil
}

// Caller holds s.mu.
func (s *InMemoryStoryStore) genreTaken(name string, except uuid.UUID) bool {
	for id, g := range s.genres {
		if id != except && strings.EqualFold(g.Name, name) {
			return true
		}
	}
	return false
}
