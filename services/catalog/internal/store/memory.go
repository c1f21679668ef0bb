package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStoryStore is a development-only in-memory implementation.
// It evaluates filter queries directly and does not write an outbox.
type InMemoryStoryStore struct {
	mu       sync.RWMutex
	stories  map[uuid.UUID]Story
	chapters map[uuid.UUID]Chapter
	genres   map[uuid.UUID]Genre
}

func NewInMemoryStoryStore() *InMemoryStoryStore {
	return &InMemoryStoryStore{
		stories:  make(map[uuid.UUID]Story),
		chapters: make(map[uuid.UUID]Chapter),
		genres:   make(map[uuid.UUID]Genre),
	}
}

func (s *InMemoryStoryStore) EnsureSchema(context.Context) error { return nil }

func (s *InMemoryStoryStore) Search(_ context.Context, req SearchRequest) (SearchResult, error) {
	s.mu.RLock()
	matched := make([]Story, 0, len(s.stories))
	for _, st := range s.stories {
		if req.Query.Matches(st.Field) {
			matched = append(matched, st)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return less(req.Sort, matched[i], matched[j]) })

	total := int64(len(matched))
	start := min(max(req.Offset, 0), len(matched))
	end := len(matched)
	if req.Limit > 0 {
		end = min(start+req.Limit, len(matched))
	}
	return SearchResult{Stories: matched[start:end], Total: total}, nil
}

func less(order SortOrder, a, b Story) bool {
	switch order {
	case SortPopular:
		if a.Views != b.Views {
			return a.Views > b.Views
		}
	case SortOldest:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case SortAlphabetical:
		if a.Title != b.Title {
			return a.Title < b.Title
		}
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

func (s *InMemoryStoryStore) Options(context.Context) (FilterOptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genres, statuses, types := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, st := range s.stories {
		genres[st.Genre] = true
		statuses[st.Status] = true
		types[st.Type] = true
	}
	return FilterOptions{Genres: sortedKeys(genres), Statuses: sortedKeys(statuses), Types: sortedKeys(types)}, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *InMemoryStoryStore) View(_ context.Context, id uuid.UUID) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stories[id]
	if !ok {
		return Story{}, ErrNotFound
	}
	st.Views++
	s.stories[id] = st
	return st, nil
}

func (s *InMemoryStoryStore) Create(_ context.Context, in StoryInput) (Story, error) {
	now := time.Now().UTC()
	st := applyInput(Story{ID: uuid.New(), CreatedAt: now}, in, now)

	s.mu.Lock()
	s.stories[st.ID] = st
	s.mu.Unlock()
	return st, nil
}

func (s *InMemoryStoryStore) Update(_ context.Context, id uuid.UUID, in StoryInput) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stories[id]
	if !ok {
		return Story{}, ErrNotFound
	}
	st := applyInput(cur, in, time.Now().UTC())
	s.stories[id] = st
	return st, nil
}

func (s *InMemoryStoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		return ErrNotFound
	}
	delete(s.stories, id)
	for cid, ch := range s.chapters {
		if ch.StoryID == id {
			delete(s.chapters, cid)
		}
	}
	return nil
}

// Put stores st as-is, replacing any story with the same ID. Used for seeding.
func (s *InMemoryStoryStore) Put(st Story) {
	s.mu.Lock()
	s.stories[st.ID] = st
	s.mu.Unlock()
}

func applyInput(st Story, in StoryInput, now time.Time) Story {
	st.Title = in.Title
	st.Author = in.Author
	st.Description = in.Description
	st.Genre = in.Genre
	st.Thumbnail = in.Thumbnail
	st.Status = in.Status
	st.Type = in.Type
	st.NumberOfChapters = in.NumberOfChapters
	st.LatestChapter = in.LatestChapter
	st.UpdatedAt = now
	return st
}
