package store

import (
	"context"
	"sync"
	"time"
)

type progressKey struct {
	user, story string
}

// InMemoryProgressStore is a development-only in-memory implementation.
// FailWith makes every call return the given error, for exercising outage paths.
type InMemoryProgressStore struct {
	mu       sync.RWMutex
	records  map[progressKey]ProgressRecord
	FailWith error
}

func NewInMemoryProgressStore() *InMemoryProgressStore {
	return &InMemoryProgressStore{records: make(map[progressKey]ProgressRecord)}
}

func (s *InMemoryProgressStore) EnsureSchema(context.Context) error {
	return s.FailWith
}

func (s *InMemoryProgressStore) LoadAll(_ context.Context) ([]ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	out := make([]ProgressRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *InMemoryProgressStore) UpsertMany(_ context.Context, recs []ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	now := time.Now().UTC()
	for _, rec := range recs {
		k := progressKey{user: rec.UserID.String(), story: rec.StoryID.String()}
		cur, ok := s.records[k]
		if !ok {
			rec.CreatedAt = now
			rec.UpdatedAt = now
			s.records[k] = rec
			continue
		}
		if cur.ChapterID != rec.ChapterID {
			cur.ChapterID = rec.ChapterID
			cur.UpdatedAt = now
		}
		s.records[k] = cur
	}
	return nil
}

// Len returns the number of stored records.
func (s *InMemoryProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
