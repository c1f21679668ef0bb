package sink

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemorySink is a development-only in-memory EventSink.
type MemorySink struct {
	mu     sync.Mutex
	events map[string]Record
	stats  map[string]*StoryStats
	now    func() time.Time
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		events: make(map[string]Record),
		stats:  make(map[string]*StoryStats),
		now:    time.Now,
	}
}

func (s *MemorySink) EnsureSchema(context.Context) error { return nil }

func (s *MemorySink) Write(_ context.Context, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, r := range records {
		if _, seen := s.events[r.EventID]; seen {
			continue
		}
		s.events[r.EventID] = r
		written++
		if r.StoryID == "" {
			continue
		}
		st, ok := s.stats[r.StoryID]
		if !ok {
			st = &StoryStats{StoryID: r.StoryID}
			s.stats[r.StoryID] = st
		}
		d := deltaFor(r.Subject)
		st.Views += d.views
		st.Comments += d.comments
		st.ProgressUpdates += d.progress
		st.UpdatedAt = s.now().UTC()
	}
	return written, nil
}

func (s *MemorySink) TopStories(_ context.Context, by Ranking, limit int) ([]StoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StoryStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	key := func(st StoryStats) int64 {
		if by == ByComments {
			return st.Comments
		}
		return st.Views
	}
	sort.Slice(out, func(i, j int) bool {
		if key(out[i]) != key(out[j]) {
			return key(out[i]) > key(out[j])
		}
		return out[i].StoryID < out[j].StoryID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of stored events.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
