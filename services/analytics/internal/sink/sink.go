// Package sink persists analytics events and keeps per-story counters.
package sink

import (
	"context"
	"time"

	"github.com/example/storyhub/internal/platform/analytics"
)

// Anonymous is recorded as the user of events that carried none.
const Anonymous = "anonymous"

// Record is one analytics event ready to be stored.
type Record struct {
	EventID    string
	Subject    string
	EventName  string
	UserID     string
	StoryID    string // empty when the event is not about a story
	OccurredAt time.Time
	Properties map[string]any
}

// StoryStats are the counters kept per story.
type StoryStats struct {
	StoryID         string    `json:"storyId"`
	Views           int64     `json:"views"`
	Comments        int64     `json:"comments"`
	ProgressUpdates int64     `json:"progressUpdates"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Ranking orders TopStories.
type Ranking string

const (
	ByViews    Ranking = "views"
	ByComments Ranking = "comments"
)

// ParseRanking maps a query value to a Ranking, defaulting to ByViews.
func ParseRanking(s string) Ranking {
	if Ranking(s) == ByComments {
		return ByComments
	}
	return ByViews
}

// EventSink stores analytics records. Write is idempotent per EventID so
// redelivered messages do not double count.
type EventSink interface {
	EnsureSchema(ctx context.Context) error
	Write(ctx context.Context, records []Record) (int, error)
	TopStories(ctx context.Context, by Ranking, limit int) ([]StoryStats, error)
}

type delta struct{ views, comments, progress int64 }

func deltaFor(subject string) delta {
	switch subject {
	case analytics.SubjectStoryViewed:
		return delta{views: 1}
	case analytics.SubjectCommentCreated:
		return delta{comments: 1}
	case analytics.SubjectProgressUpdated:
		return delta{progress: 1}
	}
	return delta{}
}
