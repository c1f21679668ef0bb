// Package dispatch turns raw analytics messages into sink records.
package dispatch

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/services/analytics/internal/sink"
)

var known = map[string]bool{
	analytics.SubjectProgressUpdated: true,
	analytics.SubjectSearchPerformed: true,
	analytics.SubjectStoryViewed:     true,
	analytics.SubjectChapterRead:     true,
	analytics.SubjectCommentCreated:  true,
}

// Dispatcher maps analytics subjects to records.
type Dispatcher struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Record decodes one message. It returns false for unknown subjects and
// undecodable payloads; those are logged and should still be acked so they
// are not replayed.
func (d *Dispatcher) Record(subject string, data []byte) (sink.Record, bool) {
	if !known[subject] {
		d.log.Debug("analytics: unhandled subject", zap.String("subject", subject))
		return sink.Record{}, false
	}

	var ev analytics.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		d.log.Error("analytics: unmarshal message", zap.String("subject", subject), zap.Error(err))
		return sink.Record{}, false
	}
	if strings.TrimSpace(ev.EventID) == "" || ev.OccurredAt.IsZero() {
		d.log.Warn("analytics: event without id or timestamp", zap.String("subject", subject))
		return sink.Record{}, false
	}

	userID := strings.TrimSpace(ev.UserID)
	if userID == "" {
		userID = sink.Anonymous
	}
	storyID, _ := ev.Properties["story_id"].(string)

	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}
	return sink.Record{
		EventID:    ev.EventID,
		Subject:    subject,
		EventName:  ev.EventName,
		UserID:     userID,
		StoryID:    strings.TrimSpace(storyID),
		OccurredAt: ev.OccurredAt.UTC(),
		Properties: props,
	}, true
}
