package analytics

import (
	"testing"

	"github.com/google/uuid"
)

func TestPublish_NilReceiverIsNoop(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectSearchPerformed, "search", "", map[string]any{"q": "naruto"})
}

func TestPublish_NoJetStreamIsNoop(t *testing.T) {
	p := New(nil, nil)
	p.Publish(SubjectProgressUpdated, "progress_updated", "reader-1", nil)
}

func TestFromConn_NilConn(t *testing.T) {
	p, err := FromConn(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.js != nil {
		t.Fatal("expected no-op publisher")
	}
}

func TestNewEvent(t *testing.T) {
	ev := newEvent("story_viewed", "reader-1", map[string]any{"story_id": "s1"})
	if _, err := uuid.Parse(ev.EventID); err != nil {
		t.Fatalf("expected uuid event id, got %q", ev.EventID)
	}
	if ev.OccurredAt.IsZero() || ev.OccurredAt.Location().String() != "UTC" {
		t.Fatalf("expected UTC timestamp, got %v", ev.OccurredAt)
	}
	if ev.Properties["story_id"] != "s1" {
		t.Fatalf("unexpected properties: %v", ev.Properties)
	}
}
