package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/services/analytics/internal/dispatch"
	"github.com/example/storyhub/services/analytics/internal/sink"
)

type fakeMsg struct{ acked, naked int }

func (m *fakeMsg) Ack(...nats.AckOpt) error { m.acked++; return nil }
func (m *fakeMsg) Nak(...nats.AckOpt) error { m.naked++; return nil }

type failingSink struct{ sink.EventSink }

func (failingSink) Write(context.Context, []sink.Record) (int, error) {
	return 0, errors.New("db down")
}

func viewed(id string) []byte {
	return []byte(`{"event_id":"` + id + `","event_name":"story_viewed","occurred_at":"2026-03-01T10:00:00Z","properties":{"story_id":"s1"}}`)
}

func batchOf(msgs []*fakeMsg, payloads ...[]byte) []delivery {
	out := make([]delivery, len(payloads))
	for i, p := range payloads {
		out[i] = delivery{subject: analytics.SubjectStoryViewed, data: p, msg: msgs[i]}
	}
	return out
}

func TestHandleBatch_StoresAndAcks(t *testing.T) {
	s := sink.NewMemorySink()
	c := newConsumer(nil, dispatch.New(zap.NewNop()), s, 10, 0, zap.NewNop())
	msgs := []*fakeMsg{{}, {}, {}}

	c.handleBatch(context.Background(), batchOf(msgs, viewed("e1"), viewed("e2"), []byte(`{`)))

	if s.Len() != 2 {
		t.Fatalf("expected 2 stored events, got %d", s.Len())
	}
	for i, m := range msgs {
		if m.acked != 1 || m.naked != 0 {
			t.Fatalf("message %d: expected ack, got %+v", i, *m)
		}
	}
}

func TestHandleBatch_SinkFailureNaks(t *testing.T) {
	c := newConsumer(nil, dispatch.New(zap.NewNop()), failingSink{}, 10, 0, zap.NewNop())
	msgs := []*fakeMsg{{}, {}}

	c.handleBatch(context.Background(), batchOf(msgs, viewed("e1"), viewed("e2")))

	for i, m := range msgs {
		if m.naked != 1 || m.acked != 0 {
			t.Fatalf("message %d: expected nak, got %+v", i, *m)
		}
	}
}

func TestHandleBatch_RedeliveryDoesNotDoubleCount(t *testing.T) {
	s := sink.NewMemorySink()
	c := newConsumer(nil, dispatch.New(zap.NewNop()), s, 10, 0, zap.NewNop())

	c.handleBatch(context.Background(), batchOf([]*fakeMsg{{}}, viewed("e1")))
	c.handleBatch(context.Background(), batchOf([]*fakeMsg{{}}, viewed("e1")))

	top, _ := s.TopStories(context.Background(), sink.ByViews, 1)
	if len(top) != 1 || top[0].Views != 1 {
		t.Fatalf("expected a single view, got %+v", top)
	}
}
