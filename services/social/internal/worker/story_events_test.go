package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/storyhub/services/social/internal/store"
)

const deletedStory = "3d5b8f2a-7c41-4e19-a6d0-5b2e9c8f1a77"

type fakeMsg struct{ acked, naked, termed int }

func (m *fakeMsg) Ack(...nats.AckOpt) error { m.acked++; return nil }
func (m *fakeMsg) Nak(...nats.AckOpt) error { m.naked++; return nil }
func (m *fakeMsg) Term(...nats.AckOpt) error { m.termed++; return nil }

type failingStore struct{ store.CommentStore }

func (failingStore) DeleteByStory(context.Context, string) (int64, error) {
	return 0, errors.New("db down")
}

func newConsumer(cs store.CommentStore) *StoryEventsConsumer {
	return NewStoryEventsConsumer(cs, zap.NewNop(), 0, 0)
}

func TestHandle_DeletesStoryComments(t *testing.T) {
	cs := store.NewInMemoryCommentStore()
	ctx := context.Background()
	_, _ = cs.Create(ctx, store.Comment{StoryID: deletedStory, UserID: "user-a", Body: "a"})
	_, _ = cs.Create(ctx, store.Comment{StoryID: deletedStory, UserID: "user-b", Body: "b"})

	if err := newConsumer(cs).Handle(ctx, []byte(`{"story_id":"`+deletedStory+`"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	page, _ := cs.ListThread(ctx, store.ThreadQuery{StoryID: deletedStory, Limit: 10})
	for _, n := range page.Nodes {
		if n.Comment.DeletedAt == nil || n.Comment.Body != store.DeletedBody {
			t.Fatalf("expected comment %s to be deleted", n.Comment.ID)
		}
	}
}

func TestHandle_MalformedPayload(t *testing.T) {
	c := newConsumer(store.NewInMemoryCommentStore())
	for _, payload := range []string{`not json`, `{"story_id":"story-1"}`, `{}`} {
		if err := c.Handle(context.Background(), []byte(payload)); !errors.Is(err, errMalformedEvent) {
			t.Fatalf("%s: expected errMalformedEvent, got %v", payload, err)
		}
	}
}

func TestProcess_Settles(t *testing.T) {
	good := []byte(`{"story_id":"` + deletedStory + `"}`)
	cases := []struct {
		name    string
		store   store.CommentStore
		payload []byte
		want    fakeMsg
	}{
		{"success acks", store.NewInMemoryCommentStore(), good, fakeMsg{acked: 1}},
		{"malformed terminates", store.NewInMemoryCommentStore(), []byte(`{`), fakeMsg{termed: 1}},
		{"store failure naks", failingStore{}, good, fakeMsg{naked: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &fakeMsg{}
			newConsumer(tc.store).process(context.Background(), tc.payload, m)
			if *m != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, *m)
			}
		})
	}
}

func TestNewStoryEventsConsumer_Defaults(t *testing.T) {
	c := newConsumer(store.NewInMemoryCommentStore())
	if c.BatchSize != 100 || c.MaxWait.Seconds() != 2 {
		t.Fatalf("unexpected defaults: batch=%d wait=%s", c.BatchSize, c.MaxWait)
	}
}
