package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/metrics"
	"github.com/example/storyhub/services/social/internal/store"
)

const (
	StoryEventsStream   = "CATALOG_EVENTS"
	StoryDeletedSubject = "catalog.story.deleted"
	DurableName         = "social-story-events"
)

var errMalformedEvent = errors.New("malformed story event")

// StoryDeletedEvent is the payload the catalog outbox publishes on
// StoryDeletedSubject.
type StoryDeletedEvent struct {
	StoryID string `json:"story_id"`
}

// acker is the part of *nats.Msg the consumer settles messages through.
type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// StoryEventsConsumer removes the comments of deleted stories. It pulls
// from a durable JetStream consumer so events published while the social
// service is down are handled on restart.
type StoryEventsConsumer struct {
	Comments  store.CommentStore
	Log       *zap.Logger
	BatchSize int
	MaxWait   time.Duration
	Retry     time.Duration // wait between subscribe attempts
}

func NewStoryEventsConsumer(comments store.CommentStore, log *zap.Logger, batchSize int, maxWait time.Duration) *StoryEventsConsumer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	return &StoryEventsConsumer{
		Comments:  comments,
		Log:       log,
		BatchSize: batchSize,
		MaxWait:   maxWait,
		Retry:     5 * time.Second,
	}
}

// Run consumes until ctx is cancelled. The catalog service owns the stream,
// so subscribing is retried until the stream exists.
func (c *StoryEventsConsumer) Run(ctx context.Context, nc *nats.Conn) error {
	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	sub, err := c.subscribe(ctx, js)
	if err != nil {
		return err
	}
	c.Log.Info("story events consumer started",
		zap.String("stream", StoryEventsStream),
		zap.String("durable", DurableName))

	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := sub.Fetch(c.BatchSize, nats.MaxWait(c.MaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			c.Log.Warn("story events fetch", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}
		for _, m := range msgs {
			c.process(ctx, m.Data, m)
		}
	}
}

func (c *StoryEventsConsumer) subscribe(ctx context.Context, js nats.JetStreamContext) (*nats.Subscription, error) {
	for {
		sub, err := js.PullSubscribe(StoryDeletedSubject, DurableName,
			nats.BindStream(StoryEventsStream),
			nats.AckExplicit(),
		)
		if err == nil {
			return sub, nil
		}
		c.Log.Warn("story events subscribe, retrying", zap.Error(err), zap.Duration("retry", c.Retry))
		if !sleep(ctx, c.Retry) {
			return nil, ctx.Err()
		}
	}
}

// process handles one message and settles it: ack on success, term on a
// payload that can never succeed, nak otherwise so JetStream redelivers.
func (c *StoryEventsConsumer) process(ctx context.Context, data []byte, m acker) {
	err := c.Handle(ctx, data)
	metrics.RecordStoryEvent(err)

	var settleErr error
	switch {
	case err == nil:
		settleErr = m.Ack()
	case errors.Is(err, errMalformedEvent):
		c.Log.Error("dropping story event", zap.Error(err), zap.ByteString("payload", data))
		settleErr = m.Term()
	default:
		c.Log.Warn("story event failed, will be redelivered", zap.Error(err))
		settleErr = m.Nak()
	}
	if settleErr != nil {
		c.Log.Warn("story event settle", zap.Error(settleErr))
	}
}

// Handle soft-deletes every comment on the story named by a
// StoryDeletedEvent payload.
func (c *StoryEventsConsumer) Handle(ctx context.Context, data []byte) error {
	var ev StoryDeletedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	id, err := uuid.Parse(strings.TrimSpace(ev.StoryID))
	if err != nil {
		return fmt.Errorf("%w: story_id %q", errMalformedEvent, ev.StoryID)
	}

	n, err := c.Comments.DeleteByStory(ctx, id.String())
	if err != nil {
		return fmt.Errorf("delete comments of story %s: %w", id, err)
	}
	c.Log.Info("story deleted, comments removed", zap.String("story_id", id.String()), zap.Int64("comments", n))
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
