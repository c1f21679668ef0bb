// Package consumer manages the JetStream pull consumer for the analytics service.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/metrics"
	"github.com/example/storyhub/services/analytics/internal/dispatch"
	"github.com/example/storyhub/services/analytics/internal/sink"
)

// message is the part of *nats.Msg a batch needs.
type message interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
}

type delivery struct {
	subject string
	data    []byte
	msg     message
}

// Consumer wraps a JetStream pull subscription and writes each fetched
// batch to the sink in one call.
type Consumer struct {
	sub        *nats.Subscription
	dispatcher *dispatch.Dispatcher
	sink       sink.EventSink
	batchSize  int
	maxWait    time.Duration
	log        *zap.Logger
}

// New makes sure the ANALYTICS stream exists and binds a durable pull
// consumer to it.
func New(nc *nats.Conn, d *dispatch.Dispatcher, s sink.EventSink, durable string, batchSize int, maxWait time.Duration, log *zap.Logger) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if err := analytics.EnsureStream(js); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	sub, err := js.PullSubscribe(analytics.StreamSubject, durable,
		nats.BindStream(analytics.StreamName),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, err
	}
	return newConsumer(sub, d, s, batchSize, maxWait, log), nil
}

func newConsumer(sub *nats.Subscription, d *dispatch.Dispatcher, s sink.EventSink, batchSize int, maxWait time.Duration, log *zap.Logger) *Consumer {
	return &Consumer{
		sub:        sub,
		dispatcher: d,
		sink:       s,
		batchSize:  batchSize,
		maxWait:    maxWait,
		log:        log,
	}
}

// Run processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.maxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			c.log.Error("analytics consumer: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		batch := make([]delivery, len(msgs))
		for i, m := range msgs {
			batch[i] = delivery{subject: m.Subject, data: m.Data, msg: m}
		}
		c.handleBatch(ctx, batch)
	}
}

// handleBatch stores every decodable message and settles the whole batch:
// ack on success, nak on a sink failure so JetStream redelivers it.
func (c *Consumer) handleBatch(ctx context.Context, batch []delivery) {
	if len(batch) == 0 {
		return
	}

	records := make([]sink.Record, 0, len(batch))
	for _, d := range batch {
		if r, ok := c.dispatcher.Record(d.subject, d.data); ok {
			records = append(records, r)
		}
	}

	stored, err := c.sink.Write(ctx, records)
	metrics.RecordAnalyticsBatch(stored, err)
	if err != nil {
		c.log.Warn("analytics consumer: write batch, will be redelivered",
			zap.Int("messages", len(batch)), zap.Error(err))
		for _, d := range batch {
			if err := d.msg.Nak(); err != nil {
				c.log.Warn("analytics consumer: nak", zap.Error(err))
			}
		}
		return
	}

	c.log.Debug("analytics consumer: batch stored",
		zap.Int("messages", len(batch)), zap.Int("stored", stored))
	for _, d := range batch {
		if err := d.msg.Ack(); err != nil {
			c.log.Warn("analytics consumer: ack", zap.Error(err))
		}
	}
}
