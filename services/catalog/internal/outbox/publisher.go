package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/metrics"
)

const (
	StreamName    = "CATALOG_EVENTS"
	StreamSubject = "catalog.>"
)

// Publisher relays catalog_outbox rows to JetStream. Rows are locked with
// SKIP LOCKED so several catalog replicas can run a Publisher at once.
type Publisher struct {
	Log          *zap.Logger
	DB           *pgxpool.Pool
	JS           nats.JetStreamContext
	BatchSize    int
	PollInterval time.Duration
}

type outboxRow struct {
	ID        string
	EventType string
	Payload   json.RawMessage
}

func NewPublisher(log *zap.Logger, db *pgxpool.Pool, nc *nats.Conn, batchSize int, pollInterval time.Duration) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Publisher{
		Log:          log,
		DB:           db,
		JS:           js,
		BatchSize:    batchSize,
		PollInterval: pollInterval,
	}, nil
}

func (p *Publisher) EnsureStream(ctx context.Context) error {
	info, err := p.JS.StreamInfo(StreamName, nats.Context(ctx))
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == StreamSubject {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = []string{StreamSubject}
		_, err := p.JS.UpdateStream(&cfg, nats.Context(ctx))
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = p.JS.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{StreamSubject},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	}, nats.Context(ctx))
	return err
}

func (p *Publisher) Run(ctx context.Context) error {
	if err := p.EnsureStream(ctx); err != nil {
		return err
	}
	p.Log.Info("outbox publisher started", zap.Duration("poll_interval", p.PollInterval), zap.Int("batch_size", p.BatchSize))

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.flushOnce(ctx)
			if err != nil {
				p.Log.Warn("outbox flush failed", zap.Error(err))
				continue
			}
			if n > 0 {
				metrics.OutboxPublishedTotal.Add(float64(n))
				p.Log.Debug("outbox flushed", zap.Int("events", n))
			}
		}
	}
}

func (p *Publisher) flushOnce(ctx context.Context) (int, error) {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, event_type, payload
FROM catalog_outbox
WHERE published_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`, p.BatchSize)
	if err != nil {
		return 0, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[outboxRow])
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, err := p.JS.Publish(item.EventType, item.Payload, nats.Context(ctx), nats.MsgId(item.ID)); err != nil {
			return 0, err
		}
		ids = append(ids, item.ID)
	}

	if _, err := tx.Exec(ctx, `UPDATE catalog_outbox SET published_at = now() WHERE id::text = ANY($1)`, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(items), nil
}
