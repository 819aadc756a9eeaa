// Package outbox relays domain events committed to the store to a broker.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/storefront/internal/pkg/metrics"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

// Source is the outbox side of the store.
type Source interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]entity.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, ev entity.OutboxEvent) error
}

// Relay delivers events at least once and in id order. A publish failure
// stops the batch; the event is retried on the next tick.
type Relay struct {
	src       Source
	pub       Publisher
	batchSize int
	metrics   *metrics.Pipeline
}

func NewRelay(src Source, pub Publisher, batchSize int, m *metrics.Pipeline) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{src: src, pub: pub, batchSize: batchSize, metrics: m}
}

// Flush publishes one batch and returns how many events were marked sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.src.FetchPendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, ev := range events {
		if err := r.pub.Publish(ctx, ev); err != nil {
			return sent, err
		}
		if err := r.src.MarkOutboxSent(ctx, ev.ID); err != nil {
			return sent, err
		}
		r.metrics.OutboxPublished(ev.Type)
		sent++
	}
	return sent, nil
}

// Run flushes every interval until ctx is done, draining full batches
// without waiting for the next tick.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for ctx.Err() == nil {
			n, err := r.Flush(ctx)
			if err != nil {
				slog.WarnContext(ctx, "outbox relay failed", "sent", n, "error", err)
				break
			}
			if n > 0 {
				slog.DebugContext(ctx, "outbox relayed", "sent", n)
			}
			if n < r.batchSize {
				break
			}
		}
	}
}
