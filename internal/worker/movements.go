// Package worker holds the background jobs of the service: the consumer of
// ledger movement events and the reservation sweeper.
package worker

import (
	"context"

	"github.com/ariefcatur/go-stock-ledger/internal/events"
	kafkax "github.com/ariefcatur/go-stock-ledger/internal/kafka"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LowStockAlerts keeps the Redis low-stock board in step with movement
// events: a product whose stock drops below Threshold is flagged, one that
// recovers is cleared. Events are keyed by product, and the consumer hands
// them over in partition order, so the last write per product wins.
type LowStockAlerts struct {
	Redis     redis.Cmdable
	Threshold int
	Service   string
	Log       *zap.Logger
}

// HandleMovementRecorded is installed as the consumer handler.
func (a *LowStockAlerts) HandleMovementRecorded(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		a.Log.Warn("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != ledger.EventMovementRecorded {
		return nil
	}

	first, err := redisx.MarkOnce(ctx, a.Redis, a.Service, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		a.Log.Debug("duplicate event skipped", zap.String("event_id", env.EventID))
		return nil
	}

	if err := a.apply(ctx, env); err != nil {
		// The consumer retries the message; release the claim so the retry applies it.
		_ = redisx.Unmark(ctx, a.Redis, a.Service, env.EventID)
		return err
	}
	return nil
}

func (a *LowStockAlerts) apply(ctx context.Context, env events.Envelope) error {
	p, err := events.Decode[ledger.MovementRecordedPayload](env)
	if err != nil {
		a.Log.Warn("dropping bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.StockAfter < a.Threshold {
		a.Log.Warn("low stock",
			zap.String("product_id", p.ProductID),
			zap.Int("stock", p.StockAfter),
			zap.Int("threshold", a.Threshold),
			zap.String("trace_id", env.TraceID),
		)
		return redisx.FlagLowStock(ctx, a.Redis, p.ProductID, p.StockAfter)
	}
	return redisx.ClearLowStock(ctx, a.Redis, p.ProductID)
}
