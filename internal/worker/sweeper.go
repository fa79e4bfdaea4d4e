package worker

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

const sweeperLease = "reservation-sweeper"

// Releaser releases reservations past their expiry.
type Releaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

// Sweeper releases expired reservations every Interval. With a Locker set
// only the instance holding the lease sweeps in a given round.
type Sweeper struct {
	Orders   Releaser
	Locker   *redislock.Client
	Interval time.Duration
	Log      *zap.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.Log.Warn("reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one round and reports how many reservations it released.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.Locker != nil {
		lock, ok, err := redisx.TryLease(ctx, s.Locker, sweeperLease, s.Interval)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.Log.Debug("sweeper lease held elsewhere")
			return 0, nil
		}
		defer func() { _ = lock.Release(context.Background()) }()
	}
	return s.Orders.ReleaseExpired(ctx)
}
