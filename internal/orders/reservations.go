package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// reservationsFor holds one reservation per product of o, summing repeated items.
func reservationsFor(o model.Order, expires time.Time) []model.Reservation {
	qty := map[string]int{}
	var order []string
	for _, it := range o.Items {
		if _, ok := qty[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	rs := make([]model.Reservation, 0, len(order))
	for _, pid := range order {
		rs = append(rs, model.Reservation{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: pid,
			Quantity:  qty[pid],
			Status:    model.ReservationReserved,
			ExpiresAt: expires,
			CreatedAt: o.CreatedAt,
		})
	}
	return rs
}

// ReleaseExpired marks reservations past their expiry RELEASED. Expired
// reservations already stop counting against stock; this only tidies them.
// The order itself stays PENDING and can still be confirmed if stock allows.
func (s *Service) ReleaseExpired(ctx context.Context) (int, error) {
	n, err := s.store.ReleaseExpiredReservations(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("released expired reservations", zap.Int("count", n))
	}
	return n, nil
}
