// Package ledger owns stock movements and is the only writer of a product's
// stock counter. Every applied movement changes the counter and appends the
// movement in the same unit of work, so stock always equals IN minus OUT.
package ledger

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/events"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/ariefcatur/go-stock-ledger/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Service struct {
	store     store.Store
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
	producer  string
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithProducer(name string) Option { return func(s *Service) { s.producer = name } }

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: events.Nop{},
		log:       zap.NewNop(),
		now:       time.Now,
		producer:  "stock-ledger",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type MovementInput struct {
	ProductID string
	Type      model.MovementType
	Quantity  int
	// UnitCost defaults to the product's current cost.
	UnitCost  *decimal.Decimal
	Source    model.MovementSource
	Reference string
}

// Applied is a movement together with the stock it left behind.
type Applied struct {
	Movement   model.Movement
	StockAfter int
}

func validate(in MovementInput) error {
	if !in.Type.Valid() {
		return apperr.Validation("movement type must be IN or OUT, got %q", in.Type)
	}
	if in.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than 0, got %d", in.Quantity)
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return apperr.Validation("unit cost must not be negative")
	}
	return nil
}

// RecordMovement applies one movement as its own unit of work.
func (s *Service) RecordMovement(ctx context.Context, in MovementInput) (*model.Movement, error) {
	ctx, span := telemetry.Start(ctx, "ledger.RecordMovement",
		attribute.String("product.id", in.ProductID),
		attribute.String("movement.type", string(in.Type)),
		attribute.Int("movement.quantity", in.Quantity),
	)
	var applied *Applied
	err := s.store.InTx(ctx, func(q store.Querier) error {
		var err error
		applied, err = s.Apply(ctx, q, in)
		return err
	})
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, *applied)
	return &applied.Movement, nil
}

// Apply validates and applies a movement inside the caller's unit of work.
// The stock check and the stock write are one conditional update, so two
// concurrent OUTs on the same product can never both pass against the same
// stock. Callers commit and then Announce the result.
func (s *Service) Apply(ctx context.Context, q store.Querier, in MovementInput) (*Applied, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.Source == "" {
		in.Source = model.SourceManual
	}
	now := s.now().UTC()
	// Manual OUTs must leave live reservations covered; the lock keeps new
	// reservations out until this unit of work ends.
	guardReserved := in.Type == model.MovementOut && in.Source == model.SourceManual
	if guardReserved {
		if err := q.LockProducts(ctx, []string{in.ProductID}); err != nil {
			return nil, err
		}
	}
	p, err := q.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if guardReserved {
		held, err := q.ReservedQuantities(ctx, []string{p.ID}, "", now)
		if err != nil {
			return nil, err
		}
		if free := p.Stock - held[p.ID]; held[p.ID] > 0 && free < in.Quantity {
			s.log.Warn("movement rejected: stock is reserved",
				zap.String("product_id", p.ID),
				zap.Int("stock", p.Stock),
				zap.Int("reserved", held[p.ID]),
				zap.Int("requested", in.Quantity),
			)
			return nil, apperr.InsufficientStock(apperr.Shortage{
				ProductID: p.ID, ProductName: p.Name, Available: max(free, 0), Requested: in.Quantity,
			})
		}
	}

	delta := in.Quantity
	if in.Type == model.MovementOut {
		delta = -in.Quantity
	}
	stock, ok, err := q.AdjustStock(ctx, p.ID, delta, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Warn("movement rejected: insufficient stock",
			zap.String("product_id", p.ID),
			zap.Int("available", stock),
			zap.Int("requested", in.Quantity),
		)
		return nil, apperr.InsufficientStock(apperr.Shortage{
			ProductID: p.ID, ProductName: p.Name, Available: stock, Requested: in.Quantity,
		})
	}

	m := s.newMovement(in, *p, now)
	if err := q.InsertMovement(ctx, &m); err != nil {
		return nil, err
	}
	s.log.Debug("movement applied",
		zap.String("movement_id", m.ID),
		zap.String("product_id", p.ID),
		zap.String("type", string(m.Type)),
		zap.Int("quantity", m.Quantity),
		zap.Int("stock_after", stock),
	)
	return &Applied{Movement: m, StockAfter: stock}, nil
}

// RecordMovementOnly appends a movement WITHOUT touching stock. It exists for
// stock that was already adjusted elsewhere; such movements are tagged
// RECORD_ONLY and left out of Reconcile's net.
func (s *Service) RecordMovementOnly(ctx context.Context, in MovementInput) (*model.Movement, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	in.Source = model.SourceRecordOnly
	var m model.Movement
	err := s.store.InTx(ctx, func(q store.Querier) error {
		p, err := q.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		m = s.newMovement(in, *p, s.now().UTC())
		return q.InsertMovement(ctx, &m)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("movement recorded without stock change",
		zap.String("movement_id", m.ID),
		zap.String("product_id", m.ProductID),
	)
	return &m, nil
}

func (s *Service) newMovement(in MovementInput, p model.Product, at time.Time) model.Movement {
	cost := p.UnitCost()
	if in.UnitCost != nil {
		cost = *in.UnitCost
	}
	return model.Movement{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		UnitCost:  cost,
		Source:    in.Source,
		Reference: in.Reference,
		CreatedAt: at,
	}
}

// Announce publishes committed movements. Failures are logged, not returned.
func (s *Service) Announce(ctx context.Context, applied ...Applied) {
	for _, a := range applied {
		m := a.Movement
		env, err := events.New(ctx, EventMovementRecorded, s.producer, m.ProductID, MovementRecordedPayload{
			MovementID: m.ID,
			ProductID:  m.ProductID,
			Type:       m.Type,
			Quantity:   m.Quantity,
			Source:     m.Source,
			Reference:  m.Reference,
			StockAfter: a.StockAfter,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, TopicMovementRecorded, []byte(m.ProductID), env)
		}
		if err != nil {
			s.log.Warn("publish movement event", zap.String("movement_id", m.ID), zap.Error(err))
		}
	}
}
