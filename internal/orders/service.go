// Package orders turns customer intents into orders and, on confirmation,
// into stock movements. Placing an order never touches stock; confirming
// it applies one ORDER movement per item atomically.
package orders

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/events"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/ariefcatur/go-stock-ledger/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultListLimit = 20

// Users resolves the customer placing an order.
type Users interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// Ledger is the slice of the ledger used when confirming.
type Ledger interface {
	Apply(ctx context.Context, q store.Querier, in ledger.MovementInput) (*ledger.Applied, error)
	Announce(ctx context.Context, applied ...ledger.Applied)
}

type Service struct {
	store     store.Store
	users     Users
	ledger    Ledger
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
	producer  string
	// reserveFor > 0 holds stock for PENDING orders that long.
	reserveFor time.Duration
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithProducer(name string) Option { return func(s *Service) { s.producer = name } }
func WithReservations(ttl time.Duration) Option {
	return func(s *Service) { s.reserveFor = ttl }
}

func New(st store.Store, users Users, l Ledger, opts ...Option) *Service {
	s := &Service{
		store:     st,
		users:     users,
		ledger:    l,
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

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	// ExternalID is the client's idempotency key; optional.
	ExternalID string
	UserID     string
	PayMethod  model.PayMethod
	Items      []ItemInput
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return apperr.Validation("user id is required")
	}
	if !in.PayMethod.Valid() {
		return apperr.Validation("pay method must be CASH or TRANSFER, got %q", in.PayMethod)
	}
	if len(in.Items) == 0 {
		return apperr.Validation("order must have at least one item")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return apperr.Validation("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return apperr.Validation("item %d: quantity must be greater than 0, got %d", i, it.Quantity)
		}
	}
	return nil
}

// distinctIDs keeps the first-seen order of product ids.
func distinctIDs(items []ItemInput) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

// checkStock walks items in the given order against what is left for each
// product, counting earlier items on the same product. The first item that
// does not fit is reported.
func checkStock(items []ItemInput, products map[string]model.Product, held map[string]int) error {
	used := make(map[string]int, len(products))
	for _, it := range items {
		p := products[it.ProductID]
		left := p.Stock - held[p.ID] - used[p.ID]
		if it.Quantity > left {
			if left < 0 {
				left = 0
			}
			return apperr.InsufficientStock(apperr.Shortage{
				ProductID: p.ID, ProductName: p.Name, Available: left, Requested: it.Quantity,
			})
		}
		used[p.ID] += it.Quantity
	}
	return nil
}

// Create places a PENDING order at current prices. Stock is checked but not
// moved. When ExternalID names an existing order, that order is returned and
// existed is true.
func (s *Service) Create(ctx context.Context, in CreateInput) (order *model.Order, existed bool, err error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}
	in.ExternalID = strings.TrimSpace(in.ExternalID)

	ctx, span := telemetry.Start(ctx, "orders.Create",
		attribute.String("user.id", in.UserID),
		attribute.Int("order.items", len(in.Items)),
	)
	defer func() { telemetry.End(span, err) }()

	if _, err := s.users.FindUserByID(ctx, in.UserID); err != nil {
		return nil, false, err
	}
	if in.ExternalID != "" {
		o, ok, err := s.byExternalID(ctx, s.store, in.ExternalID)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return replayed(o, in)
		}
	}

	now := s.now().UTC()
	o := model.Order{
		ID:         uuid.NewString(),
		ExternalID: in.ExternalID,
		UserID:     in.UserID,
		PayMethod:  in.PayMethod,
		Status:     model.StatusPending,
		Total:      decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	reserving := s.reserveFor > 0

	err = s.store.InTx(ctx, func(q store.Querier) error {
		ids := distinctIDs(in.Items)
		if reserving {
			if err := q.LockProducts(ctx, sortedCopy(ids)); err != nil {
				return err
			}
		}
		products, err := q.GetProducts(ctx, ids)
		if err != nil {
			return err
		}
		var missing []string
		for _, id := range ids {
			if _, ok := products[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return apperr.NotFoundIDs("products", missing)
		}

		held := map[string]int{}
		if reserving {
			if held, err = q.ReservedQuantities(ctx, ids, "", now); err != nil {
				return err
			}
		}
		if err := checkStock(in.Items, products, held); err != nil {
			return err
		}

		o.Items = make([]model.OrderItem, 0, len(in.Items))
		for _, it := range in.Items {
			p := products[it.ProductID]
			item := model.OrderItem{
				ID:          uuid.NewString(),
				OrderID:     o.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				Price:       p.Price,
			}
			o.Items = append(o.Items, item)
			o.Total = o.Total.Add(item.Subtotal())
		}
		if err := q.InsertOrder(ctx, &o); err != nil {
			return err
		}
		if reserving {
			return q.InsertReservations(ctx, reservationsFor(o, now.Add(s.reserveFor)))
		}
		return nil
	})
	if err != nil {
		// Lost a race on the same external id: hand back the winner.
		if in.ExternalID != "" && apperr.Is(err, apperr.KindConflict) {
			if prev, ok, lookupErr := s.byExternalID(ctx, s.store, in.ExternalID); lookupErr == nil && ok {
				return replayed(prev, in)
			}
		}
		return nil, false, err
	}

	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total.String()),
		zap.Bool("reserved", reserving),
	)
	s.announceCreated(ctx, o, reserving)
	return &o, false, nil
}

// replayed hands back the order already stored under in.ExternalID. A key
// only replays for the user who placed the order.
func replayed(o *model.Order, in CreateInput) (*model.Order, bool, error) {
	if o.UserID != in.UserID {
		return nil, false, apperr.Conflict("external id %q belongs to another user's order", in.ExternalID)
	}
	return o, true, nil
}

func (s *Service) byExternalID(ctx context.Context, q store.Querier, externalID string) (*model.Order, bool, error) {
	o, err := q.GetOrderByExternalID(ctx, externalID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return o, true, nil
}

// Confirm moves a PENDING order to CONFIRMED and takes its items out of
// stock. Stock is re-checked at this point since it may have moved since the
// order was placed. Either every item is deducted and the order confirmed,
// or nothing changes.
func (s *Service) Confirm(ctx context.Context, id string) (order *model.Order, err error) {
	ctx, span := telemetry.Start(ctx, "orders.Confirm", attribute.String("order.id", id))
	defer func() { telemetry.End(span, err) }()

	var (
		o       *model.Order
		applied []ledger.Applied
	)
	err = s.store.InTx(ctx, func(q store.Querier) error {
		var err error
		o, err = q.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, model.StatusConfirmed) {
			return apperr.Conflict("order %s is %s; only PENDING orders can be confirmed", o.ID, o.Status)
		}

		items := make([]ItemInput, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		ids := distinctIDs(items)
		// Rows are locked in id order so two confirmations sharing products
		// cannot wait on each other.
		if err := q.LockProducts(ctx, sortedCopy(ids)); err != nil {
			return err
		}
		products, err := q.GetProducts(ctx, ids)
		if err != nil {
			return err
		}
		for _, pid := range ids {
			if _, ok := products[pid]; !ok {
				return apperr.NotFound("product %s of order %s no longer exists", pid, o.ID)
			}
		}
		held := map[string]int{}
		if s.reserveFor > 0 {
			if held, err = q.ReservedQuantities(ctx, ids, o.ID, s.now().UTC()); err != nil {
				return err
			}
		}
		if err := checkStock(items, products, held); err != nil {
			return err
		}

		byProduct := append([]model.OrderItem(nil), o.Items...)
		sort.SliceStable(byProduct, func(i, j int) bool { return byProduct[i].ProductID < byProduct[j].ProductID })
		for _, it := range byProduct {
			price := it.Price
			a, err := s.ledger.Apply(ctx, q, ledger.MovementInput{
				ProductID: it.ProductID,
				Type:      model.MovementOut,
				Quantity:  it.Quantity,
				UnitCost:  &price,
				Source:    model.SourceOrder,
				Reference: o.ID,
			})
			if err != nil {
				return err
			}
			applied = append(applied, *a)
		}

		if _, err := q.ConsumeReservations(ctx, o.ID); err != nil {
			return err
		}
		now := s.now().UTC()
		ok, err := q.UpdateOrderStatus(ctx, o.ID, model.StatusPending, model.StatusConfirmed, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("order %s was confirmed concurrently", o.ID)
		}
		o.Status = model.StatusConfirmed
		o.UpdatedAt = now
		o.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindInsufficientStock) {
			s.log.Warn("order confirmation rejected", zap.String("order_id", id), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("order confirmed", zap.String("order_id", o.ID), zap.Int("movements", len(applied)))
	s.ledger.Announce(ctx, applied...)
	s.announceConfirmed(ctx, *o, applied)
	return o, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return s.store.GetOrder(ctx, id)
}

type OrderQuery struct {
	Page      model.Page
	Status    string
	UserID    string
	PayMethod string
	Date      string // YYYY-MM-DD, UTC
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, oq OrderQuery) (model.PageResult[model.Order], error) {
	page := oq.Page.Normalize(defaultListLimit)
	f := store.OrderFilter{Page: page, UserID: strings.TrimSpace(oq.UserID)}
	if oq.Status != "" {
		st := model.Status(strings.ToUpper(oq.Status))
		if !st.Valid() {
			return model.PageResult[model.Order]{}, apperr.Validation("status must be PENDING or CONFIRMED, got %q", oq.Status)
		}
		f.Status = st
	}
	if oq.PayMethod != "" {
		pm := model.PayMethod(strings.ToUpper(oq.PayMethod))
		if !pm.Valid() {
			return model.PageResult[model.Order]{}, apperr.Validation("pay method must be CASH or TRANSFER, got %q", oq.PayMethod)
		}
		f.PayMethod = pm
	}
	if oq.Date != "" {
		from, to, err := model.ParseDay(oq.Date)
		if err != nil {
			return model.PageResult[model.Order]{}, apperr.Validation("%v", err)
		}
		f.From, f.To = &from, &to
	}
	items, total, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return model.PageResult[model.Order]{}, err
	}
	return model.NewPageResult(items, total, page), nil
}

func (s *Service) announceCreated(ctx context.Context, o model.Order, reserved bool) {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, Price: it.Price})
	}
	s.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:    o.ID,
		ExternalID: o.ExternalID,
		UserID:     o.UserID,
		PayMethod:  string(o.PayMethod),
		Items:      items,
		Total:      o.Total,
		Reserved:   reserved,
	})
}

func (s *Service) announceConfirmed(ctx context.Context, o model.Order, applied []ledger.Applied) {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	ids := make([]string, 0, len(applied))
	for _, a := range applied {
		ids = append(ids, a.Movement.ID)
	}
	s.publish(ctx, TopicOrderConfirmed, EventOrderConfirmed, o.ID, OrderConfirmedPayload{
		OrderID:     o.ID,
		Items:       items,
		MovementIDs: ids,
		Total:       o.Total,
	})
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	env, err := events.New(ctx, eventType, s.producer, orderID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, topic, PartitionKey(orderID), env)
	}
	if err != nil {
		s.log.Warn("publish order event", zap.String("order_id", orderID), zap.String("topic", topic), zap.Error(err))
	}
}
