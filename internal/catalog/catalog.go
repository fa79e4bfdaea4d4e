// Package catalog manages product identity and attributes. It reads the stock
// counter but never writes it; opening stock goes through the ledger.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultListLimit  = 10
	DefaultLowStockAt = 5
)

// Ledger is the slice of the ledger used to record opening stock.
type Ledger interface {
	Apply(ctx context.Context, q store.Querier, in ledger.MovementInput) (*ledger.Applied, error)
	Announce(ctx context.Context, applied ...ledger.Applied)
}

type Service struct {
	store  store.Store
	ledger Ledger
	log    *zap.Logger
	now    func() time.Time
}

func New(st store.Store, l Ledger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, ledger: l, log: log, now: time.Now}
}

// WithClock replaces the clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type RegisterInput struct {
	Name         string
	Code         string
	Price        decimal.Decimal
	Cost         *decimal.Decimal
	InitialStock int
}

func validateFields(name, code *string, price, cost *decimal.Decimal) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return apperr.Validation("name must not be empty")
	}
	if code != nil && strings.TrimSpace(*code) == "" {
		return apperr.Validation("code must not be empty")
	}
	if price != nil && price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if cost != nil && cost.IsNegative() {
		return apperr.Validation("cost must not be negative")
	}
	return nil
}

// Register creates a product and records its opening stock as a GENESIS IN
// movement in the same unit of work.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Product, error) {
	if err := validateFields(&in.Name, &in.Code, &in.Price, in.Cost); err != nil {
		return nil, err
	}
	if in.InitialStock < 0 {
		return nil, apperr.Validation("stock must not be negative")
	}

	now := s.now().UTC()
	p := model.Product{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Code:      strings.TrimSpace(in.Code),
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Cost != nil {
		p.Cost = decimal.NewNullDecimal(*in.Cost)
	}

	var genesis *ledger.Applied
	err := s.store.InTx(ctx, func(q store.Querier) error {
		if err := q.InsertProduct(ctx, &p); err != nil {
			return err
		}
		if in.InitialStock == 0 {
			return nil
		}
		var err error
		genesis, err = s.ledger.Apply(ctx, q, ledger.MovementInput{
			ProductID: p.ID,
			Type:      model.MovementIn,
			Quantity:  in.InitialStock,
			Source:    model.SourceGenesis,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if genesis != nil {
		p.Stock = genesis.StockAfter
		s.ledger.Announce(ctx, *genesis)
	}
	s.log.Info("product registered", zap.String("product_id", p.ID), zap.String("code", p.Code), zap.Int("stock", p.Stock))
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	return s.store.GetProduct(ctx, id)
}

type ProductQuery struct {
	Page     model.Page
	Name     string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// List pages products by name.
func (s *Service) List(ctx context.Context, pq ProductQuery) (model.PageResult[model.Product], error) {
	if pq.MinPrice != nil && pq.MaxPrice != nil && pq.MinPrice.GreaterThan(*pq.MaxPrice) {
		return model.PageResult[model.Product]{}, apperr.Validation("min price is greater than max price")
	}
	page := pq.Page.Normalize(defaultListLimit)
	items, total, err := s.store.ListProducts(ctx, store.ProductFilter{
		Page:     page,
		Name:     strings.TrimSpace(pq.Name),
		MinPrice: pq.MinPrice,
		MaxPrice: pq.MaxPrice,
	})
	if err != nil {
		return model.PageResult[model.Product]{}, err
	}
	return model.NewPageResult(items, total, page), nil
}

// LowStock lists products with stock strictly below threshold, lowest first.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	return s.store.LowStock(ctx, threshold)
}

func (s *Service) Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	if err := validateFields(patch.Name, patch.Code, patch.Price, patch.Cost); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		patch.Name = &n
	}
	if patch.Code != nil {
		c := strings.TrimSpace(*patch.Code)
		patch.Code = &c
	}
	p, err := s.store.UpdateProduct(ctx, id, patch, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.log.Info("product updated", zap.String("product_id", id))
	return p, nil
}

// Remove deletes a product nothing refers to. Products with movements or
// order items stay, so history keeps resolving.
func (s *Service) Remove(ctx context.Context, id string) error {
	err := s.store.InTx(ctx, func(q store.Querier) error {
		if err := q.LockProducts(ctx, []string{id}); err != nil {
			return err
		}
		if _, err := q.GetProduct(ctx, id); err != nil {
			return err
		}
		used, err := q.ProductReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return apperr.Conflict("product %s has recorded movements or order items and cannot be removed", id)
		}
		return q.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("product removed", zap.String("product_id", id))
	return nil
}
