package ledger

import (
	"context"
	"sort"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/shopspring/decimal"
)

const defaultMovementLimit = 20

type MovementQuery struct {
	Page      model.Page
	Type      string
	Date      string // YYYY-MM-DD, UTC
	ProductID string
}

// List returns movements newest first.
func (s *Service) List(ctx context.Context, mq MovementQuery) (model.PageResult[model.Movement], error) {
	page := mq.Page.Normalize(defaultMovementLimit)
	f := store.MovementFilter{Page: page, ProductID: mq.ProductID}
	if mq.Type != "" {
		t := model.MovementType(mq.Type)
		if !t.Valid() {
			return model.PageResult[model.Movement]{}, apperr.Validation("movement type must be IN or OUT, got %q", mq.Type)
		}
		f.Type = t
	}
	if mq.Date != "" {
		from, to, err := model.ParseDay(mq.Date)
		if err != nil {
			return model.PageResult[model.Movement]{}, apperr.Validation("%v", err)
		}
		f.From, f.To = &from, &to
	}
	items, total, err := s.store.ListMovements(ctx, f)
	if err != nil {
		return model.PageResult[model.Movement]{}, err
	}
	return model.NewPageResult(items, total, page), nil
}

type ValuationItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Stock     int             `json:"stock"`
	UnitValue decimal.Decimal `json:"unit_value"`
	Value     decimal.Decimal `json:"value"`
}

type Valuation struct {
	Total decimal.Decimal `json:"total"`
	Items []ValuationItem `json:"items"`
}

// TotalInventoryValue values every product in stock at cost, or at price when
// the product has no cost.
func (s *Service) TotalInventoryValue(ctx context.Context) (*Valuation, error) {
	ps, err := s.store.StockedProducts(ctx)
	if err != nil {
		return nil, err
	}
	return valuate(ps), nil
}

func valuate(ps []model.Product) *Valuation {
	v := &Valuation{Total: decimal.Zero, Items: make([]ValuationItem, 0, len(ps))}
	for _, p := range ps {
		if p.Stock <= 0 {
			continue
		}
		unit := p.Price
		if p.Cost.Valid {
			unit = p.Cost.Decimal
		}
		value := unit.Mul(decimal.NewFromInt(int64(p.Stock)))
		v.Items = append(v.Items, ValuationItem{ProductID: p.ID, Name: p.Name, Stock: p.Stock, UnitValue: unit, Value: value})
		v.Total = v.Total.Add(value)
	}
	sort.Slice(v.Items, func(i, j int) bool { return v.Items[i].ProductID < v.Items[j].ProductID })
	return v
}

type Reconciliation struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	In        int    `json:"in"`
	Out       int    `json:"out"`
	Net       int    `json:"net"`
	Balanced  bool   `json:"balanced"`
}

// Reconcile compares a product's stock with the net of its applied movements.
// It holds the product's row lock while reading both, and every applied
// movement writes stock under that lock, so the two describe the same moment.
func (s *Service) Reconcile(ctx context.Context, productID string) (*Reconciliation, error) {
	var r Reconciliation
	err := s.store.InTx(ctx, func(q store.Querier) error {
		if err := q.LockProducts(ctx, []string{productID}); err != nil {
			return err
		}
		p, err := q.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		in, out, err := q.MovementTotals(ctx, productID)
		if err != nil {
			return err
		}
		r = Reconciliation{ProductID: p.ID, Stock: p.Stock, In: in, Out: out, Net: in - out}
		r.Balanced = r.Net == r.Stock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
