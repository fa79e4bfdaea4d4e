package orders

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopProducts = 5
	MaxTopProducts     = 50
)

type DayRevenue struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type ProductSales struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// RevenueToday sums confirmed orders placed today. Reports count CONFIRMED
// orders only, bucketed by the UTC day they were placed.
func (s *Service) RevenueToday(ctx context.Context) (*DayRevenue, error) {
	from := model.StartOfDay(s.now())
	confirmed, err := s.store.ConfirmedOrders(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	day := DayRevenue{Date: from.Format(model.DayLayout), Total: decimal.Zero, Count: len(confirmed)}
	for _, o := range confirmed {
		day.Total = day.Total.Add(o.Total)
	}
	return &day, nil
}

// RevenueThisMonth returns one entry per day of the current month, zero
// days included, oldest first.
func (s *Service) RevenueThisMonth(ctx context.Context) ([]DayRevenue, error) {
	from := model.StartOfMonth(s.now())
	to := from.AddDate(0, 1, 0)
	confirmed, err := s.store.ConfirmedOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return dailyRevenue(confirmed, from, to), nil
}

func dailyRevenue(confirmed []model.Order, from, to time.Time) []DayRevenue {
	var days []DayRevenue
	index := map[string]int{}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(model.DayLayout)
		index[key] = len(days)
		days = append(days, DayRevenue{Date: key, Total: decimal.Zero})
	}
	for _, o := range confirmed {
		i, ok := index[o.CreatedAt.UTC().Format(model.DayLayout)]
		if !ok {
			continue
		}
		days[i].Total = days[i].Total.Add(o.Total)
		days[i].Count++
	}
	return days
}

// TopProductsThisMonth ranks products by quantity sold in confirmed orders
// this month. Ties go to the lower product id.
func (s *Service) TopProductsThisMonth(ctx context.Context, n int) ([]ProductSales, error) {
	if n == 0 {
		n = DefaultTopProducts
	}
	if n < 0 || n > MaxTopProducts {
		return nil, apperr.Validation("limit must be between 1 and %d, got %d", MaxTopProducts, n)
	}
	from := model.StartOfMonth(s.now())
	confirmed, err := s.store.ConfirmedOrders(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	return topProducts(confirmed, n), nil
}

func topProducts(confirmed []model.Order, n int) []ProductSales {
	byID := map[string]*ProductSales{}
	for _, o := range confirmed {
		for _, it := range o.Items {
			ps, ok := byID[it.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: it.ProductID, ProductName: it.ProductName}
				byID[it.ProductID] = ps
			}
			ps.Quantity += it.Quantity
		}
	}
	out := make([]ProductSales, 0, len(byID))
	for _, ps := range byID {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
