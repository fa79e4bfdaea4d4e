// Package store declares the persistence contract of the core. Two drivers
// implement it: internal/postgres for production and internal/store/memstore
// for local runs and tests.
//
// Every method of Querier may run inside or outside a unit of work. Store.InTx
// hands fn a Querier bound to one transaction; if fn returns an error or the
// context ends, nothing fn wrote is kept.
package store

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/shopspring/decimal"
)

type ProductFilter struct {
	Page     model.Page
	Name     string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

type MovementFilter struct {
	Page      model.Page
	Type      model.MovementType
	ProductID string
	From, To  *time.Time
}

type OrderFilter struct {
	Page      model.Page
	Status    model.Status
	UserID    string
	PayMethod model.PayMethod
	From, To  *time.Time
}

type ProductStore interface {
	// InsertProduct fails with a conflict when the code is taken.
	InsertProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	// GetProducts returns the products that exist among ids, keyed by id.
	GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error)
	// LockProducts takes row locks on ids, in the order given, until the unit of work ends.
	LockProducts(ctx context.Context, ids []string) error
	ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, int, error)
	LowStock(ctx context.Context, threshold int) ([]model.Product, error)
	StockedProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id string, patch model.ProductPatch, at time.Time) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// ProductReferenced reports whether any movement or order item points at id.
	ProductReferenced(ctx context.Context, id string) (bool, error)
	// AdjustStock adds delta to the stock unless the result would be negative,
	// as one conditional write. ok is false when nothing changed, and stock is
	// then the current stock.
	AdjustStock(ctx context.Context, id string, delta int, at time.Time) (stock int, ok bool, err error)
}

type MovementStore interface {
	InsertMovement(ctx context.Context, m *model.Movement) error
	ListMovements(ctx context.Context, f MovementFilter) ([]model.Movement, int, error)
	// MovementTotals sums the quantities that were applied to stock.
	MovementTotals(ctx context.Context, productID string) (in, out int, err error)
}

type OrderStore interface {
	// InsertOrder stores the order with its items. A taken external id is a conflict.
	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	// GetOrderForUpdate loads the order and locks it until the unit of work ends.
	GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (*model.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, int, error)
	// UpdateOrderStatus moves the order from one status to another and reports
	// whether the order was still in from.
	UpdateOrderStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error)
	// ConfirmedOrders returns confirmed orders created in [from, to), with items.
	ConfirmedOrders(ctx context.Context, from, to time.Time) ([]model.Order, error)
}

type ReservationStore interface {
	InsertReservations(ctx context.Context, rs []model.Reservation) error
	// ReservedQuantities sums live reservations per product, skipping those of excludeOrderID.
	ReservedQuantities(ctx context.Context, productIDs []string, excludeOrderID string, now time.Time) (map[string]int, error)
	ConsumeReservations(ctx context.Context, orderID string) (int, error)
	ReleaseExpiredReservations(ctx context.Context, now time.Time) (int, error)
}

type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

type Querier interface {
	ProductStore
	MovementStore
	OrderStore
	ReservationStore
	UserStore
}

type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}
