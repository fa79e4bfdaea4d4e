package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Code      string              `json:"code"`
	Price     decimal.Decimal     `json:"price"`
	Cost      decimal.NullDecimal `json:"cost"`
	Stock     int                 `json:"stock"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// UnitCost is the cost used when a movement does not carry its own.
func (p Product) UnitCost() decimal.Decimal {
	if p.Cost.Valid {
		return p.Cost.Decimal
	}
	return decimal.Zero
}

// ProductPatch holds the mutable catalog fields. Stock is absent on purpose:
// only the ledger writes it.
type ProductPatch struct {
	Name  *string
	Code  *string
	Price *decimal.Decimal
	Cost  *decimal.Decimal
}

type Movement struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Type      MovementType    `json:"type"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Source    MovementSource  `json:"source"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Order struct {
	ID          string          `json:"id"`
	ExternalID  string          `json:"external_id,omitempty"`
	UserID      string          `json:"user_id"`
	PayMethod   PayMethod       `json:"pay_method"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}

// OrderItem keeps a snapshot of the product as it was when the order was placed.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Reservation struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"order_id"`
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// User is the slice of the external identity record this service reads.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
