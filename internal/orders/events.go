package orders

import "github.com/shopspring/decimal"

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderConfirmed = "OrderConfirmed"
)

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID    string          `json:"order_id"`
	ExternalID string          `json:"external_id,omitempty"`
	UserID     string          `json:"user_id"`
	PayMethod  string          `json:"pay_method"`
	Items      []ItemPrice     `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Reserved   bool            `json:"reserved"`
}

type OrderConfirmedPayload struct {
	OrderID     string          `json:"order_id"`
	Items       []ItemQty       `json:"items"`
	MovementIDs []string        `json:"movement_ids"`
	Total       decimal.Decimal `json:"total"`
}
