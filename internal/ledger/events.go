package ledger

import "github.com/ariefcatur/go-stock-ledger/internal/model"

const (
	EventMovementRecorded = "MovementRecorded"

	// Partition key = product id, so one product's movements stay ordered.
	TopicMovementRecorded = "ledger.movement.recorded"
)

type MovementRecordedPayload struct {
	MovementID string               `json:"movement_id"`
	ProductID  string               `json:"product_id"`
	Type       model.MovementType   `json:"type"`
	Quantity   int                  `json:"quantity"`
	Source     model.MovementSource `json:"source"`
	Reference  string               `json:"reference,omitempty"`
	StockAfter int                  `json:"stock_after"`
}
