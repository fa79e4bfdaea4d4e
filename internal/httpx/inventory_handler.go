package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	Ledger *ledger.Service
	Log    *zap.Logger
}

type MovementReq struct {
	ProductID string           `json:"product_id" validate:"required"`
	Type      string           `json:"type" validate:"required,oneof=IN OUT"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
	Reference string           `json:"reference" validate:"max=120"`
}

func (m MovementReq) input() ledger.MovementInput {
	return ledger.MovementInput{
		ProductID: m.ProductID,
		Type:      model.MovementType(m.Type),
		Quantity:  m.Quantity,
		UnitCost:  m.UnitCost,
		Reference: m.Reference,
	}
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/", h.record)
		r.Post("/movement-only", h.recordOnly)
		r.Get("/", h.list)
		r.Get("/value", h.value)
	})
}

func (h *InventoryHandler) record(w http.ResponseWriter, r *http.Request) {
	var req MovementReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	m, err := h.Ledger.RecordMovement(r.Context(), req.input())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *InventoryHandler) recordOnly(w http.ResponseWriter, r *http.Request) {
	var req MovementReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	m, err := h.Ledger.RecordMovementOnly(r.Context(), req.input())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	q := r.URL.Query()
	res, err := h.Ledger.List(r.Context(), ledger.MovementQuery{
		Page: page, Type: q.Get("type"), Date: q.Get("date"), ProductID: q.Get("product_id"),
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InventoryHandler) value(w http.ResponseWriter, r *http.Request) {
	v, err := h.Ledger.TotalInventoryValue(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
