package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-stock-ledger/internal/catalog"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	Catalog    *catalog.Service
	Ledger     *ledger.Service
	LowStockAt int
	Log        *zap.Logger
}

type CreateProductReq struct {
	Name  string           `json:"name" validate:"required,max=200"`
	Code  string           `json:"code" validate:"required,max=64"`
	Price *decimal.Decimal `json:"price" validate:"required"`
	Cost  *decimal.Decimal `json:"cost"`
	Stock int              `json:"stock" validate:"gte=0"`
}

type UpdateProductReq struct {
	Name  *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Code  *string          `json:"code" validate:"omitempty,min=1,max=64"`
	Price *decimal.Decimal `json:"price"`
	Cost  *decimal.Decimal `json:"cost"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/low-stock", h.lowStock)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Get("/{id}/reconcile", h.reconcile)
	})
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Catalog.Register(r.Context(), catalog.RegisterInput{
		Name: req.Name, Code: req.Code, Price: *req.Price, Cost: req.Cost, InitialStock: req.Stock,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	minPrice, err := queryDecimal(r, "min_price")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	maxPrice, err := queryDecimal(r, "max_price")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Catalog.List(r.Context(), catalog.ProductQuery{
		Page: page, Name: r.URL.Query().Get("name"), MinPrice: minPrice, MaxPrice: maxPrice,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ProductsHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if threshold <= 0 {
		threshold = h.LowStockAt
	}
	if threshold <= 0 {
		threshold = catalog.DefaultLowStockAt
	}
	ps, err := h.Catalog.LowStock(r.Context(), threshold)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Catalog.Update(r.Context(), chi.URLParam(r, "id"), model.ProductPatch{
		Name: req.Name, Code: req.Code, Price: req.Price, Cost: req.Cost,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Ledger.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
