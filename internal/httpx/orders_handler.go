package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/orders"
	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	headerUserID         = "X-User-Id"
	headerIdempotencyKey = "Idempotency-Key"
)

type OrdersHandler struct {
	Orders *orders.Service
	// Redis is optional; without it every read goes to the store.
	Redis redis.Cmdable
	Log   *zap.Logger
}

type ItemReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderReq struct {
	ExternalID string    `json:"external_id" validate:"max=120"`
	PayMethod  string    `json:"pay_method" validate:"required,oneof=CASH TRANSFER"`
	Items      []ItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResp struct {
	Order      *model.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/reports/today", h.revenueToday)
		r.Get("/reports/month", h.revenueMonth)
		r.Get("/reports/top-products", h.topProducts)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/confirm", h.confirmOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		writeError(w, h.Log, apperr.Validation("%s header is required", headerUserID))
		return
	}
	var req CreateOrderReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey)); key != "" {
		req.ExternalID = key
	}
	ctx := r.Context()

	// Fast path: a replay whose order id is already known skips the write path.
	if prev := h.replay(ctx, req.ExternalID, userID); prev != nil {
		writeJSON(w, http.StatusOK, CreateOrderResp{Order: prev, Idempotent: true})
		return
	}

	items := make([]orders.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o, existed, err := h.Orders.Create(ctx, orders.CreateInput{
		ExternalID: req.ExternalID,
		UserID:     userID,
		PayMethod:  model.PayMethod(req.PayMethod),
		Items:      items,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	if h.Redis != nil && o.ExternalID != "" {
		if err := redisx.RememberOrder(ctx, h.Redis, o.ExternalID, o.ID); err != nil {
			h.Log.Warn("remember idempotency key", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	h.cacheOrder(ctx, o)

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, CreateOrderResp{Order: o, Idempotent: existed})
}

// replay returns the order a known key points at when it is userID's. Any
// other outcome falls through to Create, which has the final say.
func (h *OrdersHandler) replay(ctx context.Context, externalID, userID string) *model.Order {
	if h.Redis == nil || externalID == "" {
		return nil
	}
	id, ok, err := redisx.LookupOrder(ctx, h.Redis, externalID)
	if err != nil || !ok {
		return nil
	}
	o, err := h.Orders.GetByID(ctx, id)
	if err != nil || o.UserID != userID {
		return nil
	}
	return o
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *model.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err == nil {
		err = redisx.CacheStatus(ctx, h.Redis, o.ID, b)
	}
	if err != nil {
		h.Log.Warn("cache order", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	// 1) cache
	if h.Redis != nil {
		if b, ok, err := redisx.CachedStatus(ctx, h.Redis, orderID); err == nil && ok {
			writeJSON(w, http.StatusOK, json.RawMessage(b))
			return
		}
	}

	// 2) store
	o, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	o, err := h.Orders.Confirm(ctx, id)
	if err != nil {
		// A conflict means another request moved the order; the cached view is stale.
		if h.Redis != nil && apperr.Is(err, apperr.KindConflict) {
			_ = redisx.DropStatus(ctx, h.Redis, id)
		}
		writeError(w, h.Log, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	q := r.URL.Query()
	res, err := h.Orders.List(r.Context(), orders.OrderQuery{
		Page:      page,
		Status:    q.Get("status"),
		UserID:    q.Get("user_id"),
		PayMethod: q.Get("pay_method"),
		Date:      q.Get("date"),
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) revenueToday(w http.ResponseWriter, r *http.Request) {
	day, err := h.Orders.RevenueToday(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *OrdersHandler) revenueMonth(w http.ResponseWriter, r *http.Request) {
	days, err := h.Orders.RevenueThisMonth(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *OrdersHandler) topProducts(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	top, err := h.Orders.TopProductsThisMonth(r.Context(), n)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}
