package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultBoardSize = 50

// AlertsHandler serves the low-stock board the worker maintains.
type AlertsHandler struct {
	Redis redis.Cmdable
	Log   *zap.Logger
}

func (h *AlertsHandler) Register(r chi.Router) {
	r.Get("/alerts/low-stock", h.lowStock)
}

func (h *AlertsHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if n <= 0 || n > defaultBoardSize {
		n = defaultBoardSize
	}
	board, err := redisx.LowStockBoard(r.Context(), h.Redis, n)
	if err != nil {
		h.Log.Error("read low-stock board", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Code: "UNAVAILABLE", Message: "alert board unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, board)
}
