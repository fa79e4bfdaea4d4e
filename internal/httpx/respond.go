package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the HTTP error body. Internal details are logged,
// never returned.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: apperr.KindInternal, Message: "internal error"})
		return
	}
	body := errorBody{Code: e.Kind, Message: e.Message}
	switch {
	case e.Shortage != nil:
		body.Details = e.Shortage
	case len(e.IDs) > 0:
		body.Details = map[string][]string{"ids": e.IDs}
	}
	writeJSON(w, statusFor(e.Kind), body)
}

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid json: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldMessage(fe))
			}
			return apperr.Validation("%s", strings.Join(msgs, "; "))
		}
		return apperr.Validation("%v", err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt", "gte", "min", "max":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer, got %q", name, s)
	}
	return n, nil
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, apperr.Validation("%s must be a number, got %q", name, s)
	}
	return &d, nil
}

func queryPage(r *http.Request) (model.Page, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return model.Page{}, err
	}
	if page > model.MaxPage {
		return model.Page{}, apperr.Validation("page must be at most %d, got %d", model.MaxPage, page)
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Page: page, Limit: limit}, nil
}
