package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	domcart "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability/logctx"
)

const (
	codeInvalidInput      = "INVALID_INPUT"
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "CONFLICT"
	codeInsufficientStock = "INSUFFICIENT_STOCK"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeUnauthenticated   = "UNAUTHENTICATED"
	codeForbidden         = "FORBIDDEN"
	codeRateLimited       = "RATE_LIMITED"
	codeInternal          = "INTERNAL"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("admin role required")
	errRateLimited     = errors.New("too many requests")
)

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// fieldError rejects a request before any use case runs.
type fieldError struct {
	Field   string
	Message string
}

func (e *fieldError) Error() string { return e.Field + ": " + e.Message }

func invalid(field, msg string) error { return &fieldError{Field: field, Message: msg} }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: msg, Details: details}})
}

// writeDomainError maps err onto the error envelope. Unclassified errors are
// logged and answered with a generic 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fieldErr *fieldError
		stockErr *product.StockError
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &fieldErr):
		writeError(w, http.StatusBadRequest, codeInvalidInput, fieldErr.Message, map[string]any{"field": fieldErr.Field})
	case errors.As(err, &syntax), errors.As(err, &typeErr):
		writeError(w, http.StatusBadRequest, codeInvalidInput, "malformed request body", nil)
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error(), map[string]any{
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.Is(err, errUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, err.Error(), nil)
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error(), nil)
	case errors.Is(err, errRateLimited):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, err.Error(), nil)
	case errors.Is(err, domorder.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error(), nil)
	case errors.Is(err, domorder.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, err.Error(), nil)
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcart.ErrItemNotFound),
		errors.Is(err, domcart.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, domcart.ErrInvalidOwner),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, product.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidOwner),
		errors.Is(err, domorder.ErrNoItems),
		errors.Is(err, domorder.ErrInvalidItem),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidPrice),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, payment.ErrInvalidStatus),
		errors.Is(err, payment.ErrInvalidMethod):
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error(), nil)
	default:
		logctx.FromOr(r.Context(), h.log).Error("http_internal_error",
			observability.F("route", routeFromContext(r.Context())),
			observability.F("error", err),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}
