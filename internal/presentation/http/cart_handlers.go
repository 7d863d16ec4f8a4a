package httppresentation

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appcart "github.com/Zhima-Mochi/minishop-commerce/internal/application/cart"
)

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Get(r.Context(), cartOwner(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCartSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cart.Summary(r.Context(), cartOwner(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	view, err := h.cart.AddItem(r.Context(), cartOwner(r), req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	view, err := h.cart.UpdateItem(r.Context(), cartOwner(r), chi.URLParam(r, "productID"), *req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.RemoveItem(r.Context(), cartOwner(r), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Clear(r.Context(), cartOwner(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleMergeCart folds the X-Session-ID cart into the caller's cart. Without
// the header the caller's cart is returned as is.
func (h *Handler) handleMergeCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	sessionID := strings.TrimSpace(r.Header.Get(headerSessionID))

	view, err := h.cart.Merge(r.Context(), sessionID, id.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	owner := cartOwner(r)
	method, err := req.validate(!owner.IsUser())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	in := appcart.CheckoutInput{
		Owner:           owner,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(headerIdempotencyKey)),
	}
	if !owner.IsUser() {
		in.GuestEmail = req.Email
	}

	o, err := h.cart.Checkout(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(o))
}
