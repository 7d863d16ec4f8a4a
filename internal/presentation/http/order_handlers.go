package httppresentation

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apporder "github.com/Zhima-Mochi/minishop-commerce/internal/application/order"
	domorder "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
)

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	method, err := req.validate()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	id, authenticated := identityFrom(r.Context())
	if !authenticated && strings.TrimSpace(req.UserEmail) == "" {
		h.writeDomainError(w, r, errUnauthenticated)
		return
	}

	cmd := apporder.CreateOrderInput{
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(headerIdempotencyKey)),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		Items:           make([]apporder.LineInput, 0, len(req.Items)),
	}
	// A bearer token makes the token's user the owner; user_email is ignored.
	if authenticated {
		cmd.UserID = id.UserID
	} else {
		cmd.GuestEmail = strings.TrimSpace(req.UserEmail)
	}
	for _, it := range req.Items {
		line := apporder.LineInput{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity}
		if it.Price != nil {
			line.Price = *it.Price
		}
		cmd.Items = append(cmd.Items, line)
	}

	o, err := h.orders.Execute(r.Context(), cmd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paging(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result, err := h.lifecycle.List(r.Context(), domorder.ListQuery{
		Page:   page,
		Limit:  limit,
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderPageResponse(result))
}

func (h *Handler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paging(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	id, _ := identityFrom(r.Context())
	result, err := h.lifecycle.Mine(r.Context(), id.UserID, page, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderPageResponse(result))
}

func (h *Handler) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.lifecycle.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "id"), scopeFor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		h.writeDomainError(w, r, invalid("status", "is required"))
		return
	}

	o, err := h.lifecycle.UpdateStatus(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Status))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *Handler) handleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if strings.TrimSpace(req.PaymentStatus) == "" {
		h.writeDomainError(w, r, invalid("payment_status", "is required"))
		return
	}

	o, err := h.lifecycle.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"),
		strings.TrimSpace(req.PaymentStatus), strings.TrimSpace(req.TransactionID))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.lifecycle.Cancel(r.Context(), chi.URLParam(r, "id"), scopeFor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// scopeFor limits customers to their own orders; admins see every order.
func scopeFor(r *http.Request) domorder.Scope {
	id, _ := identityFrom(r.Context())
	if id.IsAdmin() {
		return domorder.Scope{}
	}
	return domorder.Scope{UserID: id.UserID}
}

func paging(r *http.Request) (page, limit int, err error) {
	q := r.URL.Query()
	if page, err = intParam(q.Get("page"), "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(name, "must be an integer")
	}
	return n, nil
}
