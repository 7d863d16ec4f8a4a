package httppresentation

import (
	"strconv"
	"strings"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (r *addCartItemRequest) validate() error {
	r.ProductID = strings.TrimSpace(r.ProductID)
	if r.ProductID == "" {
		return invalid("product_id", "is required")
	}
	if r.Quantity <= 0 {
		return invalid("quantity", "must be greater than zero")
	}
	return nil
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (r *updateCartItemRequest) validate() error {
	if r.Quantity == nil {
		return invalid("quantity", "is required")
	}
	if *r.Quantity < 0 {
		return invalid("quantity", "must be zero or greater")
	}
	return nil
}

type checkoutRequest struct {
	Email           string `json:"email"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

func (r *checkoutRequest) validate(guest bool) (payment.Method, error) {
	r.Email = strings.TrimSpace(r.Email)
	if guest && r.Email == "" {
		return "", invalid("email", "is required for guest checkout")
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return "", invalid("shipping_address", "is required")
	}
	method, err := payment.ParseMethod(r.PaymentMethod)
	if err != nil {
		return "", invalid("payment_method", err.Error())
	}
	return method, nil
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     *int64 `json:"price,omitempty"`
}

type createOrderRequest struct {
	UserEmail       string             `json:"user_email"`
	Items           []orderLineRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
}

func (r *createOrderRequest) validate() (payment.Method, error) {
	if len(r.Items) == 0 {
		return "", invalid("items", "at least one item is required")
	}
	for i, it := range r.Items {
		field := "items[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(it.ProductID) == "" {
			return "", invalid(field+".product_id", "is required")
		}
		if it.Quantity <= 0 {
			return "", invalid(field+".quantity", "must be greater than zero")
		}
		if it.Price != nil && *it.Price < 0 {
			return "", invalid(field+".price", "must be zero or greater")
		}
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return "", invalid("shipping_address", "is required")
	}
	method, err := payment.ParseMethod(r.PaymentMethod)
	if err != nil {
		return "", invalid("payment_method", err.Error())
	}
	return method, nil
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id"`
}

type orderResponse struct {
	OrderID         string           `json:"order_id"`
	UserID          string           `json:"user_id,omitempty"`
	UserEmail       string           `json:"user_email,omitempty"`
	Status          domorder.Status  `json:"status"`
	TotalAmount     int64            `json:"total_amount"`
	ShippingAddress string           `json:"shipping_address"`
	PaymentMethod   payment.Method   `json:"payment_method,omitempty"`
	PaymentStatus   payment.Status   `json:"payment_status"`
	Items           []domorder.Item  `json:"items"`
	Payment         *payment.Payment `json:"payment,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func newOrderResponse(o *domorder.Order) orderResponse {
	resp := orderResponse{
		OrderID:         o.ID,
		UserID:          o.UserID,
		UserEmail:       o.GuestEmail,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentStatus:   o.PaymentStatus(),
		Items:           o.Items,
		Payment:         o.Payment,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if resp.Items == nil {
		resp.Items = []domorder.Item{}
	}
	if o.Payment != nil {
		resp.PaymentMethod = o.Payment.Method
	}
	return resp
}

type orderPageResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

func newOrderPageResponse(p domorder.Page) orderPageResponse {
	resp := orderPageResponse{Orders: make([]orderResponse, 0, len(p.Orders)), Total: p.Total, Page: p.Page, Limit: p.Limit}
	for _, o := range p.Orders {
		resp.Orders = append(resp.Orders, newOrderResponse(o))
	}
	return resp
}
