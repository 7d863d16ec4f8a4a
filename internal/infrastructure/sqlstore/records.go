package sqlstore

import (
	"time"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

type productRecord struct {
	ID            string    `gorm:"primaryKey;column:product_id;size:64"`
	Name          string    `gorm:"not null;size:255"`
	SKU           string    `gorm:"column:sku;size:64;index"`
	Price         int64     `gorm:"not null"`
	StockQuantity int       `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

func newProductRecord(p *product.Product) productRecord {
	return productRecord{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (r productRecord) toDomain() *product.Product {
	return &product.Product{
		ID:            r.ID,
		Name:          r.Name,
		SKU:           r.SKU,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		IsActive:      r.IsActive,
		UpdatedAt:     r.UpdatedAt,
	}
}

type userRecord struct {
	ID        string    `gorm:"primaryKey;column:user_id;size:64"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (userRecord) TableName() string { return "users" }

type orderRecord struct {
	ID              string  `gorm:"primaryKey;column:order_id;size:64"`
	UserID          *string `gorm:"column:user_id;size:64;index"`
	GuestEmail      *string `gorm:"column:user_email;size:255"`
	OwnerKey        string  `gorm:"column:owner_key;size:320;not null;uniqueIndex:idx_orders_idempotency"`
	IdempotencyKey  *string `gorm:"column:idempotency_key;size:128;uniqueIndex:idx_orders_idempotency"`
	Status          string  `gorm:"not null;size:16;index"`
	TotalAmount     int64   `gorm:"column:total_amount;not null"`
	ShippingAddress string  `gorm:"column:shipping_address;type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items   []orderItemRecord `gorm:"foreignKey:OrderID;references:ID"`
	Payment *paymentRecord    `gorm:"foreignKey:OrderID;references:ID"`
}

func (orderRecord) TableName() string { return "orders" }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newOrderRecord(o *order.Order) orderRecord {
	return orderRecord{
		ID:              o.ID,
		UserID:          optional(o.UserID),
		GuestEmail:      optional(o.GuestEmail),
		OwnerKey:        o.Owner().Key(),
		IdempotencyKey:  optional(o.IdempotencyKey),
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (r orderRecord) toDomain() *order.Order {
	o := &order.Order{
		ID:              r.ID,
		UserID:          deref(r.UserID),
		GuestEmail:      deref(r.GuestEmail),
		Status:          order.Status(r.Status),
		TotalAmount:     r.TotalAmount,
		ShippingAddress: r.ShippingAddress,
		IdempotencyKey:  deref(r.IdempotencyKey),
		Items:           make([]order.Item, 0, len(r.Items)),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, it := range r.Items {
		o.Items = append(o.Items, it.toDomain())
	}
	if r.Payment != nil {
		o.Payment = r.Payment.toDomain()
	}
	return o
}

type orderItemRecord struct {
	ID        string `gorm:"primaryKey;column:order_item_id;size:64"`
	OrderID   string `gorm:"column:order_id;size:64;not null;index"`
	ProductID string `gorm:"column:product_id;size:64;not null"`
	Quantity  int    `gorm:"not null"`
	Price     int64  `gorm:"not null"`
}

func (orderItemRecord) TableName() string { return "order_items" }

func (r orderItemRecord) toDomain() order.Item {
	return order.Item{
		ID:        r.ID,
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Subtotal:  int64(r.Quantity) * r.Price,
	}
}

type paymentRecord struct {
	ID             string    `gorm:"primaryKey;column:payment_id;size:64"`
	OrderID        string    `gorm:"column:order_id;size:64;not null;uniqueIndex"`
	Method         string    `gorm:"column:payment_method;size:32;not null"`
	Amount         int64     `gorm:"not null"`
	Status         string    `gorm:"size:16;not null"`
	TransactionRef *string   `gorm:"column:transaction_id;size:128"`
	CreatedAt      time.Time `gorm:"column:payment_date"`
	UpdatedAt      time.Time
}

func (paymentRecord) TableName() string { return "payments" }

func newPaymentRecord(p *payment.Payment) paymentRecord {
	return paymentRecord{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Method:         string(p.Method),
		Amount:         p.Amount,
		Status:         string(p.Status),
		TransactionRef: optional(p.TransactionRef),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (r paymentRecord) toDomain() *payment.Payment {
	return &payment.Payment{
		ID:             r.ID,
		OrderID:        r.OrderID,
		Method:         payment.Method(r.Method),
		Amount:         r.Amount,
		Status:         payment.Status(r.Status),
		TransactionRef: deref(r.TransactionRef),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
