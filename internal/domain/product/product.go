package product

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

// StockError reports a reservation that exceeds the available stock.
// It matches ErrInsufficientStock under errors.Is.
type StockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product: insufficient stock for %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// Product is the catalog entity referenced by carts and orders.
// Price is expressed in minor currency units.
type Product struct {
	ID            string    `json:"product_id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Price         int64     `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CheckAvailable fails with a *StockError when quantity exceeds the current stock.
func (p *Product) CheckAvailable(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.StockQuantity {
		return &StockError{ProductID: p.ID, Available: p.StockQuantity, Requested: quantity}
	}
	return nil
}

// Deduct removes quantity from stock, never letting it go negative.
func (p *Product) Deduct(quantity int) error {
	if err := p.CheckAvailable(quantity); err != nil {
		return err
	}
	p.StockQuantity -= quantity
	p.touch()
	return nil
}

// Restock returns quantity to stock.
func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.StockQuantity += quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
