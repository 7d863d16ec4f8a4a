package cart

import (
	"context"
	"errors"
	"time"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

// ItemView is a cart line joined with the live catalog entry.
type ItemView struct {
	ProductID string           `json:"product_id"`
	Product   *product.Product `json:"product"`
	Quantity  int              `json:"quantity"`
	Price     int64            `json:"price"`
	Subtotal  int64            `json:"subtotal"`
	AddedAt   time.Time        `json:"added_at"`
}

// View is the cart as returned to callers. Totals are recomputed from live
// prices on every read.
type View struct {
	Owner     domain.Owner `json:"owner"`
	Items     []ItemView   `json:"items"`
	Total     int64        `json:"total"`
	ItemCount int          `json:"item_count"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type Summary struct {
	ItemCount int   `json:"item_count"`
	Total     int64 `json:"total"`
}

func (v *View) Summary() Summary {
	return Summary{ItemCount: v.ItemCount, Total: v.Total}
}

// enrich builds the view for c. Lines whose product is missing or inactive
// are left out of the view; storage is not touched.
func enrich(ctx context.Context, catalog Catalog, c *domain.Cart) (*View, error) {
	v := &View{
		Owner:     c.Owner,
		Items:     make([]ItemView, 0, len(c.Lines)),
		UpdatedAt: c.UpdatedAt,
	}
	for _, l := range c.Lines {
		p, err := catalog.FindActive(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return nil, err
		}
		subtotal := p.Price * int64(l.Quantity)
		v.Items = append(v.Items, ItemView{
			ProductID: l.ProductID,
			Product:   p,
			Quantity:  l.Quantity,
			Price:     p.Price,
			Subtotal:  subtotal,
			AddedAt:   l.AddedAt,
		})
		v.Total += subtotal
		v.ItemCount += l.Quantity
	}
	return v, nil
}
