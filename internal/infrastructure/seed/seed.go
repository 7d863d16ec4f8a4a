// Package seed loads the initial catalog and user set.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

// Data is the seed file layout.
type Data struct {
	Products []*product.Product `json:"products"`
	Users    []string           `json:"users"`
}

type ProductWriter interface {
	Put(ctx context.Context, p *product.Product) error
}

type UserWriter interface {
	Add(ctx context.Context, id string) error
}

// Default is used when no seed file is configured.
func Default() Data {
	return Data{
		Products: []*product.Product{
			{ID: "prod-mug", Name: "Ceramic Mug", SKU: "MUG-001", Price: 1200, StockQuantity: 100, IsActive: true},
			{ID: "prod-tee", Name: "Logo T-Shirt", SKU: "TEE-001", Price: 2500, StockQuantity: 50, IsActive: true},
			{ID: "prod-cap", Name: "Baseball Cap", SKU: "CAP-001", Price: 1800, StockQuantity: 25, IsActive: true},
			{ID: "prod-old", Name: "Discontinued Poster", SKU: "PST-001", Price: 900, StockQuantity: 10, IsActive: false},
		},
		Users: []string{"demo-user", "demo-admin"},
	}
}

// Load reads path, or returns Default when path is empty.
func Load(path string) (Data, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	return d, nil
}

// Apply writes every product and user. Existing rows are replaced.
func (d Data) Apply(ctx context.Context, products ProductWriter, users UserWriter) error {
	for _, p := range d.Products {
		if err := products.Put(ctx, p); err != nil {
			return fmt.Errorf("seed: product %s: %w", p.ID, err)
		}
	}
	for _, id := range d.Users {
		if err := users.Add(ctx, id); err != nil {
			return fmt.Errorf("seed: user %s: %w", id, err)
		}
	}
	return nil
}
