package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

// ProductRepository moves stock with conditional updates so concurrent
// reservations can never drive a row below zero.
type ProductRepository struct {
	db *gorm.DB
}

// Put inserts or replaces a catalog product. Used for seeding.
func (r *ProductRepository) Put(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}
	if p.StockQuantity < 0 {
		return domain.ErrInvalidQuantity
	}
	rec := newProductRecord(p)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// List returns every product ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	var recs []productRecord
	if err := r.db.WithContext(ctx).Order("product_id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Product, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *ProductRepository) FindActive(ctx context.Context, id string) (*domain.Product, error) {
	rec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, domain.ErrNotFound
	}
	return rec.toDomain(), nil
}

func (r *ProductRepository) Decrement(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	res := r.db.WithContext(ctx).Model(&productRecord{}).
		Where("product_id = ? AND is_active = ? AND stock_quantity >= ?", id, true, quantity).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", quantity),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	rec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if !rec.IsActive {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.StockError{ProductID: id, Available: rec.StockQuantity, Requested: quantity}
	}
	return rec.toDomain(), nil
}

func (r *ProductRepository) Increment(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	res := r.db.WithContext(ctx).Model(&productRecord{}).
		Where("product_id = ?", id).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", quantity),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	rec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (r *ProductRepository) find(ctx context.Context, id string) (productRecord, error) {
	var rec productRecord
	err := r.db.WithContext(ctx).Where("product_id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, domain.ErrNotFound
	}
	return rec, err
}
