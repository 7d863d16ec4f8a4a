package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
)

// OrderRepository maps order aggregates onto the orders, order_items and
// payments tables.
type OrderRepository struct {
	db *gorm.DB
}

func (r *OrderRepository) InsertHeader(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	rec := newOrderRecord(o)
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error
	if err != nil && isDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *OrderRepository) InsertItem(ctx context.Context, item *domain.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("order repository: item id is required")
	}
	if err := r.exists(ctx, item.OrderID); err != nil {
		return err
	}
	rec := orderItemRecord{
		ID:        item.ID,
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price,
	}
	err := r.db.WithContext(ctx).Create(&rec).Error
	if err != nil && isDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *OrderRepository) InsertPayment(ctx context.Context, p *payment.Payment) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("order repository: payment id is required")
	}
	if err := r.exists(ctx, p.OrderID); err != nil {
		return err
	}
	rec := newPaymentRecord(p)
	err := r.db.WithContext(ctx).Create(&rec).Error
	if err != nil && isDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var rec orderRecord
	err := r.loaded(ctx).Where("order_id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, ownerKey, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	var rec orderRecord
	err := r.loaded(ctx).
		Where("owner_key = ? AND idempotency_key = ?", ownerKey, key).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// UpdateStatus is a compare-and-set on the status column. Under READ
// COMMITTED a second writer blocks on the row lock, re-reads the committed
// status and matches no rows, so it never acts on a stale read.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	res := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("order_id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if err := r.exists(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: status is no longer %s", domain.ErrInvalidTransition, from)
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return fmt.Errorf("order repository: payment is required")
	}
	res := r.db.WithContext(ctx).Model(&paymentRecord{}).
		Where("payment_id = ? AND order_id = ?", p.ID, p.OrderID).
		Updates(map[string]any{
			"status":         string(p.Status),
			"transaction_id": optional(p.TransactionRef),
			"updated_at":     p.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, q domain.ListQuery) (domain.Page, error) {
	q = q.Normalize()
	page := domain.Page{Page: q.Page, Limit: q.Limit, Orders: []*domain.Order{}}

	filter := r.db.WithContext(ctx).Model(&orderRecord{})
	if q.UserID != "" {
		filter = filter.Where("user_id = ?", q.UserID)
	}
	var total int64
	if err := filter.Count(&total).Error; err != nil {
		return page, err
	}
	page.Total = int(total)

	var recs []orderRecord
	query := r.loaded(ctx)
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	err := query.
		Order("created_at DESC").Order("order_id DESC").
		Offset(q.Offset()).Limit(q.Limit).
		Find(&recs).Error
	if err != nil {
		return page, err
	}
	for _, rec := range recs {
		page.Orders = append(page.Orders, rec.toDomain())
	}
	return page, nil
}

type statusTotal struct {
	Status     string
	OrderCount int
	Revenue    int64
}

func (r *OrderRepository) Stats(ctx context.Context) (domain.Stats, error) {
	var rows []statusTotal
	err := r.db.WithContext(ctx).Model(&orderRecord{}).
		Select("status, COUNT(*) AS order_count, COALESCE(SUM(total_amount), 0) AS revenue").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.Stats{}, err
	}

	var stats domain.Stats
	for _, row := range rows {
		stats.TotalOrders += row.OrderCount
		switch domain.Status(row.Status) {
		case domain.StatusPending:
			stats.PendingOrders += row.OrderCount
		case domain.StatusProcessing:
			stats.ProcessingOrders += row.OrderCount
		case domain.StatusShipped:
			stats.ShippedOrders += row.OrderCount
		case domain.StatusDelivered:
			stats.DeliveredOrders += row.OrderCount
		case domain.StatusCancelled:
			stats.CancelledOrders += row.OrderCount
			continue
		}
		stats.TotalRevenue += row.Revenue
	}
	return stats, nil
}

func (r *OrderRepository) loaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_item_id") }).
		Preload("Payment")
}

func (r *OrderRepository) exists(ctx context.Context, id string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&orderRecord{}).Where("order_id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
