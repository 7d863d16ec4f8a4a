package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserDirectory answers user existence from the users table.
type UserDirectory struct {
	db *gorm.DB
}

func (d *UserDirectory) Add(ctx context.Context, id string) error {
	rec := userRecord{ID: id, CreatedAt: time.Now().UTC()}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (d *UserDirectory) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
