package sqlite

import (
	"context"
	"errors"
	"time"

	"prism/internal/store/model"

	"gorm.io/gorm"
)

type creditRepo struct {
	db *gorm.DB
}

func NewCreditRepo(db *gorm.DB) *creditRepo {
	return &creditRepo{db: db}
}

func (r *creditRepo) Append(ctx context.Context, entry *model.CreditEntryModel) error {
	if entry == nil {
		return errors.New("credit entry cannot be nil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *creditRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.CreditEntryModel, error) {
	var out []model.CreditEntryModel
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
