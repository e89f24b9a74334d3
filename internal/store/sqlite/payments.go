package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prism/internal/store"
	"prism/internal/store/model"

	"gorm.io/gorm"
)

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) *paymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Insert(ctx context.Context, p *model.PaymentModel) error {
	if p == nil {
		return errors.New("payment cannot be nil")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s: %w", p.TransactionID, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.PaymentModel, error) {
	var out []model.PaymentModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
