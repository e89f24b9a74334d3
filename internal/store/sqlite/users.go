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

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a user repository bound to db (usually a transaction).
func NewUserRepo(db *gorm.DB) *userRepo {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.UserModel) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %q: %w", user.Email, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id uint64) (*model.UserModel, error) {
	var user model.UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail matches the email exactly; no case folding.
func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.UserModel, error) {
	var user model.UserModel
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) DebitCredit(ctx context.Context, id uint64) (int, error) {
	res := r.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ? AND credits > 0", id).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, store.ErrNoCredits
	}
	return r.balance(ctx, id)
}

func (r *userRepo) GrantCredits(ctx context.Context, id uint64, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("grant must be >= 0, got %d", n)
	}
	res := r.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + ?", n),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, store.ErrNotFound
	}
	return r.balance(ctx, id)
}

func (r *userRepo) UpdateSubscription(ctx context.Context, id uint64, tier model.Tier, currency string) error {
	res := r.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"subscription_status": tier,
			"currency_pref":       currency,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRepo) balance(ctx context.Context, id uint64) (int, error) {
	var credits int
	err := r.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Select("credits").
		Scan(&credits).Error
	return credits, err
}
