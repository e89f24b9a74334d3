package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"prism/internal/store"
	"prism/internal/store/model"

	"gorm.io/gorm"
)

const maxHistoryLimit = 500

type decisionRepo struct {
	db *gorm.DB
}

// NewDecisionRepo creates the decision ledger repository.
func NewDecisionRepo(db *gorm.DB) *decisionRepo {
	return &decisionRepo{db: db}
}

func (r *decisionRepo) Insert(ctx context.Context, d *model.DecisionModel) error {
	if d == nil {
		return errors.New("decision cannot be nil")
	}
	if d.ID != 0 {
		return errors.New("decisions are append-only")
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *decisionRepo) RecentByAsset(ctx context.Context, asset string, limit int) ([]model.DecisionModel, error) {
	var out []model.DecisionModel
	q := r.db.WithContext(ctx).
		Where("asset = ?", asset).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *decisionRepo) List(ctx context.Context, query store.DecisionQuery) ([]model.DecisionModel, error) {
	out := make([]model.DecisionModel, 0)
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if asset := strings.TrimSpace(query.Asset); asset != "" {
		q = q.Where("asset = ?", asset)
	}
	if query.Limit > 0 {
		limit := query.Limit
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
