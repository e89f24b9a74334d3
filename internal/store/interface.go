package store

import (
	"context"
	"errors"

	"prism/internal/store/model"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNoCredits is returned by Users().DebitCredit when the balance is not positive.
	ErrNoCredits = errors.New("insufficient credits")
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction. It is a no-op after Commit.
	Rollback() error

	Users() UserRepository
	Decisions() DecisionRepository
	Credits() CreditRepository
	Payments() PaymentRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Ping checks the underlying connection.
	Ping(ctx context.Context) error
	// Close closes the store connection.
	Close() error
}

// UserRepository handles credential store persistence.
type UserRepository interface {
	Create(ctx context.Context, user *model.UserModel) error
	FindByID(ctx context.Context, id uint64) (*model.UserModel, error)
	FindByEmail(ctx context.Context, email string) (*model.UserModel, error)
	// DebitCredit atomically decrements credits by one when the balance is
	// positive and returns the new balance.
	DebitCredit(ctx context.Context, id uint64) (int, error)
	// GrantCredits adds n credits and returns the new balance.
	GrantCredits(ctx context.Context, id uint64, n int) (int, error)
	UpdateSubscription(ctx context.Context, id uint64, tier model.Tier, currency string) error
}

// DecisionQuery filters the decision history.
type DecisionQuery struct {
	Asset string
	Limit int
}

// DecisionRepository is the append-only decision ledger.
type DecisionRepository interface {
	Insert(ctx context.Context, d *model.DecisionModel) error
	// RecentByAsset returns up to limit decisions for asset, newest first.
	RecentByAsset(ctx context.Context, asset string, limit int) ([]model.DecisionModel, error)
	// List returns decisions ordered by creation time descending.
	List(ctx context.Context, q DecisionQuery) ([]model.DecisionModel, error)
}

// CreditRepository records credit movements.
type CreditRepository interface {
	Append(ctx context.Context, entry *model.CreditEntryModel) error
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.CreditEntryModel, error)
}

// PaymentRepository records mock payment receipts.
type PaymentRepository interface {
	Insert(ctx context.Context, p *model.PaymentModel) error
	ListByUser(ctx context.Context, userID uint64) ([]model.PaymentModel, error)
}
