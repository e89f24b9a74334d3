package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prism/internal/pkg/circuit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeRequest is what a PaymentGateway needs to take money.
type ChargeRequest struct {
	UserID   uint64
	Amount   decimal.Decimal
	Currency string
	Method   string
}

// Receipt identifies a completed charge.
type Receipt struct {
	TransactionID string
	Gateway       string
	ProcessedAt   time.Time
}

// PaymentGateway charges a customer. Implementations must return a unique
// transaction id per successful call.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}

// MockGateway approves every charge.
type MockGateway struct {
	now func() time.Time
}

func NewMockGateway() *MockGateway {
	return &MockGateway{now: time.Now}
}

func (g *MockGateway) Charge(ctx context.Context, _ ChargeRequest) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	return Receipt{
		TransactionID: uuid.NewString(),
		Gateway:       "mock",
		ProcessedAt:   g.now().UTC(),
	}, nil
}

// NewGateway builds the configured gateway.
func NewGateway(name string) (PaymentGateway, error) {
	switch name {
	case "", "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unsupported payment gateway %q", name)
	}
}

type breakerGateway struct {
	next PaymentGateway
	cb   *circuit.CircuitBreaker
}

// WithBreaker guards gw with cb; an open breaker yields ErrGatewayUnavailable.
func WithBreaker(gw PaymentGateway, cb *circuit.CircuitBreaker) PaymentGateway {
	if cb == nil {
		return gw
	}
	return &breakerGateway{next: gw, cb: cb}
}

func (b *breakerGateway) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	var receipt Receipt
	err := b.cb.Execute(func() error {
		var err error
		receipt, err = b.next.Charge(ctx, req)
		return err
	})
	if errors.Is(err, circuit.ErrOpen) {
		return Receipt{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return receipt, err
}
