// Package subscription upgrades users to the premium tier through a
// pluggable payment gateway.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"prism/internal/gateway/notifier"
	"prism/internal/logger"
	"prism/internal/store"
	"prism/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidPayment     = errors.New("invalid payment")
)

// Request is the upgrade payload.
type Request struct {
	UserID   uint64          `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Method   string          `json:"method"`
}

// Result confirms a processed upgrade.
type Result struct {
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Tier          model.Tier `json:"tier"`
}

// Recorder receives payment outcomes.
type Recorder interface {
	ObservePayment(status string)
}

type Options struct {
	// PremiumCreditGrant is added to the balance on every upgrade.
	PremiumCreditGrant int
	NotifyTimeout      time.Duration
}

type Service struct {
	store    store.Store
	gateway  PaymentGateway
	notifier notifier.TextNotifier
	recorder Recorder
	opts     Options
	wg       sync.WaitGroup
}

func NewService(st store.Store, gw PaymentGateway, n notifier.TextNotifier, rec Recorder, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if gw == nil {
		return nil, errors.New("payment gateway is required")
	}
	if n == nil {
		n = notifier.Nop{}
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	return &Service{store: st, gateway: gw, notifier: n, recorder: rec, opts: opts}, nil
}

// Process charges the user and flips them to PREMIUM. Repeated calls charge
// again and return a new transaction id.
func (s *Service) Process(ctx context.Context, req Request) (Result, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.Method = strings.TrimSpace(req.Method)
	if err := validate(req); err != nil {
		return Result{}, err
	}

	err := store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		_, err := uow.Users().FindByID(ctx, req.UserID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, ErrUserNotFound
	}
	if err != nil {
		return Result{}, err
	}

	receipt, err := s.gateway.Charge(ctx, ChargeRequest{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.Method,
	})
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			s.observe("unavailable")
		} else {
			s.observe("failed")
		}
		return Result{}, fmt.Errorf("charge: %w", err)
	}

	balance := -1
	err = store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		if err := uow.Users().UpdateSubscription(ctx, req.UserID, model.TierPremium, req.Currency); err != nil {
			return err
		}
		meta, err := json.Marshal(map[string]any{
			"gateway":      receipt.Gateway,
			"processed_at": receipt.ProcessedAt,
		})
		if err != nil {
			return err
		}
		if err := uow.Payments().Insert(ctx, &model.PaymentModel{
			TransactionID: receipt.TransactionID,
			UserID:        req.UserID,
			Amount:        req.Amount.String(),
			Currency:      req.Currency,
			Method:        req.Method,
			Status:        model.PaymentStatusSuccess,
			Metadata:      datatypes.JSON(meta),
		}); err != nil {
			return err
		}
		if s.opts.PremiumCreditGrant <= 0 {
			return nil
		}
		if balance, err = uow.Users().GrantCredits(ctx, req.UserID, s.opts.PremiumCreditGrant); err != nil {
			return err
		}
		return uow.Credits().Append(ctx, &model.CreditEntryModel{
			UserID:       req.UserID,
			Delta:        s.opts.PremiumCreditGrant,
			BalanceAfter: balance,
			Reason:       model.CreditReasonPremiumGrant,
		})
	})
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, ErrUserNotFound
	}
	if err != nil {
		s.observe("failed")
		return Result{}, fmt.Errorf("record payment %s: %w", receipt.TransactionID, err)
	}
	s.observe("success")

	result := Result{
		Status:        "success",
		TransactionID: receipt.TransactionID,
		Amount:        req.Amount.InexactFloat64(),
		Currency:      req.Currency,
		Tier:          model.TierPremium,
	}
	logger.Infof("user=%d upgraded to %s tx=%s", req.UserID, model.TierPremium, receipt.TransactionID)
	if body, err := json.Marshal(result); err == nil {
		logger.LogPayment(fmt.Sprintf("user-%d", req.UserID), string(body))
	}
	s.announce(req, result, balance)
	return result, nil
}

// Wait blocks until pending notifications finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) announce(req Request, res Result, balance int) {
	lines := []string{
		fmt.Sprintf("user=%d", req.UserID),
		fmt.Sprintf("amount=%s %s", req.Amount.String(), res.Currency),
		"method=" + req.Method,
		"tx=" + res.TransactionID,
	}
	if balance >= 0 {
		lines = append(lines, fmt.Sprintf("credits=%d", balance))
	}
	text := notifier.StructuredMessage{
		Title:     "PRISM upgrade",
		Sections:  []notifier.MessageSection{{Title: "Payment", Lines: lines}},
		Footer:    "tier=" + string(res.Tier),
		Timestamp: time.Now(),
	}.RenderMarkdown()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.SendText(ctx, text); err != nil {
			logger.Warnf("upgrade notification failed tx=%s: %v", res.TransactionID, err)
		}
	}()
}

func (s *Service) observe(status string) {
	if s.recorder != nil {
		s.recorder.ObservePayment(status)
	}
}

func validate(req Request) error {
	switch {
	case req.Amount.IsNegative():
		return fmt.Errorf("%w: amount cannot be negative", ErrInvalidPayment)
	case req.Currency == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidPayment)
	case req.Method == "":
		return fmt.Errorf("%w: method is required", ErrInvalidPayment)
	}
	return nil
}
