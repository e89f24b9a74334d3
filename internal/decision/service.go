// Package decision gates analysis behind the credit quota and serves the
// decision history.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/logger"
	"prism/internal/metrics"
	"prism/internal/store"
	"prism/internal/store/model"
)

var (
	ErrInsufficientCredits = errors.New("trial limit reached, please upgrade to continue")
	ErrForbidden           = errors.New("decisions can only be submitted for the authenticated user")
)

// Recorder receives analysis outcomes.
type Recorder interface {
	ObserveAnalysis(outcome string)
}

// Outcome is the analysis plus the caller's remaining balance.
type Outcome struct {
	analysis.Result
	UserCredits int `json:"user_credits"`
}

// Options configures the credit gate.
type Options struct {
	ChargeMode string
}

type Service struct {
	store    store.Store
	engine   *analysis.Engine
	recorder Recorder
	atomic   bool
}

func NewService(st store.Store, engine *analysis.Engine, recorder Recorder, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if engine == nil {
		return nil, errors.New("analysis engine is required")
	}
	return &Service{
		store:    st,
		engine:   engine,
		recorder: recorder,
		atomic:   config.CreditsConfig{ChargeMode: opts.ChargeMode}.IsAtomic(),
	}, nil
}

// Analyze charges one credit and runs the engine for user. In atomic mode a
// failed analysis leaves the balance untouched; in legacy mode the charge
// commits before the engine runs and is never refunded.
func (s *Service) Analyze(ctx context.Context, user *model.UserModel, in analysis.Input) (Outcome, error) {
	if user == nil {
		return Outcome{}, errors.New("authenticated user is required")
	}
	if err := in.Validate(); err != nil {
		return Outcome{}, err
	}
	if in.UserID != nil && *in.UserID != user.ID {
		return Outcome{}, ErrForbidden
	}
	owner := user.ID
	in.UserID = &owner

	var (
		out Outcome
		err error
	)
	if s.atomic {
		out, err = s.analyzeAtomic(ctx, user.ID, in)
	} else {
		out, err = s.analyzeLegacy(ctx, user.ID, in)
	}
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		s.observe(metrics.OutcomeDenied)
		logger.Infof("analysis denied user=%d asset=%s: no credits", user.ID, in.Asset)
		return Outcome{}, err
	case err != nil:
		s.observe(metrics.OutcomeFailed)
		return Outcome{}, err
	}
	if out.BiasDetected {
		s.observe(metrics.OutcomeBiased)
	} else {
		s.observe(metrics.OutcomeNeutral)
	}
	s.audit(in, out)
	return out, nil
}

func (s *Service) analyzeAtomic(ctx context.Context, userID uint64, in analysis.Input) (Outcome, error) {
	var out Outcome
	err := store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		balance, err := debit(ctx, uow, userID)
		if err != nil {
			return err
		}
		result, row, err := s.engine.Analyze(ctx, uow.Decisions(), in)
		if err != nil {
			return err
		}
		if err := appendCharge(ctx, uow, userID, balance, &row.ID); err != nil {
			return err
		}
		out = Outcome{Result: result, UserCredits: balance}
		return nil
	})
	return out, err
}

func (s *Service) analyzeLegacy(ctx context.Context, userID uint64, in analysis.Input) (Outcome, error) {
	var balance int
	err := store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		var err error
		if balance, err = debit(ctx, uow, userID); err != nil {
			return err
		}
		return appendCharge(ctx, uow, userID, balance, nil)
	})
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err = store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		result, _, err := s.engine.Analyze(ctx, uow.Decisions(), in)
		if err != nil {
			return err
		}
		out = Outcome{Result: result, UserCredits: balance}
		return nil
	})
	if err != nil {
		logger.Warnf("analysis failed after charge, credit not refunded user=%d balance=%d: %v", userID, balance, err)
		return Outcome{}, err
	}
	return out, nil
}

// History lists decisions newest first.
func (s *Service) History(ctx context.Context, q store.DecisionQuery) ([]model.DecisionModel, error) {
	var out []model.DecisionModel
	err := store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		rows, err := uow.Decisions().List(ctx, q)
		if err != nil {
			return err
		}
		out = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if out == nil {
		out = []model.DecisionModel{}
	}
	return out, nil
}

func debit(ctx context.Context, uow store.UnitOfWork, userID uint64) (int, error) {
	balance, err := uow.Users().DebitCredit(ctx, userID)
	if errors.Is(err, store.ErrNoCredits) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("debit credit: %w", err)
	}
	return balance, nil
}

func appendCharge(ctx context.Context, uow store.UnitOfWork, userID uint64, balance int, decisionID *uint64) error {
	entry := &model.CreditEntryModel{
		UserID:       userID,
		Delta:        -1,
		BalanceAfter: balance,
		Reason:       model.CreditReasonAnalysis,
		DecisionID:   decisionID,
	}
	if err := uow.Credits().Append(ctx, entry); err != nil {
		return fmt.Errorf("record credit charge: %w", err)
	}
	return nil
}

func (s *Service) observe(outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveAnalysis(outcome)
	}
}

func (s *Service) audit(in analysis.Input, out Outcome) {
	req, err := json.Marshal(in)
	if err != nil {
		return
	}
	res, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return
	}
	logger.LogAnalysis(in.Asset, string(req), string(res))
}
