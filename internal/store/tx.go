package store

import (
	"context"
	"errors"
	"fmt"
)

// WithinTx runs fn inside a unit of work. The transaction commits when fn
// returns nil and rolls back on every other path, including panics.
func WithinTx(ctx context.Context, s Store, fn func(UnitOfWork) error) (err error) {
	if s == nil {
		return errors.New("store is nil")
	}
	uow, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback()
			panic(p)
		}
		if err != nil {
			_ = uow.Rollback()
		}
	}()
	if err = fn(uow); err != nil {
		return err
	}
	if err = uow.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
