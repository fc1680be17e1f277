package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/repository"
)

// DefaultTxAttempts bounds how often a conflicting transaction is run.
const DefaultTxAttempts = 3

// TxRunner runs units of work against a Store, retrying the whole unit when the database
// aborts it in favour of a concurrent transaction. Domain errors are returned as is.
type TxRunner struct {
	store       repository.Store
	maxAttempts uint
	newBackOff  func() backoff.BackOff
}

// NewTxRunner creates a runner making at most maxAttempts attempts per unit of work.
func NewTxRunner(store repository.Store, maxAttempts int) *TxRunner {
	if maxAttempts < 1 {
		maxAttempts = DefaultTxAttempts
	}
	return &TxRunner{
		store:       store,
		maxAttempts: uint(maxAttempts),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
}

// Run executes fn in a transaction. fn may run more than once and must not leak state
// between attempts other than through its final, successful run.
func (r *TxRunner) Run(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := r.store.WithinTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, repository.ErrTxConflict):
			slog.Warn("Transaction conflict", "op", op, "attempt", attempt, "err", err)
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(r.maxAttempts))

	if errors.Is(err, repository.ErrTxConflict) {
		return apperr.Storage("transaction aborted after repeated conflicts", err)
	}
	return err
}
