package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/lib/pq"
)

// SQLSTATE codes the database uses to abort a transaction in favour of a concurrent one.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type store struct {
	db        *sql.DB
	isolation sql.IsolationLevel
}

// NewStore creates a Store backed by Postgres. Transactions run at isolation; row locks taken
// through the Tx keep read-committed safe for stock checks.
func NewStore(db *sql.DB, isolation sql.IsolationLevel) repository.Store {
	return &store{db: db, isolation: isolation}
}

func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *store) Products() repository.ProductRepository {
	return NewProductRepository(s.db)
}

func (s *store) Orders() repository.OrderRepository {
	return NewOrderRepository(s.db)
}

func (s *store) Events() repository.EventStore {
	return NewEventStore(s.db)
}

// classify marks errors that abort a transaction because of a concurrent one.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", repository.ErrTxConflict, err)
		}
	}
	return err
}
