package repository

import (
	"database/sql"
	"log/slog"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

// Accounts returns an AccountRepository using the current executor
func (s *Store) Accounts() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

// Transfers returns a TransferRepository using the current executor
func (s *Store) Transfers() domain.TransferRepository {
	return NewTransferRepository(s.executor, s.logger)
}

// Members returns a MemberRepository using the current executor
func (s *Store) Members() domain.MemberRepository {
	return NewMemberRepository(s.executor, s.logger)
}

// WithTransaction executes a function within a database transaction. This is
// the atomicity boundary for linked batches: every transfer appended inside
// fn commits as one unit or not at all.
func (s *Store) WithTransaction(fn func(*Store) error) error {
	// Only sql.DB can begin transactions
	db, ok := s.executor.(*sql.DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	txStore := &Store{
		executor: &TxWrapper{Tx: tx},
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
