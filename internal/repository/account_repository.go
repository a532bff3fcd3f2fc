package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate upserts the account identified by (owner, group, ledger, kind).
// ON CONFLICT DO NOTHING backed by the unique constraint makes concurrent
// first-touch calls race-safe: the loser's insert is a no-op and the
// follow-up select reads the winner's row. "Already exists" is the expected
// steady state, never an error.
func (r *accountRepository) GetOrCreate(ownerID, groupID string, ledger domain.Ledger, kind domain.AccountKind) (*domain.Account, error) {
	insert := `
		INSERT INTO accounts (owner_id, group_id, ledger, kind, closed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (owner_id, group_id, ledger, kind) DO NOTHING
	`

	if _, err := r.db.Exec(insert, ownerID, groupID, ledger, kind, time.Now()); err != nil {
		r.logger.Error("Failed to upsert account",
			"owner_id", ownerID, "group_id", groupID, "ledger", ledger, "kind", kind, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to upsert account").WithDetails(err.Error())
	}

	query := `
		SELECT id, owner_id, group_id, ledger, kind, closed, created_at
		FROM accounts
		WHERE owner_id = $1 AND group_id = $2 AND ledger = $3 AND kind = $4
	`

	return r.scanAccount(query, ownerID, groupID, ledger, kind)
}

// Find reads an account by identity without the upsert. Queries go through
// here so a balance lookup never provisions rows.
func (r *accountRepository) Find(ownerID, groupID string, ledger domain.Ledger, kind domain.AccountKind) (*domain.Account, error) {
	query := `
		SELECT id, owner_id, group_id, ledger, kind, closed, created_at
		FROM accounts
		WHERE owner_id = $1 AND group_id = $2 AND ledger = $3 AND kind = $4
	`

	return r.scanAccount(query, ownerID, groupID, ledger, kind)
}

func (r *accountRepository) GetByID(id int64) (*domain.Account, error) {
	query := `
		SELECT id, owner_id, group_id, ledger, kind, closed, created_at
		FROM accounts WHERE id = $1
	`

	return r.scanAccount(query, id)
}

func (r *accountRepository) scanAccount(query string, args ...interface{}) (*domain.Account, error) {
	var account domain.Account

	err := r.db.QueryRow(query, args...).Scan(
		&account.ID,
		&account.OwnerID,
		&account.GroupID,
		&account.Ledger,
		&account.Kind,
		&account.Closed,
		&account.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Account not found", "args", args)
			return nil, errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account", "args", args, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get account").WithDetails(err.Error())
	}

	return &account, nil
}

func (r *accountRepository) ListByGroup(groupID string, ledger domain.Ledger) ([]*domain.Account, error) {
	query := `
		SELECT id, owner_id, group_id, ledger, kind, closed, created_at
		FROM accounts
		WHERE group_id = $1 AND ledger = $2
		ORDER BY owner_id, kind
	`

	rows, err := r.db.Query(query, groupID, ledger)
	if err != nil {
		r.logger.Error("Failed to list group accounts", "group_id", groupID, "ledger", ledger, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list group accounts").WithDetails(err.Error())
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.OwnerID,
			&account.GroupID,
			&account.Ledger,
			&account.Kind,
			&account.Closed,
			&account.CreatedAt,
		); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan account").WithDetails(err.Error())
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to iterate accounts").WithDetails(err.Error())
	}

	return accounts, nil
}

// Close marks an account as closed. The row and its transfer history stay
// queryable; only new transfers are refused.
func (r *accountRepository) Close(id int64) error {
	query := `UPDATE accounts SET closed = TRUE WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		r.logger.Error("Failed to close account", "account_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to close account").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}

	if rowsAffected == 0 {
		r.logger.Warn("No account found to close", "account_id", id)
		return errors.ErrAccountNotFound
	}

	r.logger.Info("Account closed", "account_id", id)
	return nil
}
