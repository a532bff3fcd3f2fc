package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

type transferRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransferRepository(db SQLExecutor, logger *slog.Logger) domain.TransferRepository {
	return &transferRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one transfer to the log. The log is append-only: there is
// no update or delete path anywhere in this repository.
func (r *transferRepository) Create(t *domain.Transfer) error {
	query := `
		INSERT INTO transfers
		(id, debit_account_id, credit_account_id, amount, ledger, code, link_group_id, related_entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()

	var linkGroupID interface{}
	if t.LinkGroupID != nil {
		linkGroupID = *t.LinkGroupID
	}

	_, err := r.db.Exec(
		query,
		t.ID,
		t.DebitAccountID,
		t.CreditAccountID,
		t.Amount.String(),
		t.Ledger,
		t.Code,
		linkGroupID,
		t.RelatedEntityID,
		now,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" { // check_violation
			r.logger.Warn("Transfer rejected by check constraint", "transfer_id", t.ID, "constraint", pqErr.Constraint)
			return errors.ErrNonPositiveAmount
		}
		r.logger.Error("Failed to create transfer",
			"debit_account_id", t.DebitAccountID,
			"credit_account_id", t.CreditAccountID,
			"amount", t.Amount,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transfer").WithDetails(err.Error())
	}

	t.CreatedAt = now
	r.logger.Info("Transfer created", "transfer_id", t.ID, "code", t.Code, "amount", t.Amount)
	return nil
}

func (r *transferRepository) GetByID(id uuid.UUID) (*domain.Transfer, error) {
	query := selectTransfers + ` WHERE id = $1`

	rows, err := r.queryTransfers(query, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *transferRepository) ListByLinkGroup(linkGroupID uuid.UUID) ([]*domain.Transfer, error) {
	query := selectTransfers + ` WHERE link_group_id = $1 ORDER BY id`

	return r.queryTransfers(query, linkGroupID)
}

func (r *transferRepository) ListByRelatedEntity(relatedEntityID string) ([]*domain.Transfer, error) {
	query := selectTransfers + ` WHERE related_entity_id = $1 ORDER BY created_at, id`

	return r.queryTransfers(query, relatedEntityID)
}

const selectTransfers = `
	SELECT id, debit_account_id, credit_account_id, amount, ledger, code, link_group_id, related_entity_id, created_at
	FROM transfers
`

func (r *transferRepository) queryTransfers(query string, arg interface{}) ([]*domain.Transfer, error) {
	rows, err := r.db.Query(query, arg)
	if err != nil {
		r.logger.Error("Failed to list transfers", "arg", arg, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transfers").WithDetails(err.Error())
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var amountStr string
		var linkGroupID sql.NullString

		if err := rows.Scan(
			&t.ID,
			&t.DebitAccountID,
			&t.CreditAccountID,
			&amountStr,
			&t.Ledger,
			&t.Code,
			&linkGroupID,
			&t.RelatedEntityID,
			&t.CreatedAt,
		); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan transfer").WithDetails(err.Error())
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse amount").WithDetails(err.Error())
		}
		t.Amount = amount

		if linkGroupID.Valid {
			id, err := uuid.Parse(linkGroupID.String)
			if err != nil {
				return nil, errors.NewAppError(errors.InternalError, "failed to parse link group id").WithDetails(err.Error())
			}
			t.LinkGroupID = &id
		}

		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to iterate transfers").WithDetails(err.Error())
	}

	return transfers, nil
}

// ActivityForAccounts folds debit and credit sums per account in one query.
// Balances are always derived from this fold; there is no stored running
// total to drift out of sync.
func (r *transferRepository) ActivityForAccounts(accountIDs []int64) (map[int64]domain.AccountActivity, error) {
	query := `
		SELECT account_id, SUM(debits), SUM(credits) FROM (
			SELECT debit_account_id AS account_id, amount::numeric AS debits, 0 AS credits
			FROM transfers WHERE debit_account_id = ANY($1)
			UNION ALL
			SELECT credit_account_id AS account_id, 0 AS debits, amount::numeric AS credits
			FROM transfers WHERE credit_account_id = ANY($1)
		) legs
		GROUP BY account_id
	`

	rows, err := r.db.Query(query, pq.Array(accountIDs))
	if err != nil {
		r.logger.Error("Failed to fold account activity", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to fold account activity").WithDetails(err.Error())
	}
	defer rows.Close()

	activity := make(map[int64]domain.AccountActivity, len(accountIDs))
	for rows.Next() {
		var accountID int64
		var debitsStr, creditsStr string

		if err := rows.Scan(&accountID, &debitsStr, &creditsStr); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan account activity").WithDetails(err.Error())
		}

		debits, err := decimal.NewFromString(debitsStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse debit sum").WithDetails(err.Error())
		}
		credits, err := decimal.NewFromString(creditsStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse credit sum").WithDetails(err.Error())
		}

		activity[accountID] = domain.AccountActivity{
			AccountID: accountID,
			Debits:    debits,
			Credits:   credits,
		}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to iterate account activity").WithDetails(err.Error())
	}

	return activity, nil
}
