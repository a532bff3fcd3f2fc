package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferCode classifies the intent of a transfer.
type TransferCode string

const (
	CodeExpenseSplit     TransferCode = "EXPENSE_SPLIT"
	CodeSettlement       TransferCode = "SETTLEMENT"
	CodeAdjustment       TransferCode = "ADJUSTMENT"
	CodeReversal         TransferCode = "REVERSAL"
	CodePoolContribution TransferCode = "POOL_CONTRIBUTION"
	CodePoolWithdrawal   TransferCode = "POOL_WITHDRAWAL"
)

// Transfer is an immutable two-leg value movement: Amount moves from the
// credit account to the debit account. The ledger is append-only, so a
// posted transfer is never updated or deleted; corrections are new transfers.
//
// Posting convention, fixed once and derived mechanically everywhere:
// an ASSET account increases on the debit side, a LIABILITY account
// increases on the credit side.
type Transfer struct {
	ID              uuid.UUID       `json:"id"`
	DebitAccountID  int64           `json:"debit_account_id"`
	CreditAccountID int64           `json:"credit_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Ledger          Ledger          `json:"ledger"`
	Code            TransferCode    `json:"code"`
	LinkGroupID     *uuid.UUID      `json:"link_group_id,omitempty"`
	RelatedEntityID string          `json:"related_entity_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AccountActivity is the per-account debit/credit fold the balance
// calculator consumes, grouped straight out of the transfer log.
type AccountActivity struct {
	AccountID int64
	Debits    decimal.Decimal
	Credits   decimal.Decimal
}

// TransferRepository appends to and reads from the transfer log. Create is
// a single append; callers needing multi-leg atomicity run Create calls
// inside one Store transaction.
type TransferRepository interface {
	Create(t *Transfer) error
	GetByID(id uuid.UUID) (*Transfer, error)
	ListByLinkGroup(linkGroupID uuid.UUID) ([]*Transfer, error)
	ListByRelatedEntity(relatedEntityID string) ([]*Transfer, error)
	// ActivityForAccounts folds debit and credit sums per account id.
	ActivityForAccounts(accountIDs []int64) (map[int64]AccountActivity, error)
}
