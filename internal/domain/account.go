package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is a currency partition. Every account and transfer belongs to
// exactly one ledger; cross-ledger transfers are rejected.
type Ledger int32

// AccountKind classifies an account for posting purposes.
type AccountKind string

const (
	KindAsset     AccountKind = "ASSET"
	KindLiability AccountKind = "LIABILITY"
	KindExpense   AccountKind = "EXPENSE"
	KindIncome    AccountKind = "INCOME"
	KindEquity    AccountKind = "EQUITY"
)

// Account is a running position for one owner within one group and ledger.
// Identity is the tuple (OwnerID, GroupID, Ledger, Kind); at most one row
// exists per tuple. Accounts are never deleted, only closed.
type Account struct {
	ID        int64       `json:"id"`
	OwnerID   string      `json:"owner_id"`
	GroupID   string      `json:"group_id"`
	Ledger    Ledger      `json:"ledger"`
	Kind      AccountKind `json:"kind"`
	Closed    bool        `json:"closed"`
	CreatedAt time.Time   `json:"created_at"`
}

// UserAccounts is the asset/liability pair the registry hands out for a user.
type UserAccounts struct {
	Asset     *Account
	Liability *Account
}

// Balance is the derived position of one user, folded from the transfer log.
// Net is Asset minus Liability: positive means the group owes the user.
type Balance struct {
	UserID    string          `json:"user_id"`
	Asset     decimal.Decimal `json:"asset"`
	Liability decimal.Decimal `json:"liability"`
	Net       decimal.Decimal `json:"net"`
}

// AccountRepository provides idempotent account provisioning. GetOrCreate
// must be safe under concurrent callers for the same identity: a losing
// creator reads back the winner's row, never errors on "already exists".
type AccountRepository interface {
	GetOrCreate(ownerID, groupID string, ledger Ledger, kind AccountKind) (*Account, error)
	// Find looks an account up by identity without creating it; balance
	// queries must never write.
	Find(ownerID, groupID string, ledger Ledger, kind AccountKind) (*Account, error)
	GetByID(id int64) (*Account, error)
	ListByGroup(groupID string, ledger Ledger) ([]*Account, error)
	Close(id int64) error
}
