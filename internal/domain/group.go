package domain

import "github.com/shopspring/decimal"

// MemberRepository tracks group membership. The member table exists so the
// "@all" split target can resolve to a concrete user set; resolution
// happens before the split engine runs. Add is idempotent: re-adding an
// existing member is a no-op.
type MemberRepository interface {
	Add(groupID, userID string) error
	List(groupID string) ([]string, error)
}

// Debt is one pairwise settlement obligation produced by debt netting:
// FromUserID pays ToUserID Amount.
type Debt struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}
