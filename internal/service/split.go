package service

import (
	"github.com/shopspring/decimal"

	"group-ledger/internal/errors"
)

// SplitType selects how an expense total is divided among targets.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitExact      SplitType = "exact"
	SplitPercentage SplitType = "percentage"
	SplitItem       SplitType = "item"
)

// SplitTarget is one already-resolved target entry. Target resolution
// (@all, nicknames) happens before the split engine runs; by the time a
// target reaches here, UserID is a concrete user id.
type SplitTarget struct {
	UserID     string
	Amount     *decimal.Decimal // required for exact splits
	Percentage *decimal.Decimal // required for percentage splits
}

// LineItem is one receipt line for item splits. An item with no assignees
// belongs to the payer; one with several divides its price evenly.
type LineItem struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	Assignees []string
}

// Price is Quantity times UnitPrice.
func (i LineItem) Price() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// SplitRequest carries everything a split computation needs. Targets is used
// by equal/exact/percentage splits, Items by item splits.
type SplitRequest struct {
	Total   decimal.Decimal
	Type    SplitType
	PayerID string
	Targets []SplitTarget
	Items   []LineItem
}

// Splitter turns an expense plus split instructions into per-user owed
// amounts. It is a pure computation over already-resolved user ids, with
// exact decimal arithmetic throughout: rounding happens only at the
// formatting boundary, never before aggregation.
type Splitter struct {
	// StrictPercentages rejects percentage splits not summing to 100.
	StrictPercentages bool
}

// CalculateSplits dispatches on the split type. The payer never appears in
// the result: a person cannot owe themselves for their own payment.
func (s *Splitter) CalculateSplits(req SplitRequest) (map[string]decimal.Decimal, error) {
	switch req.Type {
	case SplitEqual:
		return s.equalSplit(req)
	case SplitExact:
		return s.exactSplit(req)
	case SplitPercentage:
		return s.percentageSplit(req)
	case SplitItem:
		return s.itemSplit(req)
	default:
		return nil, errors.NewAppErrorf(errors.InvalidInput, "unknown split type %q", req.Type)
	}
}

// equalSplit divides the total by the size of the resolved member set. The
// payer counts toward the divisor but is dropped from the result.
func (s *Splitter) equalSplit(req SplitRequest) (map[string]decimal.Decimal, error) {
	members := make(map[string]struct{}, len(req.Targets))
	for _, t := range req.Targets {
		members[t.UserID] = struct{}{}
	}

	if len(members) == 0 {
		return nil, errors.ErrNoSplitTargets
	}

	share := req.Total.Div(decimal.NewFromInt(int64(len(members))))

	owed := make(map[string]decimal.Decimal, len(members))
	for userID := range members {
		if userID == req.PayerID {
			continue
		}
		owed[userID] = share
	}
	return owed, nil
}

// exactSplit takes a literal amount per target, accumulating duplicates.
func (s *Splitter) exactSplit(req SplitRequest) (map[string]decimal.Decimal, error) {
	owed := make(map[string]decimal.Decimal, len(req.Targets))
	for _, t := range req.Targets {
		if t.Amount == nil {
			return nil, errors.NewAppErrorf(errors.MissingSplitAmount, "exact split target %q has no amount", t.UserID)
		}
		if t.UserID == req.PayerID {
			continue
		}
		owed[t.UserID] = owed[t.UserID].Add(*t.Amount)
	}
	return owed, nil
}

// percentageSplit takes a percentage of the total per target. Percentages
// are not required to sum to 100 unless StrictPercentages is set: a partial
// split is a valid way to record a partial reimbursement.
func (s *Splitter) percentageSplit(req SplitRequest) (map[string]decimal.Decimal, error) {
	hundred := decimal.NewFromInt(100)

	total := decimal.Zero
	for _, t := range req.Targets {
		if t.Percentage == nil {
			return nil, errors.NewAppErrorf(errors.MissingSplitPercentage, "percentage split target %q has no percentage", t.UserID)
		}
		total = total.Add(*t.Percentage)
	}
	if s.StrictPercentages && !total.Equal(hundred) {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "split percentages sum to %s, expected 100", total)
	}

	owed := make(map[string]decimal.Decimal, len(req.Targets))
	for _, t := range req.Targets {
		if t.UserID == req.PayerID {
			continue
		}
		owed[t.UserID] = owed[t.UserID].Add(req.Total.Mul(*t.Percentage).Div(hundred))
	}
	return owed, nil
}

// itemSplit attributes each line item's price to its assignees. Unassigned
// items belong entirely to the payer; since the payer is self-owed they
// simply never show up in the result.
func (s *Splitter) itemSplit(req SplitRequest) (map[string]decimal.Decimal, error) {
	owed := make(map[string]decimal.Decimal)
	for _, item := range req.Items {
		if len(item.Assignees) == 0 {
			continue
		}

		share := item.Price().Div(decimal.NewFromInt(int64(len(item.Assignees))))
		for _, userID := range item.Assignees {
			if userID == req.PayerID {
				continue
			}
			owed[userID] = owed[userID].Add(share)
		}
	}
	return owed, nil
}
