package service

import (
	"github.com/shopspring/decimal"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

// NetDebts reduces a vector of net balances to the minimal set of pairwise
// payments resolving them. Greedy: repeatedly settle min(credit, debt)
// between the largest remaining creditor and largest remaining debtor, which
// is optimal in payment count here. Ties break on the smaller user id so the
// output is reproducible for the same balance vector.
//
// The balances of one group sum to zero by construction (every transfer's
// two legs cancel), so any residual left after matching means the transfer
// log itself is unbalanced and the query must fail rather than hand back a
// plan that silently drops value.
func NetDebts(balances []domain.Balance) ([]domain.Debt, error) {
	type position struct {
		userID string
		amount decimal.Decimal
	}

	var creditors, debtors []position
	for _, b := range balances {
		switch {
		case b.Net.IsPositive():
			creditors = append(creditors, position{userID: b.UserID, amount: b.Net})
		case b.Net.IsNegative():
			debtors = append(debtors, position{userID: b.UserID, amount: b.Net.Neg()})
		}
	}

	largest := func(positions []position) int {
		best := 0
		for i := 1; i < len(positions); i++ {
			cmp := positions[i].amount.Cmp(positions[best].amount)
			if cmp > 0 || (cmp == 0 && positions[i].userID < positions[best].userID) {
				best = i
			}
		}
		return best
	}

	drop := func(positions []position, i int) []position {
		return append(positions[:i], positions[i+1:]...)
	}

	debts := make([]domain.Debt, 0, len(debtors))
	for len(creditors) > 0 && len(debtors) > 0 {
		ci := largest(creditors)
		di := largest(debtors)

		amount := decimal.Min(creditors[ci].amount, debtors[di].amount)
		debts = append(debts, domain.Debt{
			FromUserID: debtors[di].userID,
			ToUserID:   creditors[ci].userID,
			Amount:     amount,
		})

		creditors[ci].amount = creditors[ci].amount.Sub(amount)
		debtors[di].amount = debtors[di].amount.Sub(amount)

		if creditors[ci].amount.IsZero() {
			creditors = drop(creditors, ci)
		}
		if debtors[di].amount.IsZero() {
			debtors = drop(debtors, di)
		}
	}

	if len(creditors) > 0 || len(debtors) > 0 {
		return nil, errors.NewAppError(errors.LedgerInvariantViolation,
			"net balances do not sum to zero after debt netting")
	}

	return debts, nil
}
