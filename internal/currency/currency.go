// Package currency maps currency strings to internal ledger codes. The
// mapping happens at the boundary: nothing past it ever sees a raw
// currency string, and an unknown currency is rejected, never defaulted.
package currency

import (
	"strings"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

var ledgers = map[string]domain.Ledger{
	"THB": 1,
	"USD": 2,
	"EUR": 3,
	"GBP": 4,
	"JPY": 5,
	"SGD": 6,
}

// ToLedger resolves a currency string (case-insensitive) to its ledger.
func ToLedger(currency string) (domain.Ledger, error) {
	ledger, ok := ledgers[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return 0, errors.NewAppErrorf(errors.UnknownCurrency, "no ledger for currency %q", currency)
	}
	return ledger, nil
}

// Code returns the currency string for a ledger, or "" if unmapped.
func Code(ledger domain.Ledger) string {
	for code, l := range ledgers {
		if l == ledger {
			return code
		}
	}
	return ""
}
