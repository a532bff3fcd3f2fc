package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

func TestToLedger(t *testing.T) {
	ledger, err := ToLedger("THB")
	require.NoError(t, err)
	assert.Equal(t, domain.Ledger(1), ledger)

	// Case and whitespace are normalized at the boundary.
	ledger, err = ToLedger(" usd ")
	require.NoError(t, err)
	assert.Equal(t, domain.Ledger(2), ledger)
}

func TestToLedgerUnknownCurrency(t *testing.T) {
	_, err := ToLedger("DOGE")
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.UnknownCurrency, appErr.Code)
}

func TestCodeRoundTrip(t *testing.T) {
	for _, code := range []string{"THB", "USD", "EUR", "GBP", "JPY", "SGD"} {
		ledger, err := ToLedger(code)
		require.NoError(t, err)
		assert.Equal(t, code, Code(ledger))
	}

	assert.Equal(t, "", Code(domain.Ledger(99)))
}
