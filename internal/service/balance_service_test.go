package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group-ledger/internal/errors"
	"group-ledger/internal/repository"
)

func newTestBalanceService(t *testing.T) (*BalanceService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(db, logger)
	return NewBalanceService(store, logger), mock
}

func TestGetUserBalanceFoldsBothAccounts(t *testing.T) {
	svc, mock := newTestBalanceService(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(1, "alice", "g1", 1, "ASSET", false, time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(2, "alice", "g1", 1, "LIABILITY", false, time.Now()))
	// Asset: 400 debited, 100 credited back. Liability: 50 credited.
	mock.ExpectQuery("SELECT account_id").WillReturnRows(
		sqlmock.NewRows([]string{"account_id", "debits", "credits"}).
			AddRow(1, "400", "100").
			AddRow(2, "0", "50"))

	balance, err := svc.GetUserBalance("alice", "g1", "THB")
	require.NoError(t, err)

	assert.True(t, balance.Asset.Equal(dec("300")), "asset %s", balance.Asset)
	assert.True(t, balance.Liability.Equal(dec("50")), "liability %s", balance.Liability)
	assert.True(t, balance.Net.Equal(dec("250")), "net %s", balance.Net)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserBalanceNoAccountsIsZero(t *testing.T) {
	svc, mock := newTestBalanceService(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(sqlmock.NewRows(accountColumns))

	balance, err := svc.GetUserBalance("nobody", "g1", "THB")
	require.NoError(t, err)

	assert.True(t, balance.Asset.IsZero())
	assert.True(t, balance.Liability.IsZero())
	assert.True(t, balance.Net.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserBalanceUnknownCurrency(t *testing.T) {
	svc, mock := newTestBalanceService(t)

	_, err := svc.GetUserBalance("alice", "g1", "XXX")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.UnknownCurrency, appErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGroupBalancesNetsDebts(t *testing.T) {
	svc, mock := newTestBalanceService(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(1, "alice", "g1", 1, "ASSET", false, time.Now()).
			AddRow(2, "alice", "g1", 1, "LIABILITY", false, time.Now()).
			AddRow(3, "bob", "g1", 1, "ASSET", false, time.Now()).
			AddRow(4, "bob", "g1", 1, "LIABILITY", false, time.Now()).
			AddRow(5, "carol", "g1", 1, "ASSET", false, time.Now()).
			AddRow(6, "carol", "g1", 1, "LIABILITY", false, time.Now()).
			// The idle pool account folds to a zero position.
			AddRow(7, "g1", "g1", 1, "EQUITY", false, time.Now()))
	// Alice paid 300; bob owes 100, carol owes 200.
	mock.ExpectQuery("SELECT account_id").WillReturnRows(
		sqlmock.NewRows([]string{"account_id", "debits", "credits"}).
			AddRow(1, "300", "0").
			AddRow(4, "0", "100").
			AddRow(6, "0", "200"))

	result, err := svc.GetGroupBalances("g1", "THB")
	require.NoError(t, err)

	require.Len(t, result.Balances, 4)
	assert.Equal(t, "alice", result.Balances[0].UserID)
	assert.True(t, result.Balances[0].Net.Equal(dec("300")))
	assert.True(t, result.Balances[1].Net.Equal(dec("-100")))
	assert.True(t, result.Balances[2].Net.Equal(dec("-200")))
	assert.Equal(t, "g1", result.Balances[3].UserID)
	assert.True(t, result.Balances[3].Net.IsZero())

	require.Len(t, result.Debts, 2)
	assert.Equal(t, "carol", result.Debts[0].FromUserID)
	assert.Equal(t, "alice", result.Debts[0].ToUserID)
	assert.True(t, result.Debts[0].Amount.Equal(dec("200")))
	assert.Equal(t, "bob", result.Debts[1].FromUserID)
	assert.True(t, result.Debts[1].Amount.Equal(dec("100")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGroupBalancesEmptyGroup(t *testing.T) {
	svc, mock := newTestBalanceService(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(sqlmock.NewRows(accountColumns))

	result, err := svc.GetGroupBalances("empty", "THB")
	require.NoError(t, err)
	assert.Empty(t, result.Balances)
	assert.Empty(t, result.Debts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGroupBalancesUnbalancedLogFails(t *testing.T) {
	svc, mock := newTestBalanceService(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(1, "alice", "g1", 1, "ASSET", false, time.Now()).
			AddRow(4, "bob", "g1", 1, "LIABILITY", false, time.Now()))
	// A fold that does not sum to zero can only come from asymmetric legs;
	// the query surfaces it instead of handing back a lossy plan.
	mock.ExpectQuery("SELECT account_id").WillReturnRows(
		sqlmock.NewRows([]string{"account_id", "debits", "credits"}).
			AddRow(1, "300", "0").
			AddRow(4, "0", "100"))

	_, err := svc.GetGroupBalances("g1", "THB")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.LedgerInvariantViolation, appErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}
