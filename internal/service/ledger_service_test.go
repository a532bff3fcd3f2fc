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

var accountColumns = []string{"id", "owner_id", "group_id", "ledger", "kind", "closed", "created_at"}

var transferColumns = []string{"id", "debit_account_id", "credit_account_id", "amount", "ledger", "code", "link_group_id", "related_entity_id", "created_at"}

func newTestLedgerService(t *testing.T) (*LedgerService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(db, logger)
	return NewLedgerService(store, &Splitter{}, logger), mock
}

// expectUserAccounts queues the asset+liability upsert/read pairs that
// getOrCreateUserAccounts issues for one user.
func expectUserAccounts(mock sqlmock.Sqlmock, userID string, assetID, liabilityID int64) {
	kinds := []struct {
		kind string
		id   int64
	}{
		{"ASSET", assetID},
		{"LIABILITY", liabilityID},
	}
	for _, k := range kinds {
		mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
			sqlmock.NewRows(accountColumns).
				AddRow(k.id, userID, "g1", 1, k.kind, false, time.Now()))
	}
}

func TestRecordExpensePostsOneLegPerOwer(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	mock.ExpectBegin()
	expectUserAccounts(mock, "alice", 1, 2)
	expectUserAccounts(mock, "bob", 3, 4)
	expectUserAccounts(mock, "carol", 5, 6)
	// Each leg debits the payer's asset and credits the ower's liability.
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(sqlmock.AnyArg(), int64(1), int64(4), "200", int64(1), "EXPENSE_SPLIT", sqlmock.AnyArg(), "exp-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(sqlmock.AnyArg(), int64(1), int64(6), "200", int64(1), "EXPENSE_SPLIT", sqlmock.AnyArg(), "exp-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.RecordExpense(&ExpenseRequest{
		ExpenseID: "exp-1",
		GroupID:   "g1",
		PayerID:   "alice",
		Amount:    dec("600"),
		Currency:  "THB",
		SplitType: SplitEqual,
		Targets: []SplitTarget{
			{UserID: "alice"},
			{UserID: "bob"},
			{UserID: "carol"},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Owed, 2)
	assert.Equal(t, "bob", result.Owed[0].UserID)
	assert.Equal(t, "carol", result.Owed[1].UserID)
	assert.True(t, result.Owed[0].Amount.Equal(dec("200")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExpenseInvalidLegRollsBackBatch(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	mock.ExpectBegin()
	expectUserAccounts(mock, "alice", 1, 2)
	expectUserAccounts(mock, "bob", 3, 4)
	// The negative leg fails validation before any transfer insert, so the
	// whole batch rolls back with zero rows written.
	mock.ExpectRollback()

	_, err := svc.RecordExpense(&ExpenseRequest{
		ExpenseID: "exp-2",
		GroupID:   "g1",
		PayerID:   "alice",
		Amount:    dec("100"),
		Currency:  "THB",
		SplitType: SplitExact,
		Targets: []SplitTarget{
			{UserID: "bob", Amount: decPtr("-50")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrNonPositiveAmount, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExpenseClosedAccountRejected(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	mock.ExpectBegin()
	expectUserAccounts(mock, "alice", 1, 2)
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(3, "bob", "g1", 1, "ASSET", false, time.Now()))
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(4, "bob", "g1", 1, "LIABILITY", true, time.Now()))
	mock.ExpectRollback()

	_, err := svc.RecordExpense(&ExpenseRequest{
		ExpenseID: "exp-3",
		GroupID:   "g1",
		PayerID:   "alice",
		Amount:    dec("100"),
		Currency:  "THB",
		SplitType: SplitExact,
		Targets: []SplitTarget{
			{UserID: "bob", Amount: decPtr("100")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrAccountClosed, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExpenseUnknownCurrency(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	_, err := svc.RecordExpense(&ExpenseRequest{
		ExpenseID: "exp-4",
		GroupID:   "g1",
		PayerID:   "alice",
		Amount:    dec("100"),
		Currency:  "XXX",
		SplitType: SplitEqual,
		Targets:   []SplitTarget{{UserID: "bob"}},
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.UnknownCurrency, appErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSettlementDebitsPayerLiability(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	mock.ExpectBegin()
	expectUserAccounts(mock, "bob", 3, 4)
	expectUserAccounts(mock, "alice", 1, 2)
	// Settlement decreases the payer's liability (debit 4) and the payee's
	// asset (credit 1).
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(sqlmock.AnyArg(), int64(4), int64(1), "25", int64(1), "SETTLEMENT", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transfer, err := svc.RecordSettlement(&SettlementRequest{
		GroupID:    "g1",
		FromUserID: "bob",
		ToUserID:   "alice",
		Amount:     dec("25"),
		Currency:   "THB",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), transfer.DebitAccountID)
	assert.Equal(t, int64(1), transfer.CreditAccountID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAdjustmentDirections(t *testing.T) {
	t.Run("increase is expense-shaped", func(t *testing.T) {
		svc, mock := newTestLedgerService(t)

		mock.ExpectBegin()
		expectUserAccounts(mock, "alice", 1, 2)
		expectUserAccounts(mock, "bob", 3, 4)
		mock.ExpectExec("INSERT INTO transfers").
			WithArgs(sqlmock.AnyArg(), int64(1), int64(4), "10", int64(1), "ADJUSTMENT", sqlmock.AnyArg(), "exp-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		transfer, err := svc.RecordAdjustment(&AdjustmentRequest{
			ExpenseID: "exp-1",
			GroupID:   "g1",
			UserID:    "bob",
			PayerID:   "alice",
			Delta:     dec("10"),
			Currency:  "THB",
			Direction: AdjustmentIncrease,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), transfer.DebitAccountID)
		assert.Equal(t, int64(4), transfer.CreditAccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decrease mirrors the legs", func(t *testing.T) {
		svc, mock := newTestLedgerService(t)

		mock.ExpectBegin()
		expectUserAccounts(mock, "alice", 1, 2)
		expectUserAccounts(mock, "bob", 3, 4)
		mock.ExpectExec("INSERT INTO transfers").
			WithArgs(sqlmock.AnyArg(), int64(4), int64(1), "10", int64(1), "ADJUSTMENT", sqlmock.AnyArg(), "exp-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		transfer, err := svc.RecordAdjustment(&AdjustmentRequest{
			ExpenseID: "exp-1",
			GroupID:   "g1",
			UserID:    "bob",
			PayerID:   "alice",
			Delta:     dec("10"),
			Currency:  "THB",
			Direction: AdjustmentDecrease,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), transfer.DebitAccountID)
		assert.Equal(t, int64(1), transfer.CreditAccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordExpenseNoOwingPartiesSkipsPosting(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	// Every share falls on the payer: nothing is posted, no transaction
	// opens, and no link group id is handed out.
	result, err := svc.RecordExpense(&ExpenseRequest{
		ExpenseID: "exp-self",
		GroupID:   "g1",
		PayerID:   "alice",
		Amount:    dec("100"),
		Currency:  "THB",
		SplitType: SplitExact,
		Targets: []SplitTarget{
			{UserID: "alice", Amount: decPtr("100")},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Owed)
	assert.Nil(t, result.LinkGroupID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseExpenseMirrorsOriginalLegs(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	originalID := "9f4b7c3a-0c1d-4e5f-8a9b-1c2d3e4f5a6b"
	mock.ExpectQuery("SELECT (.+) FROM transfers").WillReturnRows(
		sqlmock.NewRows(transferColumns).
			AddRow(originalID, 1, 4, "100", 1, "EXPENSE_SPLIT", nil, "exp-rev", time.Now()))

	mock.ExpectBegin()
	// Both accounts of the original leg are re-read before posting.
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(4, "bob", "g1", 1, "LIABILITY", false, time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(1, "alice", "g1", 1, "ASSET", false, time.Now()))
	// The reversal swaps the sides: debit 4, credit 1.
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(sqlmock.AnyArg(), int64(4), int64(1), "100", int64(1), "REVERSAL", sqlmock.AnyArg(), "exp-rev", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reversals, err := svc.ReverseExpense("exp-rev")
	require.NoError(t, err)
	require.Len(t, reversals, 1)
	assert.Equal(t, int64(4), reversals[0].DebitAccountID)
	assert.Equal(t, int64(1), reversals[0].CreditAccountID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseExpenseClosedAccountRejected(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	originalID := "2a6d8e1f-3b4c-4d5e-9f0a-b1c2d3e4f5a6"
	mock.ExpectQuery("SELECT (.+) FROM transfers").WillReturnRows(
		sqlmock.NewRows(transferColumns).
			AddRow(originalID, 1, 4, "100", 1, "EXPENSE_SPLIT", nil, "exp-closed", time.Now()))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(4, "bob", "g1", 1, "LIABILITY", true, time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(
		sqlmock.NewRows(accountColumns).
			AddRow(1, "alice", "g1", 1, "ASSET", false, time.Now()))
	mock.ExpectRollback()

	_, err := svc.ReverseExpense("exp-closed")
	require.Error(t, err)
	assert.Equal(t, errors.ErrAccountClosed, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSettlementSameUserRejected(t *testing.T) {
	svc, mock := newTestLedgerService(t)

	// Rejected before any database work.
	_, err := svc.RecordSettlement(&SettlementRequest{
		GroupID:    "g1",
		FromUserID: "bob",
		ToUserID:   "bob",
		Amount:     dec("25"),
		Currency:   "THB",
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.InvalidTransfer, appErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}
