package service

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"group-ledger/internal/currency"
	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
	"group-ledger/internal/repository"
)

// TargetAll is the group-wide split target token. It is resolved to the
// concrete member set before the split engine runs.
const TargetAll = "all"

// LedgerService records money movements as balanced transfers. All multi-leg
// operations go through one database transaction, so an expense with four
// owing parties either fully posts or not at all.
type LedgerService struct {
	store    *repository.Store
	splitter *Splitter
	logger   *slog.Logger
}

func NewLedgerService(store *repository.Store, splitter *Splitter, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:    store,
		splitter: splitter,
		logger:   logger,
	}
}

type ExpenseRequest struct {
	ExpenseID string
	GroupID   string
	PayerID   string
	Amount    decimal.Decimal
	Currency  string
	SplitType SplitType
	Targets   []SplitTarget
	Items     []LineItem
}

// OwedEntry is one owing party's share of a recorded expense.
type OwedEntry struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type ExpenseResult struct {
	ExpenseID   string      `json:"expense_id"`
	LinkGroupID *uuid.UUID  `json:"link_group_id,omitempty"`
	Owed        []OwedEntry `json:"owed"`
}

// RecordExpense resolves targets, computes splits, provisions accounts and
// posts one EXPENSE_SPLIT transfer per owing party as a single linked batch.
func (s *LedgerService) RecordExpense(req *ExpenseRequest) (*ExpenseResult, error) {
	s.logger.Info("Recording expense",
		"expense_id", req.ExpenseID,
		"group_id", req.GroupID,
		"payer_id", req.PayerID,
		"amount", req.Amount,
		"split_type", req.SplitType)

	if req.ExpenseID == "" || req.GroupID == "" || req.PayerID == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "expense id, group id and payer id are required")
	}

	ledger, err := currency.ToLedger(req.Currency)
	if err != nil {
		return nil, err
	}

	if !req.Amount.IsPositive() {
		return nil, errors.ErrNonPositiveAmount
	}

	targets, err := s.resolveTargets(req.GroupID, req.Targets)
	if err != nil {
		return nil, err
	}

	splits, err := s.splitter.CalculateSplits(SplitRequest{
		Total:   req.Amount,
		Type:    req.SplitType,
		PayerID: req.PayerID,
		Targets: targets,
		Items:   req.Items,
	})
	if err != nil {
		return nil, err
	}

	owed := sortedEntries(splits)
	if len(owed) == 0 {
		// Every share fell on the payer (exact split targeting only them, or
		// an item split with nothing assigned). Nothing to post, so no batch
		// and no link group id exists for this expense.
		s.logger.Info("Expense resolved to no owing parties", "expense_id", req.ExpenseID)
		return &ExpenseResult{ExpenseID: req.ExpenseID, Owed: owed}, nil
	}

	linkGroupID := uuid.New()

	err = s.store.WithTransaction(func(tx *repository.Store) error {
		payer, err := getOrCreateUserAccounts(tx, req.PayerID, req.GroupID, ledger)
		if err != nil {
			return err
		}

		legs := make([]*domain.Transfer, 0, len(owed))
		for _, entry := range owed {
			ower, err := getOrCreateUserAccounts(tx, entry.UserID, req.GroupID, ledger)
			if err != nil {
				return err
			}

			// Expense split: the group owes the payer more (debit the
			// payer's asset) and the ower owes the group more (credit
			// the ower's liability).
			leg, err := s.buildTransfer(payer.Asset, ower.Liability, entry.Amount, domain.CodeExpenseSplit, &linkGroupID, req.ExpenseID)
			if err != nil {
				return err
			}
			legs = append(legs, leg)
		}

		return createLinkedTransfers(tx, legs)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Expense recorded", "expense_id", req.ExpenseID, "link_group_id", linkGroupID, "legs", len(owed))
	return &ExpenseResult{
		ExpenseID:   req.ExpenseID,
		LinkGroupID: &linkGroupID,
		Owed:        owed,
	}, nil
}

type SettlementRequest struct {
	GroupID           string
	FromUserID        string
	ToUserID          string
	Amount            decimal.Decimal
	Currency          string
	PaymentMethodCode string
}

// RecordSettlement posts one SETTLEMENT transfer for a real-world payment:
// the payer's liability decreases (debit) and the payee's asset decreases
// (credit). History is never edited; a wrong settlement is corrected by a
// new transfer.
func (s *LedgerService) RecordSettlement(req *SettlementRequest) (*domain.Transfer, error) {
	s.logger.Info("Recording settlement",
		"group_id", req.GroupID,
		"from_user_id", req.FromUserID,
		"to_user_id", req.ToUserID,
		"amount", req.Amount,
		"payment_method", req.PaymentMethodCode)

	ledger, err := currency.ToLedger(req.Currency)
	if err != nil {
		return nil, err
	}

	if req.FromUserID == req.ToUserID {
		return nil, errors.NewAppError(errors.InvalidTransfer, "settlement payer and payee must differ")
	}

	settlementID := uuid.New().String()

	var transfer *domain.Transfer
	err = s.store.WithTransaction(func(tx *repository.Store) error {
		from, err := getOrCreateUserAccounts(tx, req.FromUserID, req.GroupID, ledger)
		if err != nil {
			return err
		}
		to, err := getOrCreateUserAccounts(tx, req.ToUserID, req.GroupID, ledger)
		if err != nil {
			return err
		}

		transfer, err = s.buildTransfer(from.Liability, to.Asset, req.Amount, domain.CodeSettlement, nil, settlementID)
		if err != nil {
			return err
		}
		return tx.Transfers().Create(transfer)
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}

// AdjustmentDirection selects whether an adjustment increases or decreases
// what the user owes against the original payer.
type AdjustmentDirection string

const (
	AdjustmentIncrease AdjustmentDirection = "increase"
	AdjustmentDecrease AdjustmentDirection = "decrease"
)

type AdjustmentRequest struct {
	ExpenseID string
	GroupID   string
	UserID    string
	PayerID   string
	Delta     decimal.Decimal
	Currency  string
	Direction AdjustmentDirection
}

// RecordAdjustment reconciles a prior expense without touching its original
// transfers: a new ADJUSTMENT transfer referencing the expense id carries
// the correction, so every change stays visible as its own line.
func (s *LedgerService) RecordAdjustment(req *AdjustmentRequest) (*domain.Transfer, error) {
	s.logger.Info("Recording adjustment",
		"expense_id", req.ExpenseID,
		"user_id", req.UserID,
		"payer_id", req.PayerID,
		"delta", req.Delta,
		"direction", req.Direction)

	ledger, err := currency.ToLedger(req.Currency)
	if err != nil {
		return nil, err
	}

	var transfer *domain.Transfer
	err = s.store.WithTransaction(func(tx *repository.Store) error {
		payer, err := getOrCreateUserAccounts(tx, req.PayerID, req.GroupID, ledger)
		if err != nil {
			return err
		}
		user, err := getOrCreateUserAccounts(tx, req.UserID, req.GroupID, ledger)
		if err != nil {
			return err
		}

		// Increase is expense-shaped; decrease mirrors the legs.
		switch req.Direction {
		case AdjustmentIncrease:
			transfer, err = s.buildTransfer(payer.Asset, user.Liability, req.Delta, domain.CodeAdjustment, nil, req.ExpenseID)
		case AdjustmentDecrease:
			transfer, err = s.buildTransfer(user.Liability, payer.Asset, req.Delta, domain.CodeAdjustment, nil, req.ExpenseID)
		default:
			return errors.NewAppErrorf(errors.InvalidInput, "unknown adjustment direction %q", req.Direction)
		}
		if err != nil {
			return err
		}
		return tx.Transfers().Create(transfer)
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}

// ReverseExpense appends REVERSAL transfers mirroring every EXPENSE_SPLIT
// leg of the original batch. The originals stay untouched.
func (s *LedgerService) ReverseExpense(expenseID string) ([]*domain.Transfer, error) {
	s.logger.Info("Reversing expense", "expense_id", expenseID)

	originals, err := s.store.Transfers().ListByRelatedEntity(expenseID)
	if err != nil {
		return nil, err
	}

	var splitLegs []*domain.Transfer
	for _, t := range originals {
		if t.Code == domain.CodeExpenseSplit {
			splitLegs = append(splitLegs, t)
		}
	}
	if len(splitLegs) == 0 {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "no expense transfers found for %q", expenseID)
	}

	linkGroupID := uuid.New()
	reversals := make([]*domain.Transfer, 0, len(splitLegs))

	err = s.store.WithTransaction(func(tx *repository.Store) error {
		// Mirrored legs are still new transfers, so they go through the same
		// account checks as any other posting: a closed account refuses them.
		for _, original := range splitLegs {
			debit, err := tx.Accounts().GetByID(original.CreditAccountID)
			if err != nil {
				return err
			}
			credit, err := tx.Accounts().GetByID(original.DebitAccountID)
			if err != nil {
				return err
			}

			reversal, err := s.buildTransfer(debit, credit, original.Amount, domain.CodeReversal, &linkGroupID, expenseID)
			if err != nil {
				return err
			}
			reversals = append(reversals, reversal)
		}
		return createLinkedTransfers(tx, reversals)
	})
	if err != nil {
		return nil, err
	}

	return reversals, nil
}

// PoolDirection selects contribution to or withdrawal from a group pool.
type PoolDirection string

const (
	PoolContribute PoolDirection = "contribute"
	PoolWithdraw   PoolDirection = "withdraw"
)

type PoolRequest struct {
	GroupID   string
	UserID    string
	Amount    decimal.Decimal
	Currency  string
	Direction PoolDirection
}

// RecordPoolEntry moves value between a user and the group pool, an EQUITY
// account owned by the group itself. A contribution debits the user's asset
// (the group owes them) and credits the pool.
func (s *LedgerService) RecordPoolEntry(req *PoolRequest) (*domain.Transfer, error) {
	s.logger.Info("Recording pool entry",
		"group_id", req.GroupID,
		"user_id", req.UserID,
		"amount", req.Amount,
		"direction", req.Direction)

	ledger, err := currency.ToLedger(req.Currency)
	if err != nil {
		return nil, err
	}

	entryID := uuid.New().String()

	var transfer *domain.Transfer
	err = s.store.WithTransaction(func(tx *repository.Store) error {
		user, err := getOrCreateUserAccounts(tx, req.UserID, req.GroupID, ledger)
		if err != nil {
			return err
		}
		pool, err := tx.Accounts().GetOrCreate(req.GroupID, req.GroupID, ledger, domain.KindEquity)
		if err != nil {
			return err
		}

		switch req.Direction {
		case PoolContribute:
			transfer, err = s.buildTransfer(user.Asset, pool, req.Amount, domain.CodePoolContribution, nil, entryID)
		case PoolWithdraw:
			transfer, err = s.buildTransfer(pool, user.Asset, req.Amount, domain.CodePoolWithdrawal, nil, entryID)
		default:
			return errors.NewAppErrorf(errors.InvalidInput, "unknown pool direction %q", req.Direction)
		}
		if err != nil {
			return err
		}
		return tx.Transfers().Create(transfer)
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}

// GetTransfer looks one posted transfer up by id.
func (s *LedgerService) GetTransfer(id string) (*domain.Transfer, error) {
	transferID, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.NewAppError(errors.InvalidInput, "invalid transfer id").WithDetails(err.Error())
	}

	transfer, err := s.store.Transfers().GetByID(transferID)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, errors.ErrTransferNotFound
	}
	return transfer, nil
}

// ListBatch returns every transfer of one linked batch, the audit view of
// a single all-or-nothing posting.
func (s *LedgerService) ListBatch(linkGroupID string) ([]*domain.Transfer, error) {
	batchID, err := uuid.Parse(linkGroupID)
	if err != nil {
		return nil, errors.NewAppError(errors.InvalidInput, "invalid link group id").WithDetails(err.Error())
	}

	return s.store.Transfers().ListByLinkGroup(batchID)
}

// AddMember registers a user in a group so @all splits can resolve to them.
func (s *LedgerService) AddMember(groupID, userID string) error {
	if groupID == "" || userID == "" {
		return errors.NewAppError(errors.InvalidInput, "group id and user id are required")
	}
	return s.store.Members().Add(groupID, userID)
}

// ListMembers returns a group's registered members.
func (s *LedgerService) ListMembers(groupID string) ([]string, error) {
	return s.store.Members().List(groupID)
}

// GetAccount looks one ledger account up by id.
func (s *LedgerService) GetAccount(accountID int64) (*domain.Account, error) {
	return s.store.Accounts().GetByID(accountID)
}

// CloseAccount marks an account closed; its history remains queryable.
func (s *LedgerService) CloseAccount(accountID int64) error {
	return s.store.Accounts().Close(accountID)
}

// resolveTargets expands the group-wide "all" token into the concrete member
// set, keeping resolution outside the split engine.
func (s *LedgerService) resolveTargets(groupID string, targets []SplitTarget) ([]SplitTarget, error) {
	resolved := make([]SplitTarget, 0, len(targets))
	for _, t := range targets {
		if t.UserID != TargetAll {
			resolved = append(resolved, t)
			continue
		}

		members, err := s.store.Members().List(groupID)
		if err != nil {
			return nil, err
		}
		for _, userID := range members {
			resolved = append(resolved, SplitTarget{UserID: userID, Amount: t.Amount, Percentage: t.Percentage})
		}
	}
	return resolved, nil
}

// buildTransfer derives one transfer from two accounts, rejecting anything
// that would break a ledger invariant before any write happens.
func (s *LedgerService) buildTransfer(debit, credit *domain.Account, amount decimal.Decimal, code domain.TransferCode, linkGroupID *uuid.UUID, relatedEntityID string) (*domain.Transfer, error) {
	if !amount.IsPositive() {
		return nil, errors.ErrNonPositiveAmount
	}
	if debit.ID == credit.ID {
		return nil, errors.ErrSameAccountTransfer
	}
	if debit.Closed || credit.Closed {
		return nil, errors.ErrAccountClosed
	}
	if debit.Ledger != credit.Ledger {
		// Mismatched legs mean account provisioning went wrong somewhere;
		// persisting would corrupt the ledger, so this aborts hard.
		s.logger.Error("Ledger mismatch between transfer legs",
			"debit_account_id", debit.ID, "debit_ledger", debit.Ledger,
			"credit_account_id", credit.ID, "credit_ledger", credit.Ledger,
			"code", code)
		return nil, errors.NewAppError(errors.LedgerInvariantViolation, "transfer legs belong to different ledgers")
	}

	return &domain.Transfer{
		ID:              uuid.New(),
		DebitAccountID:  debit.ID,
		CreditAccountID: credit.ID,
		Amount:          amount,
		Ledger:          debit.Ledger,
		Code:            code,
		LinkGroupID:     linkGroupID,
		RelatedEntityID: relatedEntityID,
	}, nil
}

// getOrCreateUserAccounts provisions the asset/liability pair for a user.
// Both upserts are idempotent, so concurrent first touches converge on the
// same rows.
func getOrCreateUserAccounts(tx *repository.Store, userID, groupID string, ledger domain.Ledger) (*domain.UserAccounts, error) {
	asset, err := tx.Accounts().GetOrCreate(userID, groupID, ledger, domain.KindAsset)
	if err != nil {
		return nil, err
	}
	liability, err := tx.Accounts().GetOrCreate(userID, groupID, ledger, domain.KindLiability)
	if err != nil {
		return nil, err
	}
	return &domain.UserAccounts{Asset: asset, Liability: liability}, nil
}

// createLinkedTransfers appends every leg inside the caller's transaction.
// A failure on any leg rolls back the whole batch.
func createLinkedTransfers(tx *repository.Store, legs []*domain.Transfer) error {
	for _, leg := range legs {
		if err := tx.Transfers().Create(leg); err != nil {
			return err
		}
	}
	return nil
}

func sortedEntries(splits map[string]decimal.Decimal) []OwedEntry {
	entries := make([]OwedEntry, 0, len(splits))
	for userID, amount := range splits {
		entries = append(entries, OwedEntry{UserID: userID, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}
