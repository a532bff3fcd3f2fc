package service

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"group-ledger/internal/currency"
	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
	"group-ledger/internal/repository"
)

// BalanceService derives balances and minimal settlement plans straight
// from the transfer log. Nothing here writes: the log is the single source
// of truth and every number is recomputable from it.
type BalanceService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewBalanceService(store *repository.Store, logger *slog.Logger) *BalanceService {
	return &BalanceService{
		store:  store,
		logger: logger,
	}
}

// GetUserBalance folds one user's asset and liability activity. A user with
// no accounts yet simply has a zero balance.
func (s *BalanceService) GetUserBalance(userID, groupID, currencyCode string) (*domain.Balance, error) {
	ledger, err := currency.ToLedger(currencyCode)
	if err != nil {
		return nil, err
	}

	accounts := s.store.Accounts()

	asset, err := accounts.Find(userID, groupID, ledger, domain.KindAsset)
	if err != nil && err != errors.ErrAccountNotFound {
		return nil, err
	}
	liability, err := accounts.Find(userID, groupID, ledger, domain.KindLiability)
	if err != nil && err != errors.ErrAccountNotFound {
		return nil, err
	}

	var ids []int64
	if asset != nil {
		ids = append(ids, asset.ID)
	}
	if liability != nil {
		ids = append(ids, liability.ID)
	}

	balance := &domain.Balance{UserID: userID}
	if len(ids) == 0 {
		return balance, nil
	}

	activity, err := s.store.Transfers().ActivityForAccounts(ids)
	if err != nil {
		return nil, err
	}

	if asset != nil {
		balance.Asset = assetPosition(activity[asset.ID])
	}
	if liability != nil {
		balance.Liability = liabilityPosition(activity[liability.ID])
	}
	balance.Net = balance.Asset.Sub(balance.Liability)
	return balance, nil
}

// GroupBalances holds a group's per-user nets and the minimal payment plan
// resolving them.
type GroupBalances struct {
	Balances []domain.Balance `json:"balances"`
	Debts    []domain.Debt    `json:"debts"`
}

// GetGroupBalances folds every user account in the group and nets the
// result into the minimal set of pairwise payments.
func (s *BalanceService) GetGroupBalances(groupID, currencyCode string) (*GroupBalances, error) {
	ledger, err := currency.ToLedger(currencyCode)
	if err != nil {
		return nil, err
	}

	accounts, err := s.store.Accounts().ListByGroup(groupID, ledger)
	if err != nil {
		return nil, err
	}

	type pair struct {
		asset      *domain.Account
		creditSide []*domain.Account
	}
	users := make(map[string]*pair)
	var ids []int64
	for _, account := range accounts {
		// The group pool's EQUITY account participates on the credit side
		// under the group's own id, so pool contributions stay inside the
		// zero-sum netting universe. Other kinds have no netting meaning.
		switch account.Kind {
		case domain.KindAsset, domain.KindLiability, domain.KindEquity:
		default:
			continue
		}
		p, ok := users[account.OwnerID]
		if !ok {
			p = &pair{}
			users[account.OwnerID] = p
		}
		if account.Kind == domain.KindAsset {
			p.asset = account
		} else {
			p.creditSide = append(p.creditSide, account)
		}
		ids = append(ids, account.ID)
	}

	if len(ids) == 0 {
		return &GroupBalances{Balances: []domain.Balance{}, Debts: []domain.Debt{}}, nil
	}

	activity, err := s.store.Transfers().ActivityForAccounts(ids)
	if err != nil {
		return nil, err
	}

	balances := make([]domain.Balance, 0, len(users))
	for userID, p := range users {
		balance := domain.Balance{UserID: userID}
		if p.asset != nil {
			balance.Asset = assetPosition(activity[p.asset.ID])
		}
		for _, account := range p.creditSide {
			balance.Liability = balance.Liability.Add(liabilityPosition(activity[account.ID]))
		}
		balance.Net = balance.Asset.Sub(balance.Liability)
		balances = append(balances, balance)
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].UserID < balances[j].UserID
	})

	debts, err := NetDebts(balances)
	if err != nil {
		s.logger.Error("Debt netting failed", "group_id", groupID, "ledger", ledger, "error", err)
		return nil, err
	}

	return &GroupBalances{Balances: balances, Debts: debts}, nil
}

// An ASSET account increases on the debit side; a LIABILITY account on the
// credit side. These two folds are the only place the convention is applied
// to balances.
func assetPosition(a domain.AccountActivity) decimal.Decimal {
	return a.Debits.Sub(a.Credits)
}

func liabilityPosition(a domain.AccountActivity) decimal.Decimal {
	return a.Credits.Sub(a.Debits)
}
