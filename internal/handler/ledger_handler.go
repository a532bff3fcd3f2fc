package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"group-ledger/internal/errors"
	"group-ledger/internal/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	ledgerService *service.LedgerService
}

func NewLedgerHandler(ledgerService *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

type SplitTargetRequest struct {
	UserID     string `json:"user_id"`
	Amount     string `json:"amount,omitempty"`
	Percentage string `json:"percentage,omitempty"`
}

type LineItemRequest struct {
	Name      string   `json:"name"`
	Quantity  int64    `json:"quantity"`
	UnitPrice string   `json:"unit_price"`
	Assignees []string `json:"assignees,omitempty"`
}

type RecordExpenseRequest struct {
	ExpenseID string               `json:"expense_id"`
	GroupID   string               `json:"group_id"`
	PayerID   string               `json:"payer_id"`
	Amount    string               `json:"amount"`
	Currency  string               `json:"currency"`
	SplitType string               `json:"split_type"`
	Targets   []SplitTargetRequest `json:"targets,omitempty"`
	Items     []LineItemRequest    `json:"items,omitempty"`
}

func (h *LedgerHandler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req RecordExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid amount format").WithDetails(err.Error()))
		return
	}

	targets, appErr := parseTargets(req.Targets)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	items, appErr := parseItems(req.Items)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	result, err := h.ledgerService.RecordExpense(&service.ExpenseRequest{
		ExpenseID: req.ExpenseID,
		GroupID:   req.GroupID,
		PayerID:   req.PayerID,
		Amount:    amount,
		Currency:  req.Currency,
		SplitType: service.SplitType(req.SplitType),
		Targets:   targets,
		Items:     items,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type RecordSettlementRequest struct {
	GroupID           string `json:"group_id"`
	FromUserID        string `json:"from_user_id"`
	ToUserID          string `json:"to_user_id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	PaymentMethodCode string `json:"payment_method_code,omitempty"`
}

type TransferResponse struct {
	TransferID      string `json:"transfer_id"`
	Code            string `json:"code"`
	Amount          string `json:"amount"`
	RelatedEntityID string `json:"related_entity_id"`
}

func (h *LedgerHandler) RecordSettlement(w http.ResponseWriter, r *http.Request) {
	var req RecordSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid amount format").WithDetails(err.Error()))
		return
	}

	transfer, err := h.ledgerService.RecordSettlement(&service.SettlementRequest{
		GroupID:           req.GroupID,
		FromUserID:        req.FromUserID,
		ToUserID:          req.ToUserID,
		Amount:            amount,
		Currency:          req.Currency,
		PaymentMethodCode: req.PaymentMethodCode,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transferResponse(transfer.ID.String(), string(transfer.Code), transfer.Amount.String(), transfer.RelatedEntityID))
}

type RecordAdjustmentRequest struct {
	ExpenseID string `json:"expense_id"`
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id"`
	PayerID   string `json:"payer_id"`
	Delta     string `json:"delta"`
	Currency  string `json:"currency"`
	Direction string `json:"direction"`
}

func (h *LedgerHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	var req RecordAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid delta format").WithDetails(err.Error()))
		return
	}

	transfer, err := h.ledgerService.RecordAdjustment(&service.AdjustmentRequest{
		ExpenseID: req.ExpenseID,
		GroupID:   req.GroupID,
		UserID:    req.UserID,
		PayerID:   req.PayerID,
		Delta:     delta,
		Currency:  req.Currency,
		Direction: service.AdjustmentDirection(req.Direction),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transferResponse(transfer.ID.String(), string(transfer.Code), transfer.Amount.String(), transfer.RelatedEntityID))
}

func (h *LedgerHandler) ReverseExpense(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	expenseID := vars["expense_id"]

	reversals, err := h.ledgerService.ReverseExpense(expenseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responses := make([]TransferResponse, 0, len(reversals))
	for _, t := range reversals {
		responses = append(responses, transferResponse(t.ID.String(), string(t.Code), t.Amount.String(), t.RelatedEntityID))
	}
	writeJSON(w, http.StatusCreated, responses)
}

type RecordPoolRequest struct {
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Direction string `json:"direction"`
}

func (h *LedgerHandler) RecordPoolEntry(w http.ResponseWriter, r *http.Request) {
	var req RecordPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid amount format").WithDetails(err.Error()))
		return
	}

	transfer, err := h.ledgerService.RecordPoolEntry(&service.PoolRequest{
		GroupID:   req.GroupID,
		UserID:    req.UserID,
		Amount:    amount,
		Currency:  req.Currency,
		Direction: service.PoolDirection(req.Direction),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transferResponse(transfer.ID.String(), string(transfer.Code), transfer.Amount.String(), transfer.RelatedEntityID))
}

func (h *LedgerHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	transfer, err := h.ledgerService.GetTransfer(vars["transfer_id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transfer)
}

func (h *LedgerHandler) ListBatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	transfers, err := h.ledgerService.ListBatch(vars["link_group_id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transfers)
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *LedgerHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["group_id"]

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	if err := h.ledgerService.AddMember(groupID, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"group_id": groupID,
		"user_id":  req.UserID,
	})
}

func (h *LedgerHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	members, err := h.ledgerService.ListMembers(vars["group_id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []string{}
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, appErr := parseAccountID(mux.Vars(r)["account_id"])
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	account, err := h.ledgerService.GetAccount(accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *LedgerHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	accountID, appErr := parseAccountID(mux.Vars(r)["account_id"])
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.ledgerService.CloseAccount(accountID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"closed":     true,
	})
}

func parseAccountID(raw string) (int64, *errors.AppError) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewAppError(errors.InvalidInput, "account id must be a positive integer")
	}
	return id, nil
}

func transferResponse(id, code, amount, relatedEntityID string) TransferResponse {
	return TransferResponse{
		TransferID:      id,
		Code:            code,
		Amount:          amount,
		RelatedEntityID: relatedEntityID,
	}
}

func parseTargets(targets []SplitTargetRequest) ([]service.SplitTarget, *errors.AppError) {
	parsed := make([]service.SplitTarget, 0, len(targets))
	for _, t := range targets {
		target := service.SplitTarget{UserID: t.UserID}
		if t.Amount != "" {
			amount, err := decimal.NewFromString(t.Amount)
			if err != nil {
				return nil, errors.NewAppErrorf(errors.InvalidInput, "invalid amount for target %q", t.UserID).WithDetails(err.Error())
			}
			target.Amount = &amount
		}
		if t.Percentage != "" {
			percentage, err := decimal.NewFromString(t.Percentage)
			if err != nil {
				return nil, errors.NewAppErrorf(errors.InvalidInput, "invalid percentage for target %q", t.UserID).WithDetails(err.Error())
			}
			target.Percentage = &percentage
		}
		parsed = append(parsed, target)
	}
	return parsed, nil
}

func parseItems(items []LineItemRequest) ([]service.LineItem, *errors.AppError) {
	parsed := make([]service.LineItem, 0, len(items))
	for _, i := range items {
		unitPrice, err := decimal.NewFromString(i.UnitPrice)
		if err != nil {
			return nil, errors.NewAppErrorf(errors.InvalidInput, "invalid unit price for item %q", i.Name).WithDetails(err.Error())
		}
		quantity := i.Quantity
		if quantity == 0 {
			quantity = 1
		}
		parsed = append(parsed, service.LineItem{
			Name:      i.Name,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			Assignees: i.Assignees,
		})
	}
	return parsed, nil
}
