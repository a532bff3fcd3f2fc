package handler

import (
	"net/http"

	"group-ledger/internal/service"

	"github.com/gorilla/mux"
)

type BalanceHandler struct {
	balanceService *service.BalanceService
}

func NewBalanceHandler(balanceService *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
	}
}

// GetGroupBalances returns every member's net position plus the minimal
// payment plan for the group in one currency.
func (h *BalanceHandler) GetGroupBalances(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["group_id"]
	currency := r.URL.Query().Get("currency")

	balances, err := h.balanceService.GetGroupBalances(groupID, currency)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balances)
}

func (h *BalanceHandler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["group_id"]
	userID := vars["user_id"]
	currency := r.URL.Query().Get("currency")

	balance, err := h.balanceService.GetUserBalance(userID, groupID, currency)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}
