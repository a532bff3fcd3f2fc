package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput             ErrorCode = "invalid_input"
	InvalidTransfer          ErrorCode = "invalid_transfer"
	NoSplitTargets           ErrorCode = "no_split_targets"
	MissingSplitAmount       ErrorCode = "missing_split_amount"
	MissingSplitPercentage   ErrorCode = "missing_split_percentage"
	UnknownCurrency          ErrorCode = "unknown_currency"
	AccountNotFound          ErrorCode = "account_not_found"
	TransferNotFound         ErrorCode = "transfer_not_found"
	LedgerInvariantViolation ErrorCode = "ledger_invariant_violation"
	InternalError            ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// HTTPStatus maps an error code to the status the handlers respond with.
// Validation errors are the caller's to fix; an invariant violation means
// the ledger itself is suspect and is reported as a server failure.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput, InvalidTransfer, NoSplitTargets,
		MissingSplitAmount, MissingSplitPercentage, UnknownCurrency:
		return http.StatusBadRequest
	case AccountNotFound, TransferNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrNoSplitTargets         = NewAppError(NoSplitTargets, "equal split resolved to an empty member set")
	ErrCannotBeginTransaction = NewAppError(InternalError, "executor cannot begin a transaction")
	ErrNonPositiveAmount      = NewAppError(InvalidTransfer, "transfer amount must be positive")
	ErrSameAccountTransfer    = NewAppError(InvalidTransfer, "debit and credit accounts must differ")
	ErrTransferNotFound       = NewAppError(TransferNotFound, "transfer not found")
	ErrAccountClosed          = NewAppError(InvalidTransfer, "account is closed to new transfers")
)
