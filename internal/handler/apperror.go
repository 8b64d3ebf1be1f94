package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrMissingAgent     = &AppError{http.StatusBadRequest, "MISSING_AGENT", "X-Agent-ID header is required"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAgentNotFound       = &AppError{http.StatusNotFound, "AGENT_NOT_FOUND", "Agent not found"}
	ErrServiceNotFound     = &AppError{http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found"}
	ErrTransferNotFound    = &AppError{http.StatusNotFound, "TRANSFER_NOT_FOUND", "Transfer not found"}
	ErrAgentDisabled       = &AppError{http.StatusForbidden, "AGENT_DISABLED", "Agent is disabled"}
	ErrServiceNotAllowed   = &AppError{http.StatusForbidden, "SERVICE_NOT_ALLOWED", "Service is not available to this agent"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient balance"}
	ErrCurrencyNotAllowed  = &AppError{http.StatusUnprocessableEntity, "CURRENCY_NOT_ALLOWED", "Currency not supported by this service"}
	ErrCurrencyMismatch    = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrRateNotFound        = &AppError{http.StatusUnprocessableEntity, "RATE_NOT_FOUND", "No exchange rate available"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrQuoteExpired        = &AppError{http.StatusConflict, "QUOTE_EXPIRED", "Quote has expired, call prepare again"}
	ErrQuoteMismatch       = &AppError{http.StatusConflict, "QUOTE_MISMATCH", "Quote id does not match the current quote"}
	ErrAlreadyFinished     = &AppError{http.StatusConflict, "ALREADY_FINISHED", "Transfer already reached a final state"}
	ErrDuplicateTransfer   = &AppError{http.StatusConflict, "DUPLICATE_TRANSFER", "External id already used for a different transfer"}
	ErrDuplicateReference  = &AppError{http.StatusConflict, "DUPLICATE_REFERENCE", "Reference already applied to the ledger"}
)
