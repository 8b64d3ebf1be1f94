package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAgentNotFound       = errors.New("agent not found")
	ErrAgentDisabled       = errors.New("agent disabled")
	ErrServiceNotFound     = errors.New("service not found")
	ErrServiceNotAllowed   = errors.New("service not allowed for agent")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrRateNotFound        = errors.New("exchange rate not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrCurrencyNotAllowed  = errors.New("currency not allowed for service")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidQuote        = errors.New("invalid quote")
	ErrQuoteExpired        = errors.New("quote expired")
	ErrQuoteMismatch       = errors.New("quote id does not match current quote")
	ErrAlreadyFinished     = errors.New("transfer already finished")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDuplicateTransfer   = errors.New("duplicate external id")
	ErrDuplicateReference  = errors.New("duplicate balance history reference")
)
