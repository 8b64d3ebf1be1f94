package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	TransferStatusNew       TransferStatus = "NEW"
	TransferStatusPrepared  TransferStatus = "PREPARED"
	TransferStatusConfirmed TransferStatus = "CONFIRMED"
	TransferStatusSuccess   TransferStatus = "SUCCESS"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusExpired   TransferStatus = "EXPIRED"
	TransferStatusFraud     TransferStatus = "FRAUD"
)

func (s TransferStatus) IsTerminal() bool {
	switch s {
	case TransferStatusSuccess, TransferStatusFailed, TransferStatusExpired, TransferStatusFraud:
		return true
	default:
		return false
	}
}

// Transfer is one payment instruction initiated from a terminal. It owns its
// current quote; (AgentID, ExternalID) is unique and carries caller-side
// idempotency.
type Transfer struct {
	ID                         uuid.UUID
	SequenceNumber             int64
	AgentID                    uuid.UUID
	TerminalID                 uuid.UUID
	ExternalID                 string
	ServiceID                  uuid.UUID
	Method                     string
	Account                    string
	Amount                     Money
	Parameters                 map[string]string
	ProviderReceivedParameters map[string]string
	Status                     TransferStatus
	CurrentQuote               *Quote
	ProviderCode               *string
	ErrorDescription           *string
	CreatedAt                  time.Time
	PreparedAt                 *time.Time
	ConfirmedAt                *time.Time
	CompletedAt                *time.Time
}

func (t *Transfer) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// CanReplaceQuote reports whether a new quote may be attached. Quotes are
// frozen once the transfer is confirmed.
func (t *Transfer) CanReplaceQuote() bool {
	return t.Status == TransferStatusNew || t.Status == TransferStatusPrepared
}
