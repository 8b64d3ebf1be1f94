package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusToSend     OutboxStatus = "TO_SEND"
	OutboxStatusSending    OutboxStatus = "SENDING"
	OutboxStatusStatus     OutboxStatus = "STATUS"
	OutboxStatusSuccess    OutboxStatus = "SUCCESS"
	OutboxStatusTechnical  OutboxStatus = "TECHNICAL"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusExpired    OutboxStatus = "EXPIRED"
	OutboxStatusFraud      OutboxStatus = "FRAUD"
	OutboxStatusNoResponse OutboxStatus = "NORESPONSE"
	OutboxStatusSetting    OutboxStatus = "SETTING"
)

// IsPending reports whether the dispatcher should still pick the item up.
// TECHNICAL and NORESPONSE stay pending: they are retried until an operator
// intervenes. SETTING is an operator-held configuration error, not retried.
func (s OutboxStatus) IsPending() bool {
	switch s {
	case OutboxStatusToSend, OutboxStatusSending, OutboxStatusStatus,
		OutboxStatusTechnical, OutboxStatusNoResponse:
		return true
	default:
		return false
	}
}

func (s OutboxStatus) IsTerminal() bool {
	switch s {
	case OutboxStatusSuccess, OutboxStatusFailed, OutboxStatusExpired, OutboxStatusFraud:
		return true
	default:
		return false
	}
}

// Outbox is a durable work item projected from a Transfer when the provider
// could not be resolved synchronously. It freezes everything the dispatcher
// needs so processing never has to lock the Transfer for the provider
// round-trip.
type Outbox struct {
	ID               uuid.UUID
	TransferID       uuid.UUID
	AgentID          uuid.UUID
	ServiceID        uuid.UUID
	ProviderID       uuid.UUID
	SequenceNumber   int64
	ExternalID       string
	Account          string
	Total            Money
	Fee              Money
	CreditedAmount   Money
	Parameters       map[string]string
	Status           OutboxStatus
	ProviderCode     *string
	ErrorDescription *string
	Attempts         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
