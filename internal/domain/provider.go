package domain

import (
	"time"

	"github.com/google/uuid"
)

// Provider is the external settlement counterparty for one or more services.
// Online providers support synchronous call-and-wait during Confirm; offline
// providers are driven through the outbox.
type Provider struct {
	ID           uuid.UUID
	Name         string
	Online       bool
	BaseURL      string
	Timeout      time.Duration
	FeePermille  int64
	FeeFlatMinor int64
}

// Service is a payable destination (mobile top-up, wallet, utility) settled
// through a single provider in one or more currencies.
type Service struct {
	ID         uuid.UUID
	Name       string
	ProviderID uuid.UUID
	Currencies []string
	Enabled    bool
}

func (s *Service) SettlesIn(currency string) bool {
	for _, c := range s.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// AgentService carries the per-agent fee schedule and access flag for one
// service.
type AgentService struct {
	AgentID      uuid.UUID
	ServiceID    uuid.UUID
	FeePermille  int64
	FeeFlatMinor int64
	Enabled      bool
}

type ProviderStatus string

const (
	ProviderStatusSuccess    ProviderStatus = "SUCCESS"
	ProviderStatusSending    ProviderStatus = "SENDING"
	ProviderStatusStatus     ProviderStatus = "STATUS"
	ProviderStatusTechnical  ProviderStatus = "TECHNICAL"
	ProviderStatusFailed     ProviderStatus = "FAILED"
	ProviderStatusExpired    ProviderStatus = "EXPIRED"
	ProviderStatusFraud      ProviderStatus = "FRAUD"
	ProviderStatusNoResponse ProviderStatus = "NORESPONSE"
	ProviderStatusSetting    ProviderStatus = "SETTING"
)

// IsTerminalFailure reports whether the outcome ends the transfer negatively
// and the debited total must be credited back.
func (s ProviderStatus) IsTerminalFailure() bool {
	switch s {
	case ProviderStatusFailed, ProviderStatusExpired, ProviderStatusFraud:
		return true
	default:
		return false
	}
}

// Known reports whether the value is one of the statuses a provider may
// legitimately return.
func (s ProviderStatus) Known() bool {
	switch s {
	case ProviderStatusSuccess, ProviderStatusSending, ProviderStatusStatus,
		ProviderStatusTechnical, ProviderStatusFailed, ProviderStatusExpired,
		ProviderStatusFraud, ProviderStatusNoResponse, ProviderStatusSetting:
		return true
	default:
		return false
	}
}

// NormalizedRequest is the provider-agnostic request shape; protocol-specific
// rendering happens behind the provider client.
type NormalizedRequest struct {
	TransferID     uuid.UUID
	SequenceNumber int64
	ExternalID     string
	ServiceID      uuid.UUID
	Operation      string
	Account        string
	AmountMinor    int64
	FeeMinor       int64
	Currency       string
	Parameters     map[string]string
	CreatedAt      time.Time
}

// ProviderResult is the coarse-grained outcome of one provider call plus the
// raw field bag the provider returned.
type ProviderResult struct {
	Status ProviderStatus
	Code   *string
	Error  string
	Fields map[string]string
}
