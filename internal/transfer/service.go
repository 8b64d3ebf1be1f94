// Package transfer implements the synchronous use-cases of the payment core:
// Check, Prepare, Confirm and Status, plus the provider-result application
// shared with the outbox dispatcher.
package transfer

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/pricing"
)

type transferRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	GetByAgentAndExternalID(ctx context.Context, agentID uuid.UUID, externalID string) (*domain.Transfer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error)
	UpdateQuote(ctx context.Context, tx *sql.Tx, id uuid.UUID, q *domain.Quote) error
	MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
	MarkTerminal(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransferStatus, providerCode, errorDescription *string, at time.Time) error
	UpdateProviderInfo(ctx context.Context, tx *sql.Tx, id uuid.UUID, providerCode, errorDescription *string) error
	UpdateReceivedParameters(ctx context.Context, tx *sql.Tx, id uuid.UUID, params map[string]string) error
}

type outboxRepo interface {
	Create(ctx context.Context, tx *sql.Tx, o *domain.Outbox) error
	GetByTransferIDForUpdate(ctx context.Context, tx *sql.Tx, transferID uuid.UUID) (*domain.Outbox, error)
	UpdateResult(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OutboxStatus, providerCode, errorDescription *string, at time.Time) error
}

type agentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
}

type catalogRepo interface {
	GetService(ctx context.Context, id uuid.UUID) (*domain.Service, error)
	GetAgentService(ctx context.Context, agentID, serviceID uuid.UUID) (*domain.AgentService, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error)
	GetOperation(ctx context.Context, providerID uuid.UUID, status domain.OutboxStatus) (string, error)
}

type ledgerService interface {
	ApplyTransferAction(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, delta int64, transferID uuid.UUID, action string) (bool, error)
}

type fxService interface {
	GetRate(ctx context.Context, agentID uuid.UUID, base, quote string) (*pricing.Rate, error)
}

type providerClient interface {
	Send(ctx context.Context, p *domain.Provider, req domain.NormalizedRequest) domain.ProviderResult
	Resolve(ctx context.Context, p *domain.Provider, serviceID uuid.UUID, account string) (map[string]string, error)
}

type Options struct {
	QuoteTTL        time.Duration
	Rounding        pricing.Rounding
	ProviderTimeout time.Duration
}

type Service struct {
	transfers transferRepo
	outbox    outboxRepo
	agents    agentRepo
	catalog   catalogRepo
	ledger    ledgerService
	fx        fxService
	client    providerClient
	db        *sql.DB
	opts      Options
}

func NewService(
	transfers transferRepo,
	outbox outboxRepo,
	agents agentRepo,
	catalog catalogRepo,
	ledger ledgerService,
	fxSvc fxService,
	client providerClient,
	db *sql.DB,
	opts Options,
) *Service {
	return &Service{
		transfers: transfers,
		outbox:    outbox,
		agents:    agents,
		catalog:   catalog,
		ledger:    ledger,
		fx:        fxSvc,
		client:    client,
		db:        db,
		opts:      opts,
	}
}

func (s *Service) providerTimeout(p *domain.Provider) time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return s.opts.ProviderTimeout
}
