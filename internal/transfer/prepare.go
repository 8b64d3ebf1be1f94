package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
	"github.com/adkhamov/termpay/internal/pricing"
)

type PrepareRequest struct {
	AgentID            uuid.UUID
	TerminalID         uuid.UUID
	ExternalID         string
	ServiceID          uuid.UUID
	Method             string
	Account            string
	AmountMinor        int64
	Currency           string
	SettlementCurrency string
	Parameters         map[string]string
}

// Prepare creates a PREPARED transfer with a fresh quote. Re-invoking for an
// (agent, external id) pair that is still PREPARED returns the existing
// transfer; if its quote has expired in the meantime, the transfer is
// re-priced under a new quote id.
func (s *Service) Prepare(ctx context.Context, req PrepareRequest) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	access, err := s.resolveAccess(ctx, req.AgentID, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("Prepare: %w", err)
	}

	amount, settlement, err := validatePrepare(req, access.service)
	if err != nil {
		return nil, fmt.Errorf("Prepare: %w", err)
	}

	existing, err := s.transfers.GetByAgentAndExternalID(ctx, req.AgentID, req.ExternalID)
	if err != nil && !errors.Is(err, domain.ErrTransferNotFound) {
		return nil, fmt.Errorf("Prepare: %w", err)
	}
	if existing != nil {
		t, err := s.replayPrepare(ctx, existing, access, amount, settlement)
		if err != nil {
			return nil, fmt.Errorf("Prepare: %w", err)
		}
		log.Info("prepare replayed", "transfer_id", t.ID, "external_id", req.ExternalID, "quote_id", t.CurrentQuote.ID)
		return t, nil
	}

	quote, err := s.buildQuote(ctx, req.AgentID, access, amount, settlement)
	if err != nil {
		return nil, fmt.Errorf("Prepare: %w", err)
	}

	now := time.Now().UTC()
	t := &domain.Transfer{
		ID:           uuid.New(),
		AgentID:      req.AgentID,
		TerminalID:   req.TerminalID,
		ExternalID:   req.ExternalID,
		ServiceID:    req.ServiceID,
		Method:       req.Method,
		Account:      req.Account,
		Amount:       amount,
		Parameters:   req.Parameters,
		Status:       domain.TransferStatusPrepared,
		CurrentQuote: quote,
		CreatedAt:    now,
		PreparedAt:   &now,
	}

	if err := s.createTransfer(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransfer) {
			// Lost an insert race with a concurrent Prepare for the same
			// external id; fall back to the replay path.
			raced, rerr := s.transfers.GetByAgentAndExternalID(ctx, req.AgentID, req.ExternalID)
			if rerr != nil {
				return nil, fmt.Errorf("Prepare: %w", rerr)
			}
			t, rerr := s.replayPrepare(ctx, raced, access, amount, settlement)
			if rerr != nil {
				return nil, fmt.Errorf("Prepare: %w", rerr)
			}
			return t, nil
		}
		return nil, fmt.Errorf("Prepare: %w", err)
	}

	log.Info("transfer prepared",
		"transfer_id", t.ID,
		"external_id", req.ExternalID,
		"agent_id", req.AgentID,
		"service_id", req.ServiceID,
		"total", quote.Total.AmountMinor,
		"currency", quote.Total.Currency,
		"quote_id", quote.ID,
	)
	return t, nil
}

type serviceAccess struct {
	agent    *domain.Agent
	service  *domain.Service
	settings *domain.AgentService
	provider *domain.Provider
}

func (s *Service) resolveAccess(ctx context.Context, agentID, serviceID uuid.UUID) (*serviceAccess, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("resolveAccess: %w", err)
	}
	if !agent.Enabled {
		return nil, fmt.Errorf("resolveAccess: %w", domain.ErrAgentDisabled)
	}

	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("resolveAccess: %w", err)
	}
	if !svc.Enabled {
		return nil, fmt.Errorf("resolveAccess: %w", domain.ErrServiceNotAllowed)
	}

	settings, err := s.catalog.GetAgentService(ctx, agentID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("resolveAccess: %w", err)
	}
	if !settings.Enabled {
		return nil, fmt.Errorf("resolveAccess: %w", domain.ErrServiceNotAllowed)
	}

	provider, err := s.catalog.GetProvider(ctx, svc.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("resolveAccess: %w", err)
	}

	return &serviceAccess{agent: agent, service: svc, settings: settings, provider: provider}, nil
}

func validatePrepare(req PrepareRequest, svc *domain.Service) (domain.Money, string, error) {
	if req.ExternalID == "" {
		return domain.Money{}, "", fmt.Errorf("validatePrepare: external id required: %w", domain.ErrInvalidRequest)
	}
	if req.Account == "" {
		return domain.Money{}, "", fmt.Errorf("validatePrepare: account required: %w", domain.ErrInvalidRequest)
	}
	if req.AmountMinor <= 0 {
		return domain.Money{}, "", fmt.Errorf("validatePrepare: %w", domain.ErrInvalidAmount)
	}

	amount, err := domain.NewMoney(req.AmountMinor, req.Currency)
	if err != nil {
		return domain.Money{}, "", fmt.Errorf("validatePrepare: %w", err)
	}

	settlement := req.SettlementCurrency
	if settlement == "" {
		if svc.SettlesIn(amount.Currency) {
			settlement = amount.Currency
		} else if len(svc.Currencies) > 0 {
			settlement = svc.Currencies[0]
		}
	}
	if !svc.SettlesIn(settlement) {
		return domain.Money{}, "", fmt.Errorf("validatePrepare: %q: %w", settlement, domain.ErrCurrencyNotAllowed)
	}

	return amount, settlement, nil
}

func (s *Service) buildQuote(ctx context.Context, agentID uuid.UUID, access *serviceAccess, amount domain.Money, settlement string) (*domain.Quote, error) {
	var rate *pricing.Rate
	if settlement != amount.Currency {
		r, err := s.fx.GetRate(ctx, agentID, amount.Currency, settlement)
		if err != nil {
			return nil, fmt.Errorf("buildQuote: %w", err)
		}
		rate = r
	}

	agentFees := pricing.FeeSchedule{Permille: access.settings.FeePermille, FlatMinor: access.settings.FeeFlatMinor}
	providerFees := pricing.FeeSchedule{Permille: access.provider.FeePermille, FlatMinor: access.provider.FeeFlatMinor}

	quote, err := pricing.CreateQuote(amount, agentFees, providerFees, settlement, rate, s.opts.Rounding, s.opts.QuoteTTL, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("buildQuote: %w", err)
	}
	return quote, nil
}

func (s *Service) createTransfer(ctx context.Context, t *domain.Transfer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("createTransfer: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transfers.Create(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("createTransfer: commit: %w", err)
	}
	return nil
}

func (s *Service) replayPrepare(ctx context.Context, existing *domain.Transfer, access *serviceAccess, amount domain.Money, settlement string) (*domain.Transfer, error) {
	if existing.Status != domain.TransferStatusPrepared {
		return nil, fmt.Errorf("replayPrepare: status %s: %w", existing.Status, domain.ErrDuplicateTransfer)
	}

	// A replay must carry the same amount and settlement; anything else is a
	// different transfer wearing an already-used external id.
	if existing.Amount != amount {
		return nil, fmt.Errorf("replayPrepare: amount %d/%s differs from stored %d/%s: %w",
			amount.AmountMinor, amount.Currency, existing.Amount.AmountMinor, existing.Amount.Currency,
			domain.ErrDuplicateTransfer)
	}
	if existing.CurrentQuote != nil && existing.CurrentQuote.CreditedAmount.Currency != settlement {
		return nil, fmt.Errorf("replayPrepare: settlement %s differs from stored %s: %w",
			settlement, existing.CurrentQuote.CreditedAmount.Currency, domain.ErrDuplicateTransfer)
	}

	if existing.CurrentQuote != nil && !existing.CurrentQuote.IsExpired(time.Now().UTC()) {
		return existing, nil
	}

	quote, err := s.buildQuote(ctx, existing.AgentID, access, existing.Amount, settlement)
	if err != nil {
		return nil, fmt.Errorf("replayPrepare: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("replayPrepare: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transfers.UpdateQuote(ctx, tx, existing.ID, quote); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Confirmed or finished underneath us; the old quote stands.
			return nil, fmt.Errorf("replayPrepare: %w", domain.ErrDuplicateTransfer)
		}
		return nil, fmt.Errorf("replayPrepare: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("replayPrepare: commit: %w", err)
	}

	existing.CurrentQuote = quote
	return existing, nil
}
