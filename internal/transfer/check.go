package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
)

type CheckRequest struct {
	AgentID     uuid.UUID
	ServiceID   uuid.UUID
	Account     string
	AmountMinor int64
	Currency    string
}

// CheckResult carries what a terminal needs before composing a Prepare call:
// the account fields the provider resolved and a preview quote per settlement
// currency. Nothing is persisted.
type CheckResult struct {
	ServiceID uuid.UUID
	Account   string
	Resolved  map[string]string
	Quotes    []CurrencyQuote
}

type CurrencyQuote struct {
	Currency string
	Quote    *domain.Quote
}

// Check validates access the same way Prepare does and asks the provider to
// resolve the account. Currencies without a usable FX rate are dropped from
// the preview rather than failing the whole call.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	log := logging.FromContext(ctx)

	access, err := s.resolveAccess(ctx, req.AgentID, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("Check: %w", err)
	}
	if req.Account == "" {
		return nil, fmt.Errorf("Check: account required: %w", domain.ErrInvalidRequest)
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("Check: %w", domain.ErrInvalidAmount)
	}

	amount, err := domain.NewMoney(req.AmountMinor, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("Check: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout(access.provider))
	defer cancel()
	resolved, err := s.client.Resolve(callCtx, access.provider, req.ServiceID, req.Account)
	if err != nil {
		return nil, fmt.Errorf("Check: resolve account: %w", err)
	}

	result := &CheckResult{
		ServiceID: req.ServiceID,
		Account:   req.Account,
		Resolved:  resolved,
	}
	for _, cur := range access.service.Currencies {
		quote, err := s.buildQuote(ctx, req.AgentID, access, amount, cur)
		if err != nil {
			if errors.Is(err, domain.ErrRateNotFound) {
				log.Warn("no rate for settlement currency, skipping",
					"service_id", req.ServiceID, "base", amount.Currency, "quote", cur,
				)
				continue
			}
			return nil, fmt.Errorf("Check: %w", err)
		}
		result.Quotes = append(result.Quotes, CurrencyQuote{Currency: cur, Quote: quote})
	}

	log.Info("check completed",
		"agent_id", req.AgentID,
		"service_id", req.ServiceID,
		"currencies", len(result.Quotes),
	)
	return result, nil
}
