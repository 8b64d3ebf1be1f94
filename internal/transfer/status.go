package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
)

// Status returns the latest committed state of a transfer. The reference is
// tried as the caller's external id first and then, when it parses, as the
// internal transfer id. Lookups are scoped to the requesting agent.
func (s *Service) Status(ctx context.Context, agentID uuid.UUID, reference string) (*domain.Transfer, error) {
	if reference == "" {
		return nil, fmt.Errorf("Status: reference required: %w", domain.ErrInvalidRequest)
	}

	t, err := s.transfers.GetByAgentAndExternalID(ctx, agentID, reference)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrTransferNotFound) {
		return nil, fmt.Errorf("Status: %w", err)
	}

	id, parseErr := uuid.Parse(reference)
	if parseErr != nil {
		return nil, fmt.Errorf("Status: %w", domain.ErrTransferNotFound)
	}

	t, err = s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Status: %w", err)
	}
	if t.AgentID != agentID {
		return nil, fmt.Errorf("Status: %w", domain.ErrTransferNotFound)
	}
	return t, nil
}
