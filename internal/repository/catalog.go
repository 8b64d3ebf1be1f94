package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adkhamov/termpay/internal/domain"
)

// CatalogRepository reads the provisioning tables: services, per-agent
// service settings, providers and their status→operation tables.
// Administration of these tables happens elsewhere; this core only reads.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetService(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	var s domain.Service
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, provider_id, currencies, enabled FROM services WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.ProviderID, pq.Array(&s.Currencies), &s.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetService: %w", domain.ErrServiceNotFound)
		}
		return nil, fmt.Errorf("GetService: %w", err)
	}
	return &s, nil
}

func (r *CatalogRepository) GetAgentService(ctx context.Context, agentID, serviceID uuid.UUID) (*domain.AgentService, error) {
	var as domain.AgentService
	err := r.db.QueryRowContext(ctx,
		`SELECT agent_id, service_id, fee_permille, fee_flat_minor, enabled
		FROM agent_services WHERE agent_id = $1 AND service_id = $2`,
		agentID, serviceID,
	).Scan(&as.AgentID, &as.ServiceID, &as.FeePermille, &as.FeeFlatMinor, &as.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetAgentService: %w", domain.ErrServiceNotAllowed)
		}
		return nil, fmt.Errorf("GetAgentService: %w", err)
	}
	return &as, nil
}

func (r *CatalogRepository) GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	var p domain.Provider
	var timeoutMS int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, online, base_url, timeout_ms, fee_permille, fee_flat_minor
		FROM providers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Online, &p.BaseURL, &timeoutMS, &p.FeePermille, &p.FeeFlatMinor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetProvider: %w", domain.ErrProviderNotFound)
		}
		return nil, fmt.Errorf("GetProvider: %w", err)
	}
	p.Timeout = time.Duration(timeoutMS) * time.Millisecond
	return &p, nil
}

// GetOperation resolves which provider operation handles an outbox item in
// the given status. ErrNotFound means the provider is misconfigured for this
// status, which the dispatcher surfaces as SETTING.
func (r *CatalogRepository) GetOperation(ctx context.Context, providerID uuid.UUID, status domain.OutboxStatus) (string, error) {
	var op string
	err := r.db.QueryRowContext(ctx,
		`SELECT operation FROM provider_operations WHERE provider_id = $1 AND status = $2`,
		providerID, status,
	).Scan(&op)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("GetOperation: %s/%s: %w", providerID, status, domain.ErrNotFound)
		}
		return "", fmt.Errorf("GetOperation: %w", err)
	}
	return op, nil
}
