package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
)

const historyColumns = `id, agent_id, currency, reference_type, reference_id,
	balance_before, delta, balance_after, created_at`

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, tx *sql.Tx, h *domain.BalanceHistory) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO agent_balance_history (
			id, agent_id, currency, reference_type, reference_id,
			balance_before, delta, balance_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.AgentID, h.Currency, h.ReferenceType, h.ReferenceID,
		h.BalanceBefore, h.Delta, h.BalanceAfter, h.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetByReference looks up the idempotency key inside the caller's
// transaction so the duplicate check and the mutation cannot interleave.
func (r *HistoryRepository) GetByReference(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, refType domain.ReferenceType, refID string) (*domain.BalanceHistory, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM agent_balance_history
		WHERE agent_id = $1 AND currency = $2 AND reference_type = $3 AND reference_id = $4`,
		agentID, currency, refType, refID,
	)
	h, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return h, nil
}

func (r *HistoryRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, currency string, limit int) ([]domain.BalanceHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM agent_balance_history
		WHERE agent_id = $1 AND currency = $2
		ORDER BY created_at DESC LIMIT $3`,
		agentID, currency, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAgent: %w", err)
	}
	defer rows.Close()

	var entries []domain.BalanceHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAgent: scan: %w", err)
		}
		entries = append(entries, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAgent: rows: %w", err)
	}
	return entries, nil
}

func scanHistory(s scanner) (*domain.BalanceHistory, error) {
	var h domain.BalanceHistory
	err := s.Scan(
		&h.ID, &h.AgentID, &h.Currency, &h.ReferenceType, &h.ReferenceID,
		&h.BalanceBefore, &h.Delta, &h.BalanceAfter, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
