package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
)

type AgentRepository struct {
	db *sql.DB
}

func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	var a domain.Agent
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, time_zone, enabled, created_at FROM agents WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.TimeZone, &a.Enabled, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAgentNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT currency, balance FROM agent_balances WHERE agent_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByID: balances: %w", err)
	}
	defer rows.Close()

	a.Balances = make(map[string]int64)
	for rows.Next() {
		var currency string
		var balance int64
		if err := rows.Scan(&currency, &balance); err != nil {
			return nil, fmt.Errorf("GetByID: scan balance: %w", err)
		}
		a.Balances[currency] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByID: rows: %w", err)
	}
	return &a, nil
}

// LockBalance takes the per-(agent, currency) row lock that serializes all
// balance mutations. The row is created lazily so a first-ever credit does
// not need special handling.
func (r *AgentRepository) LockBalance(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO agent_balances (agent_id, currency, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (agent_id, currency) DO NOTHING`,
		agentID, currency,
	)
	if err != nil {
		return 0, fmt.Errorf("LockBalance: ensure row: %w", err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM agent_balances WHERE agent_id = $1 AND currency = $2 FOR UPDATE`,
		agentID, currency,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("LockBalance: %w", err)
	}
	return balance, nil
}

func (r *AgentRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, newBalance int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE agent_balances SET balance = $1 WHERE agent_id = $2 AND currency = $3`,
		newBalance, agentID, currency,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrNotFound)
	}
	return nil
}
