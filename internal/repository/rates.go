package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adkhamov/termpay/internal/domain"
)

type RateRepository struct {
	db *sql.DB
}

func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

// GetRate returns the freshest rate for the pair, preferring an
// agent-specific override over the default row.
func (r *RateRepository) GetRate(ctx context.Context, agentID uuid.UUID, base, quote string) (decimal.Decimal, time.Time, error) {
	var rate decimal.Decimal
	var asOf time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT rate, as_of FROM fx_rates
		WHERE base_currency = $2 AND quote_currency = $3 AND (agent_id = $1 OR agent_id IS NULL)
		ORDER BY agent_id NULLS LAST, as_of DESC
		LIMIT 1`,
		agentID, base, quote,
	).Scan(&rate, &asOf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, time.Time{}, fmt.Errorf("GetRate: %s/%s: %w", base, quote, domain.ErrNotFound)
		}
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("GetRate: %w", err)
	}
	return rate, asOf, nil
}
