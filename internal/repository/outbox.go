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

const outboxColumns = `id, transfer_id, agent_id, service_id, provider_id, sequence_number,
	external_id, account, total_minor, fee_minor, credited_minor, credited_currency, currency,
	parameters, status, provider_code, error_description, attempts, created_at, updated_at`

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *sql.Tx, o *domain.Outbox) error {
	params, err := marshalParams(o.Parameters)
	if err != nil {
		return fmt.Errorf("Create: parameters: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (
			id, transfer_id, agent_id, service_id, provider_id, sequence_number,
			external_id, account, total_minor, fee_minor, credited_minor, credited_currency, currency,
			parameters, status, provider_code, error_description, attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`,
		o.ID, o.TransferID, o.AgentID, o.ServiceID, o.ProviderID, o.SequenceNumber,
		o.ExternalID, o.Account, o.Total.AmountMinor, o.Fee.AmountMinor,
		o.CreditedAmount.AmountMinor, o.CreditedAmount.Currency, o.Total.Currency,
		params, o.Status, o.ProviderCode, o.ErrorDescription, o.Attempts, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateTransfer)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetPending returns the items the dispatcher should pick up, oldest first.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]domain.Outbox, error) {
	pending := []string{
		string(domain.OutboxStatusToSend), string(domain.OutboxStatusSending),
		string(domain.OutboxStatusStatus), string(domain.OutboxStatusTechnical),
		string(domain.OutboxStatusNoResponse),
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox
		WHERE status = ANY($1)
		ORDER BY created_at LIMIT $2`,
		pq.Array(pending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer rows.Close()

	var items []domain.Outbox
	for rows.Next() {
		o, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetPending: rows: %w", err)
	}
	return items, nil
}

func (r *OutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Outbox, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE id = $1`, id,
	)
	o, err := scanOutbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return o, nil
}

func (r *OutboxRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) (*domain.Outbox, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE transfer_id = $1`, transferID,
	)
	o, err := scanOutbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransferID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransferID: %w", err)
	}
	return o, nil
}

func (r *OutboxRepository) GetByTransferIDForUpdate(ctx context.Context, tx *sql.Tx, transferID uuid.UUID) (*domain.Outbox, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE transfer_id = $1 FOR UPDATE`, transferID,
	)
	o, err := scanOutbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransferIDForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransferIDForUpdate: %w", err)
	}
	return o, nil
}

// UpdateResult records the outcome of one provider attempt.
func (r *OutboxRepository) UpdateResult(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OutboxStatus, providerCode, errorDescription *string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE outbox SET status = $1, provider_code = $2, error_description = $3,
			attempts = attempts + 1, updated_at = $4
		WHERE id = $5`,
		status, providerCode, errorDescription, at, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateResult: %w", err)
	}
	return requireRow(res, "UpdateResult", domain.ErrNotFound)
}

func scanOutbox(s scanner) (*domain.Outbox, error) {
	var (
		o        domain.Outbox
		params   []byte
		currency string
	)
	err := s.Scan(
		&o.ID, &o.TransferID, &o.AgentID, &o.ServiceID, &o.ProviderID, &o.SequenceNumber,
		&o.ExternalID, &o.Account, &o.Total.AmountMinor, &o.Fee.AmountMinor,
		&o.CreditedAmount.AmountMinor, &o.CreditedAmount.Currency, &currency,
		&params, &o.Status, &o.ProviderCode, &o.ErrorDescription, &o.Attempts, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Total.Currency = currency
	o.Fee.Currency = currency
	if o.Parameters, err = unmarshalParams(params); err != nil {
		return nil, fmt.Errorf("scanOutbox: parameters: %w", err)
	}
	return &o, nil
}
