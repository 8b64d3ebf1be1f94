package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adkhamov/termpay/internal/domain"
)

const transferColumns = `id, sequence_number, agent_id, terminal_id, external_id, service_id,
	method, account, amount_minor, currency, parameters, provider_received_parameters, status,
	quote_id, quote_total_minor, quote_fee_minor, quote_provider_fee_minor,
	quote_credited_minor, quote_credited_currency, quote_exchange_rate, quote_rate_timestamp,
	quote_expires_at, provider_code, error_description,
	created_at, prepared_at, confirmed_at, completed_at`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts the transfer and fills in its database-assigned sequence
// number.
func (r *TransferRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error {
	params, err := marshalParams(t.Parameters)
	if err != nil {
		return fmt.Errorf("Create: parameters: %w", err)
	}
	received, err := marshalParams(t.ProviderReceivedParameters)
	if err != nil {
		return fmt.Errorf("Create: received parameters: %w", err)
	}

	q := t.CurrentQuote
	if q == nil {
		return fmt.Errorf("Create: missing quote: %w", domain.ErrInvalidQuote)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO transfers (
			id, agent_id, terminal_id, external_id, service_id,
			method, account, amount_minor, currency, parameters, provider_received_parameters, status,
			quote_id, quote_total_minor, quote_fee_minor, quote_provider_fee_minor,
			quote_credited_minor, quote_credited_currency, quote_exchange_rate, quote_rate_timestamp,
			quote_expires_at, provider_code, error_description,
			created_at, prepared_at, confirmed_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27
		) RETURNING sequence_number`,
		t.ID, t.AgentID, t.TerminalID, t.ExternalID, t.ServiceID,
		t.Method, t.Account, t.Amount.AmountMinor, t.Amount.Currency, params, received, t.Status,
		q.ID, q.Total.AmountMinor, q.Fee.AmountMinor, q.ProviderFee.AmountMinor,
		q.CreditedAmount.AmountMinor, q.CreditedAmount.Currency, q.ExchangeRate, q.RateTimestamp,
		q.ExpiresAt, t.ProviderCode, t.ErrorDescription,
		t.CreatedAt, t.PreparedAt, t.ConfirmedAt, t.CompletedAt,
	).Scan(&t.SequenceNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateTransfer)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransferRepository) GetByAgentAndExternalID(ctx context.Context, agentID uuid.UUID, externalID string) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE agent_id = $1 AND external_id = $2`,
		agentID, externalID,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByAgentAndExternalID: %w", domain.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("GetByAgentAndExternalID: %w", err)
	}
	return t, nil
}

func (r *TransferRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

// UpdateQuote replaces the current quote. Only legal while the transfer is
// still PREPARED.
func (r *TransferRepository) UpdateQuote(ctx context.Context, tx *sql.Tx, id uuid.UUID, q *domain.Quote) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transfers SET
			quote_id = $1, quote_total_minor = $2, quote_fee_minor = $3, quote_provider_fee_minor = $4,
			quote_credited_minor = $5, quote_credited_currency = $6, quote_exchange_rate = $7,
			quote_rate_timestamp = $8, quote_expires_at = $9
		WHERE id = $10 AND status = $11`,
		q.ID, q.Total.AmountMinor, q.Fee.AmountMinor, q.ProviderFee.AmountMinor,
		q.CreditedAmount.AmountMinor, q.CreditedAmount.Currency, q.ExchangeRate,
		q.RateTimestamp, q.ExpiresAt,
		id, domain.TransferStatusPrepared,
	)
	if err != nil {
		return fmt.Errorf("UpdateQuote: %w", err)
	}
	return requireRow(res, "UpdateQuote", domain.ErrInvalidTransition)
}

func (r *TransferRepository) MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transfers SET status = $1, confirmed_at = $2 WHERE id = $3 AND status = $4`,
		domain.TransferStatusConfirmed, at, id, domain.TransferStatusPrepared,
	)
	if err != nil {
		return fmt.Errorf("MarkConfirmed: %w", err)
	}
	return requireRow(res, "MarkConfirmed", domain.ErrInvalidTransition)
}

// MarkTerminal moves CONFIRMED to a terminal status. The status guard makes
// re-application after a crash a no-op at the SQL level.
func (r *TransferRepository) MarkTerminal(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransferStatus, providerCode, errorDescription *string, at time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("MarkTerminal: %s: %w", status, domain.ErrInvalidTransition)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE transfers SET status = $1, provider_code = $2, error_description = $3, completed_at = $4
		WHERE id = $5 AND status = $6`,
		status, providerCode, errorDescription, at, id, domain.TransferStatusConfirmed,
	)
	if err != nil {
		return fmt.Errorf("MarkTerminal: %w", err)
	}
	return requireRow(res, "MarkTerminal", domain.ErrInvalidTransition)
}

// UpdateProviderInfo records the provider's interim code/description without
// touching the status.
func (r *TransferRepository) UpdateProviderInfo(ctx context.Context, tx *sql.Tx, id uuid.UUID, providerCode, errorDescription *string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE transfers SET provider_code = $1, error_description = $2 WHERE id = $3`,
		providerCode, errorDescription, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateProviderInfo: %w", err)
	}
	return nil
}

func (r *TransferRepository) UpdateReceivedParameters(ctx context.Context, tx *sql.Tx, id uuid.UUID, params map[string]string) error {
	raw, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("UpdateReceivedParameters: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE transfers SET provider_received_parameters = $1 WHERE id = $2`,
		raw, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateReceivedParameters: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, op string, sentinel error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return nil
}

func scanTransfer(s scanner) (*domain.Transfer, error) {
	var (
		t             domain.Transfer
		params        []byte
		received      []byte
		quoteID       sql.NullString
		totalMinor    sql.NullInt64
		feeMinor      sql.NullInt64
		provFeeMinor  sql.NullInt64
		creditedMinor sql.NullInt64
		creditedCcy   sql.NullString
		exchangeRate  decimal.NullDecimal
		rateTimestamp sql.NullTime
		expiresAt     sql.NullTime
	)

	err := s.Scan(
		&t.ID, &t.SequenceNumber, &t.AgentID, &t.TerminalID, &t.ExternalID, &t.ServiceID,
		&t.Method, &t.Account, &t.Amount.AmountMinor, &t.Amount.Currency, &params, &received, &t.Status,
		&quoteID, &totalMinor, &feeMinor, &provFeeMinor,
		&creditedMinor, &creditedCcy, &exchangeRate, &rateTimestamp,
		&expiresAt, &t.ProviderCode, &t.ErrorDescription,
		&t.CreatedAt, &t.PreparedAt, &t.ConfirmedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.Parameters, err = unmarshalParams(params); err != nil {
		return nil, fmt.Errorf("scanTransfer: parameters: %w", err)
	}
	if t.ProviderReceivedParameters, err = unmarshalParams(received); err != nil {
		return nil, fmt.Errorf("scanTransfer: received parameters: %w", err)
	}

	if quoteID.Valid {
		q := &domain.Quote{
			ID:             quoteID.String,
			Total:          domain.Money{AmountMinor: totalMinor.Int64, Currency: t.Amount.Currency},
			Fee:            domain.Money{AmountMinor: feeMinor.Int64, Currency: t.Amount.Currency},
			ProviderFee:    domain.Money{AmountMinor: provFeeMinor.Int64, Currency: t.Amount.Currency},
			CreditedAmount: domain.Money{AmountMinor: creditedMinor.Int64, Currency: creditedCcy.String},
			ExpiresAt:      expiresAt.Time,
		}
		if exchangeRate.Valid {
			q.ExchangeRate = &exchangeRate.Decimal
		}
		if rateTimestamp.Valid {
			ts := rateTimestamp.Time
			q.RateTimestamp = &ts
		}
		t.CurrentQuote = q
	}

	return &t, nil
}

func marshalParams(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func unmarshalParams(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
