package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
)

type ConfirmRequest struct {
	AgentID    uuid.UUID
	ExternalID string
	QuoteID    string
}

// Confirm debits the agent for the quoted total, moves the transfer to
// CONFIRMED, and then either calls the provider inline (online providers) or
// projects an outbox item for the dispatcher. Retrying Confirm on an
// already-CONFIRMED transfer returns the prior result without a second
// debit; a transfer in a terminal state yields ErrAlreadyFinished.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	t, err := s.transfers.GetByAgentAndExternalID(ctx, req.AgentID, req.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	if t.Status == domain.TransferStatusConfirmed {
		log.Info("confirm replayed", "transfer_id", t.ID, "external_id", req.ExternalID)
		return t, nil
	}
	if t.IsTerminal() {
		return nil, fmt.Errorf("Confirm: %w", domain.ErrAlreadyFinished)
	}
	if err := checkQuote(t, req.QuoteID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	svc, err := s.catalog.GetService(ctx, t.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}
	provider, err := s.catalog.GetProvider(ctx, svc.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	// An online provider without a configured send operation degrades to the
	// outbox so the dispatcher can surface the configuration problem.
	syncOp := ""
	if provider.Online {
		if op, opErr := s.catalog.GetOperation(ctx, provider.ID, domain.OutboxStatusToSend); opErr == nil {
			syncOp = op
		}
	}

	// The outbox item exists before the inline call so a crash mid-call
	// leaves a pollable SENDING row, never a stranded CONFIRMED transfer.
	outboxStatus := domain.OutboxStatusToSend
	if syncOp != "" {
		outboxStatus = domain.OutboxStatusSending
	}

	confirmed, replayed, err := s.commitConfirm(ctx, req, t.ID, provider, outboxStatus)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}
	if replayed {
		return confirmed, nil
	}

	log.Info("transfer confirmed",
		"transfer_id", confirmed.ID,
		"external_id", confirmed.ExternalID,
		"agent_id", confirmed.AgentID,
		"total", confirmed.CurrentQuote.Total.AmountMinor,
		"currency", confirmed.CurrentQuote.Total.Currency,
		"provider_online", syncOp != "",
	)

	if syncOp == "" {
		return confirmed, nil
	}

	// The caller may hang up while the provider call is in flight; the
	// agent is already debited, so the outcome has to land regardless.
	applyCtx := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(applyCtx, s.providerTimeout(provider))
	defer cancel()
	result := s.client.Send(callCtx, provider, buildRequest(confirmed, syncOp))

	return s.ApplyProviderResult(applyCtx, confirmed.ID, result)
}

// commitConfirm performs the transactional part: re-validate under the row
// lock, debit the locked balance, flip the status and project the outbox
// item. The agent lock is released with the commit; the provider call never
// happens under it.
func (s *Service) commitConfirm(ctx context.Context, req ConfirmRequest, transferID uuid.UUID, provider *domain.Provider, outboxStatus domain.OutboxStatus) (*domain.Transfer, bool, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("commitConfirm: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, false, fmt.Errorf("commitConfirm: %w", err)
	}

	// A concurrent Confirm may have won the race between the fast check and
	// the lock.
	if t.Status == domain.TransferStatusConfirmed {
		return t, true, nil
	}
	if t.IsTerminal() {
		return nil, false, fmt.Errorf("commitConfirm: %w", domain.ErrAlreadyFinished)
	}
	if err := checkQuote(t, req.QuoteID, now); err != nil {
		return nil, false, fmt.Errorf("commitConfirm: %w", err)
	}

	quote := t.CurrentQuote
	if _, err := s.ledger.ApplyTransferAction(ctx, tx, t.AgentID, quote.Total.Currency, -quote.Total.AmountMinor, t.ID, domain.ActionDebit); err != nil {
		return nil, false, fmt.Errorf("commitConfirm: %w", err)
	}

	if err := s.transfers.MarkConfirmed(ctx, tx, t.ID, now); err != nil {
		return nil, false, fmt.Errorf("commitConfirm: %w", err)
	}

	if err := s.outbox.Create(ctx, tx, projectOutbox(t, provider.ID, outboxStatus, now)); err != nil {
		return nil, false, fmt.Errorf("commitConfirm: enqueue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commitConfirm: commit: %w", err)
	}

	t.Status = domain.TransferStatusConfirmed
	t.ConfirmedAt = &now
	return t, false, nil
}

func checkQuote(t *domain.Transfer, quoteID string, now time.Time) error {
	if t.CurrentQuote == nil || t.CurrentQuote.IsExpired(now) {
		return domain.ErrQuoteExpired
	}
	if t.CurrentQuote.ID != quoteID {
		return domain.ErrQuoteMismatch
	}
	return nil
}

// projectOutbox freezes everything the dispatcher needs from the transfer at
// confirmation time.
func projectOutbox(t *domain.Transfer, providerID uuid.UUID, status domain.OutboxStatus, now time.Time) *domain.Outbox {
	q := t.CurrentQuote
	return &domain.Outbox{
		ID:             uuid.New(),
		TransferID:     t.ID,
		AgentID:        t.AgentID,
		ServiceID:      t.ServiceID,
		ProviderID:     providerID,
		SequenceNumber: t.SequenceNumber,
		ExternalID:     t.ExternalID,
		Account:        t.Account,
		Total:          q.Total,
		Fee:            q.Fee,
		CreditedAmount: q.CreditedAmount,
		Parameters:     t.Parameters,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func buildRequest(t *domain.Transfer, operation string) domain.NormalizedRequest {
	q := t.CurrentQuote
	return domain.NormalizedRequest{
		TransferID:     t.ID,
		SequenceNumber: t.SequenceNumber,
		ExternalID:     t.ExternalID,
		ServiceID:      t.ServiceID,
		Operation:      operation,
		Account:        t.Account,
		AmountMinor:    q.CreditedAmount.AmountMinor,
		FeeMinor:       q.Fee.AmountMinor,
		Currency:       q.CreditedAmount.Currency,
		Parameters:     t.Parameters,
		CreatedAt:      t.CreatedAt,
	}
}
