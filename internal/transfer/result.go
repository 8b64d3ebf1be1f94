package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
)

// ApplyProviderResult is the single mutation point that moves a CONFIRMED
// transfer toward a terminal state. Both the synchronous Confirm path and
// the outbox dispatcher funnel through it, so success, pending and
// refund-on-failure follow one rule set. Re-applying a result to a transfer
// that already reached a terminal state is a no-op.
func (s *Service) ApplyProviderResult(ctx context.Context, transferID uuid.UUID, result domain.ProviderResult) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ApplyProviderResult: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("ApplyProviderResult: %w", err)
	}
	if t.IsTerminal() {
		return t, nil
	}
	if t.Status != domain.TransferStatusConfirmed {
		return nil, fmt.Errorf("ApplyProviderResult: status %s: %w", t.Status, domain.ErrInvalidTransition)
	}

	ob, err := s.outbox.GetByTransferIDForUpdate(ctx, tx, transferID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("ApplyProviderResult: %w", err)
	}

	code := result.Code
	desc := errorDescription(result)

	switch {
	case result.Status == domain.ProviderStatusSuccess:
		if err := s.applySuccess(ctx, tx, t, ob, result, code, desc, now); err != nil {
			return nil, fmt.Errorf("ApplyProviderResult: %w", err)
		}
		log.Info("transfer succeeded", "transfer_id", t.ID, "provider_code", strVal(code))

	case result.Status.IsTerminalFailure():
		if err := s.applyFailure(ctx, tx, t, ob, result.Status, code, desc, now); err != nil {
			return nil, fmt.Errorf("ApplyProviderResult: %w", err)
		}
		log.Info("transfer failed, agent refunded",
			"transfer_id", t.ID,
			"status", result.Status,
			"provider_code", strVal(code),
		)

	default:
		if err := s.applyPending(ctx, tx, t, ob, result.Status, code, desc, now); err != nil {
			return nil, fmt.Errorf("ApplyProviderResult: %w", err)
		}
		log.Info("transfer still pending",
			"transfer_id", t.ID,
			"status", result.Status,
			"provider_code", strVal(code),
		)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ApplyProviderResult: commit: %w", err)
	}

	updated, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("ApplyProviderResult: reload: %w", err)
	}
	return updated, nil
}

func (s *Service) applySuccess(ctx context.Context, tx *sql.Tx, t *domain.Transfer, ob *domain.Outbox, result domain.ProviderResult, code, desc *string, now time.Time) error {
	if err := s.transfers.MarkTerminal(ctx, tx, t.ID, domain.TransferStatusSuccess, code, desc, now); err != nil {
		return err
	}
	if len(result.Fields) > 0 {
		merged := mergeParams(t.ProviderReceivedParameters, result.Fields)
		if err := s.transfers.UpdateReceivedParameters(ctx, tx, t.ID, merged); err != nil {
			return err
		}
	}
	return s.settleOutbox(ctx, tx, t, ob, domain.OutboxStatusSuccess, code, desc, now)
}

// applyFailure ends the transfer negatively and credits the debited total
// back. The refund is keyed by (transfer, refund) in the balance history, so
// re-processing the same item after a crash cannot refund twice.
func (s *Service) applyFailure(ctx context.Context, tx *sql.Tx, t *domain.Transfer, ob *domain.Outbox, status domain.ProviderStatus, code, desc *string, now time.Time) error {
	if err := s.transfers.MarkTerminal(ctx, tx, t.ID, terminalTransferStatus(status), code, desc, now); err != nil {
		return err
	}

	total := t.CurrentQuote.Total
	applied, err := s.ledger.ApplyTransferAction(ctx, tx, t.AgentID, total.Currency, total.AmountMinor, t.ID, domain.ActionRefund)
	if err != nil {
		return err
	}
	if !applied {
		logging.FromContext(ctx).Warn("refund already applied, skipping", "transfer_id", t.ID)
	}

	return s.settleOutbox(ctx, tx, t, ob, domain.OutboxStatus(status), code, desc, now)
}

func (s *Service) applyPending(ctx context.Context, tx *sql.Tx, t *domain.Transfer, ob *domain.Outbox, status domain.ProviderStatus, code, desc *string, now time.Time) error {
	if err := s.transfers.UpdateProviderInfo(ctx, tx, t.ID, code, desc); err != nil {
		return err
	}
	return s.settleOutbox(ctx, tx, t, ob, domain.OutboxStatus(status), code, desc, now)
}

// settleOutbox records the outcome on the transfer's outbox item. Confirm
// projects the item before any provider call, so one normally exists; a
// non-terminal result with no item still projects one so the dispatcher can
// keep driving the transfer.
func (s *Service) settleOutbox(ctx context.Context, tx *sql.Tx, t *domain.Transfer, ob *domain.Outbox, status domain.OutboxStatus, code, desc *string, now time.Time) error {
	if ob != nil {
		return s.outbox.UpdateResult(ctx, tx, ob.ID, status, code, desc, now)
	}
	if status == domain.OutboxStatusSuccess {
		// Nothing left for the dispatcher to drive.
		return nil
	}

	svc, err := s.catalog.GetService(ctx, t.ServiceID)
	if err != nil {
		return err
	}
	projected := projectOutbox(t, svc.ProviderID, status, now)
	projected.ProviderCode = code
	projected.ErrorDescription = desc
	projected.Attempts = 1
	return s.outbox.Create(ctx, tx, projected)
}

func terminalTransferStatus(s domain.ProviderStatus) domain.TransferStatus {
	switch s {
	case domain.ProviderStatusExpired:
		return domain.TransferStatusExpired
	case domain.ProviderStatusFraud:
		return domain.TransferStatusFraud
	default:
		return domain.TransferStatusFailed
	}
}

func errorDescription(result domain.ProviderResult) *string {
	if result.Error == "" {
		return nil
	}
	e := result.Error
	return &e
}

func mergeParams(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
