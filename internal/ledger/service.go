// Package ledger owns every mutation of agent balances. All writes happen
// under the per-(agent, currency) row lock and leave exactly one balance
// history row behind; the history reference key is what makes replays safe.
package ledger

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

type agentRepo interface {
	LockBalance(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string) (int64, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, newBalance int64) error
}

type historyRepo interface {
	Create(ctx context.Context, tx *sql.Tx, h *domain.BalanceHistory) error
	GetByReference(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, refType domain.ReferenceType, refID string) (*domain.BalanceHistory, error)
}

type Service struct {
	agents  agentRepo
	history historyRepo
	db      *sql.DB
}

func NewService(agents agentRepo, history historyRepo, db *sql.DB) *Service {
	return &Service{agents: agents, history: history, db: db}
}

// CreditByDocument applies an upstream ledger credit. Replaying the same
// document id returns the balance recorded the first time, with no new
// mutation, so the caller may deliver at-least-once.
func (s *Service) CreditByDocument(ctx context.Context, agentID uuid.UUID, currency string, amountMinor int64, docID string) (int64, error) {
	balance, err := s.applyDocument(ctx, agentID, currency, amountMinor, docID)
	if err != nil {
		return 0, fmt.Errorf("CreditByDocument: %w", err)
	}
	return balance, nil
}

// DebitByDocument is the debit counterpart of CreditByDocument. Fails with
// ErrInsufficientBalance when the result would go negative.
func (s *Service) DebitByDocument(ctx context.Context, agentID uuid.UUID, currency string, amountMinor int64, docID string) (int64, error) {
	balance, err := s.applyDocument(ctx, agentID, currency, -amountMinor, docID)
	if err != nil {
		return 0, fmt.Errorf("DebitByDocument: %w", err)
	}
	return balance, nil
}

func (s *Service) applyDocument(ctx context.Context, agentID uuid.UUID, currency string, delta int64, docID string) (int64, error) {
	if delta == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if docID == "" {
		return 0, fmt.Errorf("document id required: %w", domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prior, err := s.history.GetByReference(ctx, tx, agentID, currency, domain.ReferenceExternalDocument, docID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	if prior != nil {
		logging.FromContext(ctx).Info("ledger adjustment replayed",
			"agent_id", agentID, "currency", currency, "doc_id", docID,
		)
		return prior.BalanceAfter, nil
	}

	after, err := s.mutate(ctx, tx, agentID, currency, delta, domain.ReferenceExternalDocument, docID)
	if err != nil {
		// A concurrent delivery of the same document can slip between the
		// pre-read and the insert; the loser reports the winner's balance.
		if errors.Is(err, domain.ErrDuplicateReference) {
			return s.recordedBalance(ctx, agentID, currency, docID)
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return after, nil
}

func (s *Service) recordedBalance(ctx context.Context, agentID uuid.UUID, currency, docID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("recordedBalance: begin tx: %w", err)
	}
	defer tx.Rollback()

	prior, err := s.history.GetByReference(ctx, tx, agentID, currency, domain.ReferenceExternalDocument, docID)
	if err != nil {
		return 0, fmt.Errorf("recordedBalance: %w", err)
	}

	logging.FromContext(ctx).Info("ledger adjustment replayed",
		"agent_id", agentID, "currency", currency, "doc_id", docID,
	)
	return prior.BalanceAfter, nil
}

// ApplyTransferAction debits or credits an agent balance inside the caller's
// transaction, keyed by (transferID, action). A second application of the
// same key is a no-op and reports applied=false.
func (s *Service) ApplyTransferAction(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, delta int64, transferID uuid.UUID, action string) (bool, error) {
	refID := domain.TransferActionRef(transferID, action)

	prior, err := s.history.GetByReference(ctx, tx, agentID, currency, domain.ReferenceTransferAction, refID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("ApplyTransferAction: %w", err)
	}
	if prior != nil {
		return false, nil
	}

	if _, err := s.mutate(ctx, tx, agentID, currency, delta, domain.ReferenceTransferAction, refID); err != nil {
		return false, fmt.Errorf("ApplyTransferAction: %w", err)
	}
	return true, nil
}

// mutate performs the locked read-modify-write. The insufficient-funds check
// runs on the locked balance, never on a stale pre-read.
func (s *Service) mutate(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, currency string, delta int64, refType domain.ReferenceType, refID string) (int64, error) {
	before, err := s.agents.LockBalance(ctx, tx, agentID, currency)
	if err != nil {
		return 0, err
	}

	after := before + delta
	if after < 0 {
		return 0, fmt.Errorf("balance %d, delta %d: %w", before, delta, domain.ErrInsufficientBalance)
	}

	if err := s.agents.UpdateBalance(ctx, tx, agentID, currency, after); err != nil {
		return 0, err
	}

	entry := &domain.BalanceHistory{
		ID:            uuid.New(),
		AgentID:       agentID,
		Currency:      currency,
		ReferenceType: refType,
		ReferenceID:   refID,
		BalanceBefore: before,
		Delta:         delta,
		BalanceAfter:  after,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.history.Create(ctx, tx, entry); err != nil {
		return 0, err
	}
	return after, nil
}
