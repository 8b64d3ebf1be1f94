package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/logging"
)

type ledgerService interface {
	CreditByDocument(ctx context.Context, agentID uuid.UUID, currency string, amountMinor int64, docID string) (int64, error)
	DebitByDocument(ctx context.Context, agentID uuid.UUID, currency string, amountMinor int64, docID string) (int64, error)
}

// LedgerHandler exposes the upstream balance adjustments. Callers deliver
// at-least-once; the document id makes replays safe.
type LedgerHandler struct {
	ledger ledgerService
}

func NewLedgerHandler(ledger ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

type adjustmentRequest struct {
	AgentID    string `json:"agent_id"`
	Currency   string `json:"currency"`
	Amount     int64  `json:"amount"`
	DocumentID string `json:"document_id"`
}

func (r adjustmentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.AgentID == "" {
		errs = append(errs, FieldError{Field: "agent_id", Message: "required"})
	} else if _, err := uuid.Parse(r.AgentID); err != nil {
		errs = append(errs, FieldError{Field: "agent_id", Message: "must be a uuid"})
	}
	if len(r.Currency) != 3 {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3-letter code"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.DocumentID == "" {
		errs = append(errs, FieldError{Field: "document_id", Message: "required"})
	}
	return errs
}

type adjustmentDTO struct {
	AgentID  uuid.UUID `json:"agent_id"`
	Currency string    `json:"currency"`
	Balance  int64     `json:"balance"`
}

func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.ledger.CreditByDocument)
}

func (h *LedgerHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.ledger.DebitByDocument)
}

func (h *LedgerHandler) adjust(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID, string, int64, string) (int64, error)) {
	log := logging.FromContext(r.Context())

	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	agentID := uuid.MustParse(req.AgentID)
	balance, err := apply(r.Context(), agentID, req.Currency, req.Amount, req.DocumentID)
	if err != nil {
		log.Warn("ledger adjustment failed", "agent_id", agentID, "doc_id", req.DocumentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, adjustmentDTO{
		AgentID:  agentID,
		Currency: req.Currency,
		Balance:  balance,
	})
}
