package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
	"github.com/adkhamov/termpay/internal/transfer"
)

type transferService interface {
	Check(ctx context.Context, req transfer.CheckRequest) (*transfer.CheckResult, error)
	Prepare(ctx context.Context, req transfer.PrepareRequest) (*domain.Transfer, error)
	Confirm(ctx context.Context, req transfer.ConfirmRequest) (*domain.Transfer, error)
	Status(ctx context.Context, agentID uuid.UUID, reference string) (*domain.Transfer, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// agentIDFromRequest reads the terminal's agent identity. Authentication of
// the terminal itself happens upstream of this service.
func agentIDFromRequest(r *http.Request) (uuid.UUID, *AppError) {
	raw := r.Header.Get("X-Agent-ID")
	if raw == "" {
		return uuid.Nil, ErrMissingAgent
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrMissingAgent
	}
	return id, nil
}

type checkRequest struct {
	ServiceID string `json:"service_id"`
	Account   string `json:"account"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (r checkRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ServiceID == "" {
		errs = append(errs, FieldError{Field: "service_id", Message: "required"})
	} else if _, err := uuid.Parse(r.ServiceID); err != nil {
		errs = append(errs, FieldError{Field: "service_id", Message: "must be a uuid"})
	}
	if r.Account == "" {
		errs = append(errs, FieldError{Field: "account", Message: "required"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if len(r.Currency) != 3 {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3-letter code"})
	}
	return errs
}

type prepareRequest struct {
	ExternalID         string            `json:"external_id"`
	TerminalID         string            `json:"terminal_id"`
	ServiceID          string            `json:"service_id"`
	Method             string            `json:"method"`
	Account            string            `json:"account"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	SettlementCurrency string            `json:"settlement_currency,omitempty"`
	Parameters         map[string]string `json:"parameters,omitempty"`
}

func (r prepareRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ExternalID == "" {
		errs = append(errs, FieldError{Field: "external_id", Message: "required"})
	}
	if r.TerminalID == "" {
		errs = append(errs, FieldError{Field: "terminal_id", Message: "required"})
	} else if _, err := uuid.Parse(r.TerminalID); err != nil {
		errs = append(errs, FieldError{Field: "terminal_id", Message: "must be a uuid"})
	}
	if r.ServiceID == "" {
		errs = append(errs, FieldError{Field: "service_id", Message: "required"})
	} else if _, err := uuid.Parse(r.ServiceID); err != nil {
		errs = append(errs, FieldError{Field: "service_id", Message: "must be a uuid"})
	}
	if r.Account == "" {
		errs = append(errs, FieldError{Field: "account", Message: "required"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if len(r.Currency) != 3 {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3-letter code"})
	}
	return errs
}

type confirmRequest struct {
	ExternalID string `json:"external_id"`
	QuoteID    string `json:"quote_id"`
}

func (r confirmRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ExternalID == "" {
		errs = append(errs, FieldError{Field: "external_id", Message: "required"})
	}
	if r.QuoteID == "" {
		errs = append(errs, FieldError{Field: "quote_id", Message: "required"})
	}
	return errs
}

type moneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyDTO(m domain.Money) moneyDTO {
	return moneyDTO{Amount: m.AmountMinor, Currency: m.Currency}
}

type quoteDTO struct {
	ID             string           `json:"id"`
	Total          moneyDTO         `json:"total"`
	Fee            moneyDTO         `json:"fee"`
	ProviderFee    moneyDTO         `json:"provider_fee"`
	CreditedAmount moneyDTO         `json:"credited_amount"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate,omitempty"`
	RateTimestamp  *time.Time       `json:"rate_timestamp,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
}

func toQuoteDTO(q *domain.Quote) *quoteDTO {
	if q == nil {
		return nil
	}
	return &quoteDTO{
		ID:             q.ID,
		Total:          toMoneyDTO(q.Total),
		Fee:            toMoneyDTO(q.Fee),
		ProviderFee:    toMoneyDTO(q.ProviderFee),
		CreditedAmount: toMoneyDTO(q.CreditedAmount),
		ExchangeRate:   q.ExchangeRate,
		RateTimestamp:  q.RateTimestamp,
		ExpiresAt:      q.ExpiresAt,
	}
}

type transferDTO struct {
	ID               uuid.UUID         `json:"id"`
	ExternalID       string            `json:"external_id"`
	ServiceID        uuid.UUID         `json:"service_id"`
	Status           string            `json:"status"`
	Account          string            `json:"account"`
	Amount           moneyDTO          `json:"amount"`
	Quote            *quoteDTO         `json:"quote,omitempty"`
	ProviderCode     *string           `json:"provider_code,omitempty"`
	ErrorDescription *string           `json:"error_description,omitempty"`
	ProviderFields   map[string]string `json:"provider_fields,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	PreparedAt       *time.Time        `json:"prepared_at,omitempty"`
	ConfirmedAt      *time.Time        `json:"confirmed_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

func toTransferDTO(t *domain.Transfer) transferDTO {
	return transferDTO{
		ID:               t.ID,
		ExternalID:       t.ExternalID,
		ServiceID:        t.ServiceID,
		Status:           string(t.Status),
		Account:          t.Account,
		Amount:           toMoneyDTO(t.Amount),
		Quote:            toQuoteDTO(t.CurrentQuote),
		ProviderCode:     t.ProviderCode,
		ErrorDescription: t.ErrorDescription,
		ProviderFields:   t.ProviderReceivedParameters,
		CreatedAt:        t.CreatedAt,
		PreparedAt:       t.PreparedAt,
		ConfirmedAt:      t.ConfirmedAt,
		CompletedAt:      t.CompletedAt,
	}
}

type checkDTO struct {
	ServiceID uuid.UUID          `json:"service_id"`
	Account   string             `json:"account"`
	Resolved  map[string]string  `json:"resolved,omitempty"`
	Quotes    []currencyQuoteDTO `json:"quotes"`
}

type currencyQuoteDTO struct {
	Currency string   `json:"currency"`
	Quote    quoteDTO `json:"quote"`
}

func (h *TransferHandler) Check(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	agentID, appErr := agentIDFromRequest(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.transfers.Check(r.Context(), transfer.CheckRequest{
		AgentID:     agentID,
		ServiceID:   uuid.MustParse(req.ServiceID),
		Account:     req.Account,
		AmountMinor: req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		log.Warn("check failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := checkDTO{
		ServiceID: result.ServiceID,
		Account:   result.Account,
		Resolved:  result.Resolved,
		Quotes:    make([]currencyQuoteDTO, 0, len(result.Quotes)),
	}
	for _, cq := range result.Quotes {
		dto.Quotes = append(dto.Quotes, currencyQuoteDTO{Currency: cq.Currency, Quote: *toQuoteDTO(cq.Quote)})
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *TransferHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	agentID, appErr := agentIDFromRequest(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req prepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.transfers.Prepare(r.Context(), transfer.PrepareRequest{
		AgentID:            agentID,
		TerminalID:         uuid.MustParse(req.TerminalID),
		ExternalID:         req.ExternalID,
		ServiceID:          uuid.MustParse(req.ServiceID),
		Method:             req.Method,
		Account:            req.Account,
		AmountMinor:        req.Amount,
		Currency:           req.Currency,
		SettlementCurrency: req.SettlementCurrency,
		Parameters:         req.Parameters,
	})
	if err != nil {
		log.Warn("prepare failed", "external_id", req.ExternalID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", t.ExternalID))
	RespondSuccess(w, http.StatusCreated, toTransferDTO(t))
}

func (h *TransferHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	agentID, appErr := agentIDFromRequest(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.transfers.Confirm(r.Context(), transfer.ConfirmRequest{
		AgentID:    agentID,
		ExternalID: req.ExternalID,
		QuoteID:    req.QuoteID,
	})
	if err != nil {
		log.Warn("confirm failed", "external_id", req.ExternalID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}

func (h *TransferHandler) Status(w http.ResponseWriter, r *http.Request) {
	agentID, appErr := agentIDFromRequest(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	reference := r.PathValue("reference")
	t, err := h.transfers.Status(r.Context(), agentID, reference)
	if err != nil {
		logging.FromContext(r.Context()).Warn("status lookup failed", "reference", reference, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}
