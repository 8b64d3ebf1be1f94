// Package provider implements the HTTP client for external payment
// providers. Send never returns a transport error to the caller: every
// outcome is folded into a ProviderResult so the state machine has a single
// vocabulary for what happened.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
)

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// Per-call deadlines come from the context; this is the hard cap.
			Timeout: 60 * time.Second,
		},
	}
}

type sendPayload struct {
	TransferID     string            `json:"transfer_id"`
	SequenceNumber int64             `json:"sequence_number"`
	ExternalID     string            `json:"external_id"`
	ServiceID      string            `json:"service_id"`
	Account        string            `json:"account"`
	Amount         int64             `json:"amount"`
	Fee            int64             `json:"fee"`
	Currency       string            `json:"currency"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type sendResponse struct {
	Status string            `json:"status"`
	Code   *string           `json:"code,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Send posts the normalized request to the provider's operation endpoint.
// A timed-out or cancelled call maps to NORESPONSE because the provider may
// have processed it; a refused connection maps to TECHNICAL because it
// certainly has not.
func (c *Client) Send(ctx context.Context, p *domain.Provider, req domain.NormalizedRequest) domain.ProviderResult {
	log := logging.FromContext(ctx)

	payload := sendPayload{
		TransferID:     req.TransferID.String(),
		SequenceNumber: req.SequenceNumber,
		ExternalID:     req.ExternalID,
		ServiceID:      req.ServiceID.String(),
		Account:        req.Account,
		Amount:         req.AmountMinor,
		Fee:            req.FeeMinor,
		Currency:       req.Currency,
		Parameters:     req.Parameters,
		CreatedAt:      req.CreatedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return technical(fmt.Sprintf("marshal request: %v", err))
	}

	url := p.BaseURL + "/" + req.Operation
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return technical(fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Transfer-ID", req.TransferID.String())

	start := time.Now()
	log.Info("provider request sent",
		"provider", p.Name,
		"operation", req.Operation,
		"transfer_id", req.TransferID,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn("provider call timed out", "provider", p.Name, "transfer_id", req.TransferID)
			return domain.ProviderResult{
				Status: domain.ProviderStatusNoResponse,
				Error:  fmt.Sprintf("no response from provider: %v", err),
			}
		}
		log.Warn("provider call failed", "provider", p.Name, "transfer_id", req.TransferID, "error", err)
		return technical(fmt.Sprintf("send: %v", err))
	}
	defer resp.Body.Close()

	log.Info("provider response received",
		"provider", p.Name,
		"transfer_id", req.TransferID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return technical(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed sendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return technical(fmt.Sprintf("decode response: %v", err))
	}

	status := domain.ProviderStatus(parsed.Status)
	if !status.Known() {
		return technical(fmt.Sprintf("unknown provider status %q", parsed.Status))
	}

	return domain.ProviderResult{
		Status: status,
		Code:   parsed.Code,
		Error:  parsed.Error,
		Fields: parsed.Fields,
	}
}

type resolvePayload struct {
	ServiceID string `json:"service_id"`
	Account   string `json:"account"`
}

type resolveResponse struct {
	Fields map[string]string `json:"fields"`
	Error  string            `json:"error,omitempty"`
}

// Resolve asks the provider to identify the destination account. Unlike
// Send, resolution has no state to protect, so failures surface as errors.
func (c *Client) Resolve(ctx context.Context, p *domain.Provider, serviceID uuid.UUID, account string) (map[string]string, error) {
	body, err := json.Marshal(resolvePayload{ServiceID: serviceID.String(), Account: account})
	if err != nil {
		return nil, fmt.Errorf("Resolve: marshal: %w", err)
	}

	url := p.BaseURL + "/resolve"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Resolve: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Resolve: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("Resolve: account %q: %w", account, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Resolve: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed resolveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("Resolve: decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("Resolve: provider error: %s", parsed.Error)
	}
	return parsed.Fields, nil
}

func technical(msg string) domain.ProviderResult {
	return domain.ProviderResult{
		Status: domain.ProviderStatusTechnical,
		Error:  msg,
	}
}
