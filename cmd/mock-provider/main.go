// Mock provider for local development. Behavior is steered by the account in
// the request: accounts ending in "00" fail, "99" stay pending, everything
// else succeeds.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/adkhamov/termpay/internal/logging"
)

type sendRequest struct {
	TransferID string `json:"transfer_id"`
	ExternalID string `json:"external_id"`
	Account    string `json:"account"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type sendResponse struct {
	Status string            `json:"status"`
	Code   *string           `json:"code,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /pay", handlePay)
	mux.HandleFunc("POST /status", handlePay)
	mux.HandleFunc("POST /resolve", handleResolve)

	addr := ":8081"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	slog.Info("mock provider started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handlePay(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	slog.Info("payment request", "transfer_id", req.TransferID, "account", req.Account, "amount", req.Amount)

	var resp sendResponse
	switch {
	case strings.HasSuffix(req.Account, "00"):
		code := "DESTINATION_REJECTED"
		resp = sendResponse{Status: "FAILED", Code: &code, Error: "destination rejected the payment"}
	case strings.HasSuffix(req.Account, "99"):
		code := "IN_PROGRESS"
		resp = sendResponse{Status: "STATUS", Code: &code}
	default:
		code := "OK"
		resp = sendResponse{
			Status: "SUCCESS",
			Code:   &code,
			Fields: map[string]string{"receipt": fmt.Sprintf("MOCK-%s", req.ExternalID)},
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	ServiceID string `json:"service_id"`
	Account   string `json:"account"`
}

func handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if strings.HasSuffix(req.Account, "04") {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fields": map[string]string{
			"account_name": "Test Subscriber",
			"account":      req.Account,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
