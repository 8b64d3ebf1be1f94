// Package dispatcher drives pending outbox items to completion. It polls the
// outbox, fans work out to a bounded pool, calls the provider and funnels
// every outcome through the transfer service's single result-application
// point. One broken item never stops the batch.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adkhamov/termpay/internal/domain"
)

// WorkerErrorCode marks results synthesized by the dispatcher itself after a
// worker panic, as opposed to codes returned by a provider.
const WorkerErrorCode = "WORKER_ERROR"

type outboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]domain.Outbox, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Outbox, error)
}

type catalogRepo interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error)
	GetOperation(ctx context.Context, providerID uuid.UUID, status domain.OutboxStatus) (string, error)
}

type resultApplier interface {
	ApplyProviderResult(ctx context.Context, transferID uuid.UUID, result domain.ProviderResult) (*domain.Transfer, error)
}

type providerClient interface {
	Send(ctx context.Context, p *domain.Provider, req domain.NormalizedRequest) domain.ProviderResult
}

type Options struct {
	Workers        int
	BatchSize      int
	BusySleep      time.Duration
	IdleSleep      time.Duration
	DefaultTimeout time.Duration
}

type Dispatcher struct {
	outbox    outboxRepo
	catalog   catalogRepo
	transfers resultApplier
	client    providerClient
	logger    *slog.Logger
	opts      Options
}

func New(
	outbox outboxRepo,
	catalog catalogRepo,
	transfers resultApplier,
	client providerClient,
	logger *slog.Logger,
	opts Options,
) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = opts.Workers
	}
	return &Dispatcher{
		outbox:    outbox,
		catalog:   catalog,
		transfers: transfers,
		client:    client,
		logger:    logger,
		opts:      opts,
	}
}

// Run polls until the context is cancelled. A non-empty batch is followed by
// the short busy sleep so a backlog drains quickly; an empty poll backs off
// to the idle sleep.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started",
		"workers", d.opts.Workers,
		"batch_size", d.opts.BatchSize,
	)

	for {
		n := d.pollOnce(ctx)

		sleep := d.opts.IdleSleep
		if n > 0 {
			sleep = d.opts.BusySleep
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-time.After(sleep):
		}
	}
}

// pollOnce fetches one batch and processes it on the worker pool. Returns the
// number of items picked up.
func (d *Dispatcher) pollOnce(ctx context.Context) int {
	items, err := d.outbox.GetPending(ctx, d.opts.BatchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("failed to fetch pending outbox items", "error", err)
		}
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, item := range items {
		g.Go(func() error {
			d.processItem(gctx, item)
			return nil
		})
	}
	g.Wait()

	return len(items)
}

// processItem drives a single outbox item through one provider attempt. All
// failures are folded into a ProviderResult; a panic inside the worker ends
// the transfer as FAILED so it cannot wedge the pending queue forever.
func (d *Dispatcher) processItem(ctx context.Context, item domain.Outbox) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker panic, failing transfer",
				"outbox_id", item.ID,
				"transfer_id", item.TransferID,
				"panic", r,
			)
			code := WorkerErrorCode
			result := domain.ProviderResult{
				Status: domain.ProviderStatusFailed,
				Code:   &code,
				Error:  fmt.Sprintf("worker panic: %v", r),
			}
			if _, err := d.transfers.ApplyProviderResult(ctx, item.TransferID, result); err != nil {
				d.logger.Error("failed to record worker error", "transfer_id", item.TransferID, "error", err)
			}
		}
	}()

	// Re-read before the provider call. Another worker, or the synchronous
	// Confirm path, may have settled the item since the batch was fetched.
	fresh, err := d.outbox.GetByID(ctx, item.ID)
	if err != nil {
		d.logger.Error("failed to reload outbox item", "outbox_id", item.ID, "error", err)
		return
	}
	if !fresh.Status.IsPending() {
		return
	}

	provider, err := d.catalog.GetProvider(ctx, fresh.ProviderID)
	if err != nil {
		d.logger.Error("failed to load provider", "outbox_id", fresh.ID, "provider_id", fresh.ProviderID, "error", err)
		return
	}

	operation, err := d.catalog.GetOperation(ctx, provider.ID, fresh.Status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No operation configured for this state. Park the item as
			// SETTING until an operator fixes the provider configuration.
			d.apply(ctx, fresh.TransferID, domain.ProviderResult{
				Status: domain.ProviderStatusSetting,
				Error:  fmt.Sprintf("no operation configured for provider %s in status %s", provider.Name, fresh.Status),
			})
			return
		}
		d.logger.Error("failed to load provider operation", "outbox_id", fresh.ID, "error", err)
		return
	}

	timeout := provider.Timeout
	if timeout <= 0 {
		timeout = d.opts.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := d.client.Send(callCtx, provider, buildRequest(fresh, operation))
	d.apply(ctx, fresh.TransferID, result)
}

func (d *Dispatcher) apply(ctx context.Context, transferID uuid.UUID, result domain.ProviderResult) {
	if _, err := d.transfers.ApplyProviderResult(ctx, transferID, result); err != nil {
		d.logger.Error("failed to apply provider result",
			"transfer_id", transferID,
			"provider_status", result.Status,
			"error", err,
		)
	}
}

func buildRequest(o *domain.Outbox, operation string) domain.NormalizedRequest {
	return domain.NormalizedRequest{
		TransferID:     o.TransferID,
		SequenceNumber: o.SequenceNumber,
		ExternalID:     o.ExternalID,
		ServiceID:      o.ServiceID,
		Operation:      operation,
		Account:        o.Account,
		AmountMinor:    o.CreditedAmount.AmountMinor,
		FeeMinor:       o.Fee.AmountMinor,
		Currency:       o.CreditedAmount.Currency,
		Parameters:     o.Parameters,
		CreatedAt:      o.CreatedAt,
	}
}
