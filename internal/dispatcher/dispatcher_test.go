package dispatcher

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/fx"
	"github.com/adkhamov/termpay/internal/ledger"
	"github.com/adkhamov/termpay/internal/pricing"
	"github.com/adkhamov/termpay/internal/repository"
	"github.com/adkhamov/termpay/internal/testutil"
	"github.com/adkhamov/termpay/internal/transfer"
)

type scriptedClient struct {
	result domain.ProviderResult
	panics bool
	sends  []domain.NormalizedRequest
}

func (c *scriptedClient) Send(ctx context.Context, p *domain.Provider, req domain.NormalizedRequest) domain.ProviderResult {
	if c.panics {
		panic("scripted worker panic")
	}
	c.sends = append(c.sends, req)
	return c.result
}

func (c *scriptedClient) Resolve(ctx context.Context, p *domain.Provider, serviceID uuid.UUID, account string) (map[string]string, error) {
	return nil, nil
}

func setupDispatcherTest(t *testing.T, db *sql.DB, client *scriptedClient) (*Dispatcher, *transfer.Service) {
	t.Helper()

	ledgerSvc := ledger.NewService(
		repository.NewAgentRepository(db),
		repository.NewHistoryRepository(db),
		db,
	)
	transferSvc := transfer.NewService(
		repository.NewTransferRepository(db),
		repository.NewOutboxRepository(db),
		repository.NewAgentRepository(db),
		repository.NewCatalogRepository(db),
		ledgerSvc,
		fx.NewService(repository.NewRateRepository(db), nil, 0),
		client,
		db,
		transfer.Options{
			QuoteTTL:        5 * time.Minute,
			Rounding:        pricing.RoundingFloor,
			ProviderTimeout: 2 * time.Second,
		},
	)

	d := New(
		repository.NewOutboxRepository(db),
		repository.NewCatalogRepository(db),
		transferSvc,
		client,
		slog.Default(),
		Options{Workers: 2, BatchSize: 10, DefaultTimeout: 2 * time.Second},
	)
	return d, transferSvc
}

// seedConfirmedTransfer drives a transfer through Prepare and Confirm against
// an offline provider, leaving a TO_SEND outbox item behind.
func seedConfirmedTransfer(t *testing.T, db *sql.DB, svc *transfer.Service) *domain.Transfer {
	t.Helper()
	ctx := context.Background()

	testutil.SeedAgent(t, db, testutil.TestAgentID, map[string]int64{"UZS": 100_000})
	testutil.SeedProvider(t, db, testutil.OfflineProviderID, false, "http://provider.local")
	testutil.SeedService(t, db, testutil.OfflineServiceID, testutil.OfflineProviderID, []string{"UZS"})
	testutil.SeedAgentService(t, db, testutil.TestAgentID, testutil.OfflineServiceID, 200, 0)

	prepared, err := svc.Prepare(ctx, transfer.PrepareRequest{
		AgentID:     testutil.TestAgentID,
		TerminalID:  testutil.TestTerminalID,
		ExternalID:  "ext-1",
		ServiceID:   testutil.OfflineServiceID,
		Account:     "998901234567",
		AmountMinor: 5000,
		Currency:    "UZS",
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, transfer.ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TransferStatusConfirmed, confirmed.Status)
	return confirmed
}

func getTransferStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.TransferStatus {
	t.Helper()
	var status domain.TransferStatus
	require.NoError(t, db.QueryRow(`SELECT status FROM transfers WHERE id = $1`, id).Scan(&status))
	return status
}

func getOutboxAttempts(t *testing.T, db *sql.DB, transferID uuid.UUID) int {
	t.Helper()
	var attempts int
	require.NoError(t, db.QueryRow(`SELECT attempts FROM outbox WHERE transfer_id = $1`, transferID).Scan(&attempts))
	return attempts
}

func TestDispatcher_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := &scriptedClient{result: domain.ProviderResult{
		Status: domain.ProviderStatusSuccess,
		Fields: map[string]string{"receipt": "R-1"},
	}}
	d, svc := setupDispatcherTest(t, db, client)
	tr := seedConfirmedTransfer(t, db, svc)
	testutil.SeedOperation(t, db, testutil.OfflineProviderID, domain.OutboxStatusToSend, "pay")

	n := d.pollOnce(context.Background())
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.TransferStatusSuccess, getTransferStatus(t, db, tr.ID))
	assert.Equal(t, string(domain.OutboxStatusSuccess), testutil.GetOutboxStatus(t, db, tr.ID))
	assert.Equal(t, 1, getOutboxAttempts(t, db, tr.ID))
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "success keeps the debit")

	require.Len(t, client.sends, 1)
	assert.Equal(t, "pay", client.sends[0].Operation)
}

func TestDispatcher_FailureRefunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	code := "REJECTED"
	client := &scriptedClient{result: domain.ProviderResult{
		Status: domain.ProviderStatusFailed,
		Code:   &code,
		Error:  "destination rejected",
	}}
	d, svc := setupDispatcherTest(t, db, client)
	tr := seedConfirmedTransfer(t, db, svc)
	testutil.SeedOperation(t, db, testutil.OfflineProviderID, domain.OutboxStatusToSend, "pay")

	d.pollOnce(context.Background())

	assert.Equal(t, domain.TransferStatusFailed, getTransferStatus(t, db, tr.ID))
	assert.Equal(t, string(domain.OutboxStatusFailed), testutil.GetOutboxStatus(t, db, tr.ID))
	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))

	ref := domain.TransferActionRef(tr.ID, domain.ActionRefund)
	assert.Equal(t, 1, testutil.CountHistoryEntries(t, db, testutil.TestAgentID, domain.ReferenceTransferAction, ref))
}

func TestDispatcher_NoResponseStaysPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := &scriptedClient{result: domain.ProviderResult{
		Status: domain.ProviderStatusNoResponse,
		Error:  "timeout",
	}}
	d, svc := setupDispatcherTest(t, db, client)
	tr := seedConfirmedTransfer(t, db, svc)
	testutil.SeedOperation(t, db, testutil.OfflineProviderID, domain.OutboxStatusToSend, "pay")
	testutil.SeedOperation(t, db, testutil.OfflineProviderID, domain.OutboxStatusNoResponse, "status")

	d.pollOnce(context.Background())
	assert.Equal(t, domain.TransferStatusConfirmed, getTransferStatus(t, db, tr.ID))
	assert.Equal(t, string(domain.OutboxStatusNoResponse), testutil.GetOutboxStatus(t, db, tr.ID))

	// Next poll retries with the operation configured for NORESPONSE.
	d.pollOnce(context.Background())
	require.Len(t, client.sends, 2)
	assert.Equal(t, "status", client.sends[1].Operation)
	assert.Equal(t, 2, getOutboxAttempts(t, db, tr.ID))
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "no refund while retrying")
}

func TestDispatcher_MissingOperationParksAsSetting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := &scriptedClient{result: domain.ProviderResult{Status: domain.ProviderStatusSuccess}}
	d, svc := setupDispatcherTest(t, db, client)
	tr := seedConfirmedTransfer(t, db, svc)
	// No provider_operations rows seeded.

	d.pollOnce(context.Background())

	assert.Equal(t, domain.TransferStatusConfirmed, getTransferStatus(t, db, tr.ID))
	assert.Equal(t, string(domain.OutboxStatusSetting), testutil.GetOutboxStatus(t, db, tr.ID))
	assert.Empty(t, client.sends, "provider is never called without an operation")
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "funds stay held")

	// SETTING items wait for an operator; they are not polled again.
	n := d.pollOnce(context.Background())
	assert.Equal(t, 0, n)
}

func TestDispatcher_SettledItemNotReprocessed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := &scriptedClient{result: domain.ProviderResult{Status: domain.ProviderStatusSuccess}}
	d, svc := setupDispatcherTest(t, db, client)
	tr := seedConfirmedTransfer(t, db, svc)
	testutil.SeedOperation(t, db, testutil.OfflineProviderID, domain.OutboxStatusToSend, "pay")

	d.pollOnce(context.Background())
	require.Equal(t, domain.TransferStatusSuccess, getTransferStatus(t, db, tr.ID))

	n := d.pollOnce(context.Background())
	assert.Equal(t, 0, n)
	assert.Len(t, client.sends, 1)
	assert.Equal(t, 1, getOutboxAttempts(t, db, tr.ID))
}

func TestDispatcher_WorkerPanicFailsTransfer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := &scriptedClient{panics: true}
	d, svc := setupDispatcherTest(t, db, client)
	tr := seedConfirmedTransfer(t, db, svc)
	testutil.SeedOperation(t, db, testutil.OfflineProviderID, domain.OutboxStatusToSend, "pay")

	d.pollOnce(context.Background())

	assert.Equal(t, domain.TransferStatusFailed, getTransferStatus(t, db, tr.ID))
	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "panic refunds the agent")

	var code string
	require.NoError(t, db.QueryRow(`SELECT provider_code FROM transfers WHERE id = $1`, tr.ID).Scan(&code))
	assert.Equal(t, WorkerErrorCode, code)
}
