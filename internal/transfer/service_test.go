package transfer

import (
	"context"
	"database/sql"
	"sync"
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
)

// fakeClient scripts the provider's answers so tests can drive every
// outcome without a network.
type fakeClient struct {
	result        domain.ProviderResult
	resolveFields map[string]string
	resolveErr    error
	sends         []domain.NormalizedRequest
	onSend        func()
}

func (f *fakeClient) Send(ctx context.Context, p *domain.Provider, req domain.NormalizedRequest) domain.ProviderResult {
	if f.onSend != nil {
		f.onSend()
	}
	f.sends = append(f.sends, req)
	return f.result
}

func (f *fakeClient) Resolve(ctx context.Context, p *domain.Provider, serviceID uuid.UUID, account string) (map[string]string, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolveFields, nil
}

func setupTransferTest(t *testing.T, db *sql.DB, client *fakeClient) *Service {
	t.Helper()

	ledgerSvc := ledger.NewService(
		repository.NewAgentRepository(db),
		repository.NewHistoryRepository(db),
		db,
	)
	fxSvc := fx.NewService(repository.NewRateRepository(db), nil, 0)

	return NewService(
		repository.NewTransferRepository(db),
		repository.NewOutboxRepository(db),
		repository.NewAgentRepository(db),
		repository.NewCatalogRepository(db),
		ledgerSvc,
		fxSvc,
		client,
		db,
		Options{
			QuoteTTL:        5 * time.Minute,
			Rounding:        pricing.RoundingFloor,
			ProviderTimeout: 2 * time.Second,
		},
	)
}

func seedOfflineSetup(t *testing.T, db *sql.DB, balance int64) {
	t.Helper()
	testutil.SeedAgent(t, db, testutil.TestAgentID, map[string]int64{"UZS": balance})
	testutil.SeedProvider(t, db, testutil.OfflineProviderID, false, "http://provider.local")
	testutil.SeedService(t, db, testutil.OfflineServiceID, testutil.OfflineProviderID, []string{"UZS"})
	testutil.SeedAgentService(t, db, testutil.TestAgentID, testutil.OfflineServiceID, 200, 0)
}

func seedOnlineSetup(t *testing.T, db *sql.DB, balance int64) {
	t.Helper()
	testutil.SeedAgent(t, db, testutil.TestAgentID, map[string]int64{"UZS": balance})
	testutil.SeedProvider(t, db, testutil.OnlineProviderID, true, "http://provider.local")
	testutil.SeedOperation(t, db, testutil.OnlineProviderID, domain.OutboxStatusToSend, "pay")
	testutil.SeedService(t, db, testutil.OnlineServiceID, testutil.OnlineProviderID, []string{"UZS"})
	testutil.SeedAgentService(t, db, testutil.TestAgentID, testutil.OnlineServiceID, 200, 0)
}

func prepareReq(serviceID uuid.UUID, externalID string, amount int64) PrepareRequest {
	return PrepareRequest{
		AgentID:     testutil.TestAgentID,
		TerminalID:  testutil.TestTerminalID,
		ExternalID:  externalID,
		ServiceID:   serviceID,
		Method:      "terminal",
		Account:     "998901234567",
		AmountMinor: amount,
		Currency:    "UZS",
	}
}

func expireQuote(t *testing.T, db *sql.DB, transferID uuid.UUID) {
	t.Helper()
	_, err := db.Exec(
		`UPDATE transfers SET quote_expires_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Minute), transferID,
	)
	require.NoError(t, err)
}

func TestPrepare(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	tr, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatusPrepared, tr.Status)
	assert.Positive(t, tr.SequenceNumber)
	require.NotNil(t, tr.CurrentQuote)
	assert.Equal(t, int64(5100), tr.CurrentQuote.Total.AmountMinor, "5000 at 2% fee")
	assert.Equal(t, int64(100), tr.CurrentQuote.Fee.AmountMinor)
	assert.Nil(t, tr.CurrentQuote.ExchangeRate)

	// Preparing never touches the balance.
	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
}

func TestPrepare_ReplayKeepsQuote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	first, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	second, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CurrentQuote.ID, second.CurrentQuote.ID, "valid quote survives the replay")
}

func TestPrepare_ReplayRepricesExpiredQuote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	first, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)
	expireQuote(t, db, first.ID)

	second, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.CurrentQuote.ID, second.CurrentQuote.ID, "expired quote gets a new id")
	assert.False(t, second.CurrentQuote.IsExpired(time.Now().UTC()))
}

func TestPrepare_ReplayRejectsChangedAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	first, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	// A different amount under the same external id is not a replay.
	_, err = svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 9000))
	require.ErrorIs(t, err, domain.ErrDuplicateTransfer)

	// The stored amount stays authoritative after the quote expires too.
	expireQuote(t, db, first.ID)
	_, err = svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 9000))
	require.ErrorIs(t, err, domain.ErrDuplicateTransfer)

	second, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(5100), second.CurrentQuote.Total.AmountMinor, "reprice keeps the stored amount")
}

func TestPrepare_RejectsUnknownCurrency(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	req := prepareReq(testutil.OfflineServiceID, "ext-1", 5000)
	req.SettlementCurrency = "JPY"
	_, err := svc.Prepare(ctx, req)
	require.ErrorIs(t, err, domain.ErrCurrencyNotAllowed)
}

func TestPrepare_DisabledAgent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)
	testutil.DisableAgent(t, db, testutil.TestAgentID)

	_, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.ErrorIs(t, err, domain.ErrAgentDisabled)
}

func TestConfirm_OfflineEnqueuesOutbox(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	client := &fakeClient{}
	svc := setupTransferTest(t, db, client)
	seedOfflineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatusConfirmed, confirmed.Status)
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
	assert.Equal(t, string(domain.OutboxStatusToSend), testutil.GetOutboxStatus(t, db, prepared.ID))
	assert.Empty(t, client.sends, "offline provider is never called inline")
}

func TestConfirm_ReplaySingleDebit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	req := ConfirmRequest{AgentID: testutil.TestAgentID, ExternalID: "ext-1", QuoteID: prepared.CurrentQuote.ID}

	_, err = svc.Confirm(ctx, req)
	require.NoError(t, err)
	replayed, err := svc.Confirm(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatusConfirmed, replayed.Status)
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
	ref := domain.TransferActionRef(prepared.ID, domain.ActionDebit)
	assert.Equal(t, 1, testutil.CountHistoryEntries(t, db, testutil.TestAgentID, domain.ReferenceTransferAction, ref))
}

func TestConfirm_QuoteMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	_, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    "some-other-quote",
	})
	require.ErrorIs(t, err, domain.ErrQuoteMismatch)
	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
}

func TestConfirm_ExpiredQuote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)
	expireQuote(t, db, prepared.ID)

	_, err = svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.ErrorIs(t, err, domain.ErrQuoteExpired)
	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
}

func TestConfirm_InsufficientBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 5000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	// Total is 5100 but only 5000 is available.
	_, err = svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	reloaded, err := svc.Status(ctx, testutil.TestAgentID, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPrepared, reloaded.Status)
	assert.Equal(t, int64(5000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
}

func TestConfirm_OnlineSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	code := "OK"
	client := &fakeClient{result: domain.ProviderResult{
		Status: domain.ProviderStatusSuccess,
		Code:   &code,
		Fields: map[string]string{"receipt": "R-42"},
	}}
	svc := setupTransferTest(t, db, client)
	seedOnlineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OnlineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatusSuccess, result.Status)
	assert.Equal(t, "R-42", result.ProviderReceivedParameters["receipt"])
	require.NotNil(t, result.ProviderCode)
	assert.Equal(t, "OK", *result.ProviderCode)
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))

	require.Len(t, client.sends, 1)
	assert.Equal(t, "pay", client.sends[0].Operation)
	assert.Equal(t, int64(4995), client.sends[0].AmountMinor, "provider receives the credited amount")
	assert.Equal(t, string(domain.OutboxStatusSuccess), testutil.GetOutboxStatus(t, db, prepared.ID))
}

// A terminal dropping the connection mid-call must not strand a debited
// transfer: the outcome still lands and the outbox item stays pollable.
func TestConfirm_CallerDisconnectDuringProviderCall(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeClient{result: domain.ProviderResult{
		Status: domain.ProviderStatusNoResponse,
		Error:  "timeout",
	}}
	svc := setupTransferTest(t, db, client)
	seedOnlineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OnlineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	var statusDuringCall string
	client.onSend = func() {
		cancel()
		statusDuringCall = testutil.GetOutboxStatus(t, db, prepared.ID)
	}

	result, err := svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.OutboxStatusSending), statusDuringCall, "item exists while the call is in flight")
	assert.Equal(t, domain.TransferStatusConfirmed, result.Status)
	assert.Equal(t, string(domain.OutboxStatusNoResponse), testutil.GetOutboxStatus(t, db, prepared.ID))
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "debit held until the dispatcher resolves the call")

	ref := domain.TransferActionRef(prepared.ID, domain.ActionRefund)
	assert.Equal(t, 0, testutil.CountHistoryEntries(t, db, testutil.TestAgentID, domain.ReferenceTransferAction, ref))
}

// Two Confirms race for a balance that covers exactly one quote total.
func TestConfirm_ConcurrentExactBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 5100)

	p1, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)
	p2, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-2", 5000))
	require.NoError(t, err)

	reqs := []ConfirmRequest{
		{AgentID: testutil.TestAgentID, ExternalID: "ext-1", QuoteID: p1.CurrentQuote.ID},
		{AgentID: testutil.TestAgentID, ExternalID: "ext-2", QuoteID: p2.CurrentQuote.ID},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Confirm(ctx, req)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded, "the balance covers exactly one total")
	assert.Equal(t, int64(0), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
}

func TestConfirm_OnlineFailureRefunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	code := "REJECTED"
	client := &fakeClient{result: domain.ProviderResult{
		Status: domain.ProviderStatusFailed,
		Code:   &code,
		Error:  "destination rejected",
	}}
	svc := setupTransferTest(t, db, client)
	seedOnlineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OnlineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatusFailed, result.Status)
	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "debit refunded in full")

	ref := domain.TransferActionRef(prepared.ID, domain.ActionRefund)
	assert.Equal(t, 1, testutil.CountHistoryEntries(t, db, testutil.TestAgentID, domain.ReferenceTransferAction, ref))
}

func TestConfirm_OnlinePendingStaysConfirmed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	client := &fakeClient{result: domain.ProviderResult{Status: domain.ProviderStatusStatus}}
	svc := setupTransferTest(t, db, client)
	seedOnlineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OnlineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatusConfirmed, result.Status)
	assert.Equal(t, int64(94_900), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"), "no refund while pending")
	assert.Equal(t, string(domain.OutboxStatusStatus), testutil.GetOutboxStatus(t, db, prepared.ID),
		"item stays pending so the dispatcher keeps polling the provider")
}

func TestConfirm_AfterTerminal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	client := &fakeClient{result: domain.ProviderResult{Status: domain.ProviderStatusSuccess}}
	svc := setupTransferTest(t, db, client)
	seedOnlineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OnlineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	req := ConfirmRequest{AgentID: testutil.TestAgentID, ExternalID: "ext-1", QuoteID: prepared.CurrentQuote.ID}
	_, err = svc.Confirm(ctx, req)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, req)
	require.ErrorIs(t, err, domain.ErrAlreadyFinished)
}

func TestApplyProviderResult_TerminalIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	code := "REJECTED"
	client := &fakeClient{result: domain.ProviderResult{Status: domain.ProviderStatusFailed, Code: &code}}
	svc := setupTransferTest(t, db, client)
	seedOnlineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OnlineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, ConfirmRequest{
		AgentID:    testutil.TestAgentID,
		ExternalID: "ext-1",
		QuoteID:    prepared.CurrentQuote.ID,
	})
	require.NoError(t, err)

	// Re-applying the failure after the fact must not produce a second refund.
	_, err = svc.ApplyProviderResult(ctx, prepared.ID, domain.ProviderResult{
		Status: domain.ProviderStatusFailed, Code: &code,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100_000), testutil.GetBalance(t, db, testutil.TestAgentID, "UZS"))
	ref := domain.TransferActionRef(prepared.ID, domain.ActionRefund)
	assert.Equal(t, 1, testutil.CountHistoryEntries(t, db, testutil.TestAgentID, domain.ReferenceTransferAction, ref))
}

func TestStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferTest(t, db, &fakeClient{})
	seedOfflineSetup(t, db, 100_000)

	prepared, err := svc.Prepare(ctx, prepareReq(testutil.OfflineServiceID, "ext-1", 5000))
	require.NoError(t, err)

	byExternal, err := svc.Status(ctx, testutil.TestAgentID, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, prepared.ID, byExternal.ID)

	byInternal, err := svc.Status(ctx, testutil.TestAgentID, prepared.ID.String())
	require.NoError(t, err)
	assert.Equal(t, prepared.ID, byInternal.ID)

	_, err = svc.Status(ctx, uuid.New(), prepared.ID.String())
	require.ErrorIs(t, err, domain.ErrTransferNotFound, "lookups are agent-scoped")

	_, err = svc.Status(ctx, testutil.TestAgentID, "missing")
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestCheck(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	client := &fakeClient{resolveFields: map[string]string{"account_name": "Test Subscriber"}}
	svc := setupTransferTest(t, db, client)
	seedOfflineSetup(t, db, 100_000)

	result, err := svc.Check(ctx, CheckRequest{
		AgentID:     testutil.TestAgentID,
		ServiceID:   testutil.OfflineServiceID,
		Account:     "998901234567",
		AmountMinor: 5000,
		Currency:    "UZS",
	})
	require.NoError(t, err)

	assert.Equal(t, "Test Subscriber", result.Resolved["account_name"])
	require.Len(t, result.Quotes, 1)
	assert.Equal(t, "UZS", result.Quotes[0].Currency)
	assert.Equal(t, int64(5100), result.Quotes[0].Quote.Total.AmountMinor)

	// Check never persists anything.
	_, err = svc.Status(ctx, testutil.TestAgentID, "998901234567")
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}
