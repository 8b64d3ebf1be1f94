package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/adkhamov/termpay/internal/domain"
)

var (
	TestAgentID    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	TestTerminalID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	OfflineProviderID = uuid.MustParse("00000000-0000-0000-0001-000000000001")
	OnlineProviderID  = uuid.MustParse("00000000-0000-0000-0001-000000000002")

	OfflineServiceID = uuid.MustParse("00000000-0000-0000-0002-000000000001")
	OnlineServiceID  = uuid.MustParse("00000000-0000-0000-0002-000000000002")
)

func SeedAgent(t *testing.T, db *sql.DB, id uuid.UUID, balances map[string]int64) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO agents (id, name, time_zone, enabled)
		 VALUES ($1, $2, 'UTC', TRUE)
		 ON CONFLICT (id) DO NOTHING`,
		id, "Test Agent",
	)
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	for currency, balance := range balances {
		_, err := db.Exec(
			`INSERT INTO agent_balances (agent_id, currency, balance)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (agent_id, currency) DO UPDATE SET balance = EXCLUDED.balance`,
			id, currency, balance,
		)
		if err != nil {
			t.Fatalf("seed balance %s: %v", currency, err)
		}
	}
}

func DisableAgent(t *testing.T, db *sql.DB, id uuid.UUID) {
	t.Helper()
	if _, err := db.Exec(`UPDATE agents SET enabled = FALSE WHERE id = $1`, id); err != nil {
		t.Fatalf("disable agent: %v", err)
	}
}

func SeedProvider(t *testing.T, db *sql.DB, id uuid.UUID, online bool, baseURL string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO providers (id, name, online, base_url, timeout_ms, fee_permille, fee_flat_minor)
		 VALUES ($1, $2, $3, $4, 2000, 10, 0)
		 ON CONFLICT (id) DO UPDATE SET online = EXCLUDED.online, base_url = EXCLUDED.base_url`,
		id, "Test Provider", online, baseURL,
	)
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}
}

func SeedOperation(t *testing.T, db *sql.DB, providerID uuid.UUID, status domain.OutboxStatus, operation string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO provider_operations (provider_id, status, operation)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (provider_id, status) DO UPDATE SET operation = EXCLUDED.operation`,
		providerID, status, operation,
	)
	if err != nil {
		t.Fatalf("seed operation %s: %v", status, err)
	}
}

func SeedService(t *testing.T, db *sql.DB, id, providerID uuid.UUID, currencies []string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO services (id, name, provider_id, currencies, enabled)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (id) DO NOTHING`,
		id, "Test Service", providerID, pq.Array(currencies),
	)
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
}

func SeedAgentService(t *testing.T, db *sql.DB, agentID, serviceID uuid.UUID, feePermille, feeFlatMinor int64) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO agent_services (agent_id, service_id, fee_permille, fee_flat_minor, enabled)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (agent_id, service_id) DO UPDATE
		 SET fee_permille = EXCLUDED.fee_permille, fee_flat_minor = EXCLUDED.fee_flat_minor`,
		agentID, serviceID, feePermille, feeFlatMinor,
	)
	if err != nil {
		t.Fatalf("seed agent service: %v", err)
	}
}

func SeedRate(t *testing.T, db *sql.DB, base, quote string, rate decimal.Decimal) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO fx_rates (id, agent_id, base_currency, quote_currency, rate, as_of)
		 VALUES ($1, NULL, $2, $3, $4, $5)`,
		uuid.New(), base, quote, rate, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed rate %s/%s: %v", base, quote, err)
	}
}

func GetBalance(t *testing.T, db *sql.DB, agentID uuid.UUID, currency string) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(
		`SELECT balance FROM agent_balances WHERE agent_id = $1 AND currency = $2`,
		agentID, currency,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance %s/%s: %v", agentID, currency, err)
	}
	return balance
}

func CountHistoryEntries(t *testing.T, db *sql.DB, agentID uuid.UUID, refType domain.ReferenceType, refID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM agent_balance_history
		 WHERE agent_id = $1 AND reference_type = $2 AND reference_id = $3`,
		agentID, refType, refID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count history entries: %v", err)
	}
	return count
}

func GetOutboxStatus(t *testing.T, db *sql.DB, transferID uuid.UUID) string {
	t.Helper()

	var status string
	err := db.QueryRow(`SELECT status FROM outbox WHERE transfer_id = $1`, transferID).Scan(&status)
	if err != nil {
		t.Fatalf("get outbox status for %s: %v", transferID, err)
	}
	return status
}
