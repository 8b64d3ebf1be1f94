package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReferenceType string

const (
	ReferenceExternalDocument ReferenceType = "external_document"
	ReferenceTransferAction   ReferenceType = "transfer_action"
)

// Transfer actions recorded against the balance history.
const (
	ActionDebit  = "debit"
	ActionRefund = "refund"
)

// BalanceHistory is one append-only row per economic event on an agent
// balance. (AgentID, Currency, ReferenceType, ReferenceID) is unique and
// serves as the idempotency key for duplicate mutation requests.
type BalanceHistory struct {
	ID            uuid.UUID
	AgentID       uuid.UUID
	Currency      string
	ReferenceType ReferenceType
	ReferenceID   string
	BalanceBefore int64
	Delta         int64
	BalanceAfter  int64
	CreatedAt     time.Time
}

// TransferActionRef builds the reference id for a transfer-keyed mutation.
func TransferActionRef(transferID uuid.UUID, action string) string {
	return fmt.Sprintf("%s:%s", transferID, action)
}
