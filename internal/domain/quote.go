package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a frozen, time-boxed price for a transfer. It is immutable once
// built; re-pricing always produces a new quote id.
type Quote struct {
	ID             string
	Total          Money
	Fee            Money
	ProviderFee    Money
	CreditedAmount Money
	ExchangeRate   *decimal.Decimal
	RateTimestamp  *time.Time
	ExpiresAt      time.Time
}

func (q *Quote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
