package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Agent holds per-currency prepaid balances in minor units. Balances are
// authoritative in the database and mutated only under a row lock; the
// in-memory map mirrors the loaded state.
type Agent struct {
	ID        uuid.UUID
	Name      string
	TimeZone  string
	Enabled   bool
	Balances  map[string]int64
	CreatedAt time.Time
}

func (a *Agent) Balance(currency string) int64 {
	return a.Balances[currency]
}

func (a *Agent) HasSufficientBalance(currency string, amountMinor int64) bool {
	return a.Balances[currency] >= amountMinor
}

func (a *Agent) Credit(currency string, amountMinor int64) {
	if a.Balances == nil {
		a.Balances = make(map[string]int64)
	}
	a.Balances[currency] += amountMinor
}

func (a *Agent) Debit(currency string, amountMinor int64) error {
	if a.Balances[currency] < amountMinor {
		return fmt.Errorf("Debit: %s: %w", currency, ErrInsufficientBalance)
	}
	a.Balances[currency] -= amountMinor
	return nil
}
