package domain

import "fmt"

// Money is an amount in minor units (cents, kopecks) of a single currency.
type Money struct {
	AmountMinor int64
	Currency    string
}

func NewMoney(amountMinor int64, currency string) (Money, error) {
	if amountMinor < 0 {
		return Money{}, fmt.Errorf("NewMoney: negative amount %d: %w", amountMinor, ErrInvalidAmount)
	}
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("NewMoney: currency %q: %w", currency, ErrInvalidRequest)
	}
	return Money{AmountMinor: amountMinor, Currency: currency}, nil
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Add: %s + %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return Money{AmountMinor: m.AmountMinor + other.AmountMinor, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Sub: %s - %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	if m.AmountMinor < other.AmountMinor {
		return Money{}, fmt.Errorf("Sub: %w", ErrInsufficientBalance)
	}
	return Money{AmountMinor: m.AmountMinor - other.AmountMinor, Currency: m.Currency}, nil
}

func (m Money) IsZero() bool {
	return m.AmountMinor == 0
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.AmountMinor, m.Currency)
}
