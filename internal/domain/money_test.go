package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		wantErr  error
	}{
		{name: "valid", amount: 5000, currency: "UZS"},
		{name: "zero is valid", amount: 0, currency: "USD"},
		{name: "negative amount", amount: -1, currency: "USD", wantErr: ErrInvalidAmount},
		{name: "short currency", amount: 100, currency: "US", wantErr: ErrInvalidRequest},
		{name: "empty currency", amount: 100, currency: "", wantErr: ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewMoney(tc.amount, tc.currency)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.amount, m.AmountMinor)
			assert.Equal(t, tc.currency, m.Currency)
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	usd := func(v int64) Money { return Money{AmountMinor: v, Currency: "USD"} }
	eur := func(v int64) Money { return Money{AmountMinor: v, Currency: "EUR"} }

	t.Run("add", func(t *testing.T) {
		sum, err := usd(100).Add(usd(250))
		require.NoError(t, err)
		assert.Equal(t, usd(350), sum)
	})

	t.Run("add currency mismatch", func(t *testing.T) {
		_, err := usd(100).Add(eur(100))
		require.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("sub", func(t *testing.T) {
		diff, err := usd(250).Sub(usd(100))
		require.NoError(t, err)
		assert.Equal(t, usd(150), diff)
	})

	t.Run("sub below zero", func(t *testing.T) {
		_, err := usd(100).Sub(usd(101))
		require.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("sub currency mismatch", func(t *testing.T) {
		_, err := usd(100).Sub(eur(50))
		require.ErrorIs(t, err, ErrCurrencyMismatch)
	})
}
