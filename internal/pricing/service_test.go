package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adkhamov/termpay/internal/domain"
)

func TestFeeScheduleApply(t *testing.T) {
	tests := []struct {
		name     string
		schedule FeeSchedule
		amount   int64
		want     int64
	}{
		{name: "two percent exact", schedule: FeeSchedule{Permille: 200}, amount: 5000, want: 100},
		{name: "fractional fee rounds up", schedule: FeeSchedule{Permille: 100}, amount: 333, want: 4},
		{name: "flat only", schedule: FeeSchedule{FlatMinor: 50}, amount: 10000, want: 50},
		{name: "variable plus flat", schedule: FeeSchedule{Permille: 200, FlatMinor: 25}, amount: 5000, want: 125},
		{name: "zero schedule", schedule: FeeSchedule{}, amount: 5000, want: 0},
		{name: "tiny amount still charged", schedule: FeeSchedule{Permille: 10}, amount: 1, want: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.schedule.Apply(tc.amount))
		})
	}
}

func TestCreateQuoteSameCurrency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	amount := domain.Money{AmountMinor: 5000, Currency: "UZS"}

	q, err := CreateQuote(
		amount,
		FeeSchedule{Permille: 200},
		FeeSchedule{Permille: 10},
		"UZS", nil, RoundingFloor, 5*time.Minute, now,
	)
	require.NoError(t, err)

	assert.NotEmpty(t, q.ID)
	assert.Equal(t, int64(5100), q.Total.AmountMinor, "total is amount plus agent fee")
	assert.Equal(t, "UZS", q.Total.Currency)
	assert.Equal(t, int64(100), q.Fee.AmountMinor)
	assert.Equal(t, int64(5), q.ProviderFee.AmountMinor)
	assert.Equal(t, int64(4995), q.CreditedAmount.AmountMinor, "credited is amount minus provider fee")
	assert.Equal(t, "UZS", q.CreditedAmount.Currency)
	assert.Nil(t, q.ExchangeRate, "same-currency quotes carry no rate")
	assert.Nil(t, q.RateTimestamp)
	assert.Equal(t, now.Add(5*time.Minute), q.ExpiresAt)
}

func TestCreateQuoteCrossCurrency(t *testing.T) {
	now := time.Now().UTC()
	rate := &Rate{Value: decimal.RequireFromString("0.5"), AsOf: now}

	tests := []struct {
		name         string
		amount       int64
		rounding     Rounding
		wantCredited int64
	}{
		{name: "floor", amount: 1001, rounding: RoundingFloor, wantCredited: 500},
		{name: "ceil", amount: 1001, rounding: RoundingCeil, wantCredited: 501},
		{name: "bankers rounds half to even down", amount: 1001, rounding: RoundingBankers, wantCredited: 500},
		{name: "bankers rounds half to even up", amount: 1003, rounding: RoundingBankers, wantCredited: 502},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount := domain.Money{AmountMinor: tc.amount, Currency: "USD"}
			q, err := CreateQuote(amount, FeeSchedule{}, FeeSchedule{}, "EUR", rate, tc.rounding, time.Minute, now)
			require.NoError(t, err)

			assert.Equal(t, tc.wantCredited, q.CreditedAmount.AmountMinor)
			assert.Equal(t, "EUR", q.CreditedAmount.Currency)
			require.NotNil(t, q.ExchangeRate)
			assert.True(t, q.ExchangeRate.Equal(rate.Value))
			require.NotNil(t, q.RateTimestamp)
		})
	}
}

func TestCreateQuoteErrors(t *testing.T) {
	now := time.Now().UTC()
	usd := func(v int64) domain.Money { return domain.Money{AmountMinor: v, Currency: "USD"} }

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := CreateQuote(usd(0), FeeSchedule{}, FeeSchedule{}, "USD", nil, RoundingFloor, time.Minute, now)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("cross currency without rate", func(t *testing.T) {
		_, err := CreateQuote(usd(1000), FeeSchedule{}, FeeSchedule{}, "EUR", nil, RoundingFloor, time.Minute, now)
		require.ErrorIs(t, err, domain.ErrInvalidQuote)
	})

	t.Run("non-positive rate", func(t *testing.T) {
		rate := &Rate{Value: decimal.Zero, AsOf: now}
		_, err := CreateQuote(usd(1000), FeeSchedule{}, FeeSchedule{}, "EUR", rate, RoundingFloor, time.Minute, now)
		require.ErrorIs(t, err, domain.ErrInvalidQuote)
	})

	t.Run("provider fee exceeds amount", func(t *testing.T) {
		_, err := CreateQuote(usd(10), FeeSchedule{}, FeeSchedule{FlatMinor: 20}, "USD", nil, RoundingFloor, time.Minute, now)
		require.ErrorIs(t, err, domain.ErrInvalidQuote)
	})
}

func TestParseRounding(t *testing.T) {
	for _, valid := range []string{"floor", "ceil", "bankers"} {
		r, err := ParseRounding(valid)
		require.NoError(t, err)
		assert.Equal(t, Rounding(valid), r)
	}

	_, err := ParseRounding("nearest")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}
