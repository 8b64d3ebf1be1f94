package fx

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adkhamov/termpay/internal/domain"
)

type fakeRateRepo struct {
	rate  decimal.Decimal
	asOf  time.Time
	err   error
	calls int
}

func (f *fakeRateRepo) GetRate(ctx context.Context, agentID uuid.UUID, base, quote string) (decimal.Decimal, time.Time, error) {
	f.calls++
	if f.err != nil {
		return decimal.Decimal{}, time.Time{}, f.err
	}
	return f.rate, f.asOf, nil
}

func TestGetRate(t *testing.T) {
	ctx := context.Background()
	agentID := uuid.New()

	t.Run("same currency is identity without a lookup", func(t *testing.T) {
		repo := &fakeRateRepo{}
		svc := NewService(repo, nil, 0)

		r, err := svc.GetRate(ctx, agentID, "UZS", "UZS")
		require.NoError(t, err)
		assert.True(t, r.Value.Equal(decimal.NewFromInt(1)))
		assert.Zero(t, repo.calls)
	})

	t.Run("reads from the repository", func(t *testing.T) {
		asOf := time.Now().UTC()
		repo := &fakeRateRepo{rate: decimal.RequireFromString("0.92"), asOf: asOf}
		svc := NewService(repo, nil, 0)

		r, err := svc.GetRate(ctx, agentID, "USD", "EUR")
		require.NoError(t, err)
		assert.True(t, r.Value.Equal(decimal.RequireFromString("0.92")))
		assert.Equal(t, asOf, r.AsOf)
	})

	t.Run("missing pair maps to ErrRateNotFound", func(t *testing.T) {
		repo := &fakeRateRepo{err: domain.ErrNotFound}
		svc := NewService(repo, nil, 0)

		_, err := svc.GetRate(ctx, agentID, "USD", "JPY")
		require.ErrorIs(t, err, domain.ErrRateNotFound)
	})
}
