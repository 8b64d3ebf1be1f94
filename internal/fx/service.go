package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/adkhamov/termpay/internal/domain"
	"github.com/adkhamov/termpay/internal/logging"
	"github.com/adkhamov/termpay/internal/pricing"
)

type rateRepo interface {
	GetRate(ctx context.Context, agentID uuid.UUID, base, quote string) (decimal.Decimal, time.Time, error)
}

// Service resolves FX rates with a per-agent override and an optional Redis
// read-through cache in front of the rates table.
type Service struct {
	rates    rateRepo
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewService(rates rateRepo, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{rates: rates, cache: cache, cacheTTL: cacheTTL}
}

type cachedRate struct {
	Rate string    `json:"rate"`
	AsOf time.Time `json:"as_of"`
}

func (s *Service) GetRate(ctx context.Context, agentID uuid.UUID, base, quote string) (*pricing.Rate, error) {
	if base == quote {
		return &pricing.Rate{Value: decimal.NewFromInt(1), AsOf: time.Now().UTC()}, nil
	}

	key := fmt.Sprintf("fx:%s:%s:%s", agentID, base, quote)
	if r, ok := s.fromCache(ctx, key); ok {
		return r, nil
	}

	rate, asOf, err := s.rates.GetRate(ctx, agentID, base, quote)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetRate: %s/%s: %w", base, quote, domain.ErrRateNotFound)
		}
		return nil, fmt.Errorf("GetRate: %w", err)
	}

	s.toCache(ctx, key, rate, asOf)
	return &pricing.Rate{Value: rate, AsOf: asOf}, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (*pricing.Rate, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("fx cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var c cachedRate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false
	}
	v, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return nil, false
	}
	return &pricing.Rate{Value: v, AsOf: c.AsOf}, true
}

func (s *Service) toCache(ctx context.Context, key string, rate decimal.Decimal, asOf time.Time) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(cachedRate{Rate: rate.String(), AsOf: asOf})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		logging.FromContext(ctx).Warn("fx cache write failed", "key", key, "error", err)
	}
}
