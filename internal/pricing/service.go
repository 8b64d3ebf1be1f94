package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adkhamov/termpay/internal/domain"
)

// Rounding controls the final minor-unit truncation of the FX-converted
// credited amount. Intermediate values are kept exact; the policy is applied
// exactly once.
type Rounding string

const (
	RoundingFloor   Rounding = "floor"
	RoundingCeil    Rounding = "ceil"
	RoundingBankers Rounding = "bankers"
)

func ParseRounding(s string) (Rounding, error) {
	switch Rounding(s) {
	case RoundingFloor, RoundingCeil, RoundingBankers:
		return Rounding(s), nil
	default:
		return "", fmt.Errorf("ParseRounding: %q: %w", s, domain.ErrInvalidRequest)
	}
}

// FeeSchedule is the permille-plus-flat fee formula:
// fee = amountMinor*Permille/10000 + FlatMinor, rounded up to the next minor
// unit so fractional fees are never charged short.
type FeeSchedule struct {
	Permille  int64
	FlatMinor int64
}

func (f FeeSchedule) Apply(amountMinor int64) int64 {
	variable := amountMinor * f.Permille
	fee := variable / 10000
	if variable%10000 != 0 {
		fee++
	}
	return fee + f.FlatMinor
}

// Rate is an FX rate snapshot.
type Rate struct {
	Value decimal.Decimal
	AsOf  time.Time
}

// CreateQuote freezes the price of a transfer: the agent is charged
// amount + fee, the provider is credited (amount - providerFee) converted to
// the settlement currency. A nil rate means settlement happens in the request
// currency.
func CreateQuote(
	amount domain.Money,
	agentFees, providerFees FeeSchedule,
	settlementCurrency string,
	rate *Rate,
	rounding Rounding,
	ttl time.Duration,
	now time.Time,
) (*domain.Quote, error) {
	if amount.AmountMinor <= 0 {
		return nil, fmt.Errorf("CreateQuote: %w", domain.ErrInvalidAmount)
	}
	if rate == nil && settlementCurrency != amount.Currency {
		return nil, fmt.Errorf("CreateQuote: no rate for %s/%s: %w",
			amount.Currency, settlementCurrency, domain.ErrInvalidQuote)
	}
	if rate != nil && !rate.Value.IsPositive() {
		return nil, fmt.Errorf("CreateQuote: rate %s: %w", rate.Value, domain.ErrInvalidQuote)
	}

	feeMinor := agentFees.Apply(amount.AmountMinor)
	providerFeeMinor := providerFees.Apply(amount.AmountMinor)

	netMinor := amount.AmountMinor - providerFeeMinor
	if netMinor < 0 {
		return nil, fmt.Errorf("CreateQuote: provider fee exceeds amount: %w", domain.ErrInvalidQuote)
	}

	creditedMinor := netMinor
	var exchangeRate *decimal.Decimal
	var rateTimestamp *time.Time
	if rate != nil && settlementCurrency != amount.Currency {
		converted := decimal.NewFromInt(netMinor).Mul(rate.Value)
		creditedMinor = roundMinor(converted, rounding)
		r := rate.Value
		ts := rate.AsOf
		exchangeRate = &r
		rateTimestamp = &ts
	}
	if creditedMinor < 0 {
		return nil, fmt.Errorf("CreateQuote: negative credited amount: %w", domain.ErrInvalidQuote)
	}

	return &domain.Quote{
		ID:             uuid.NewString(),
		Total:          domain.Money{AmountMinor: amount.AmountMinor + feeMinor, Currency: amount.Currency},
		Fee:            domain.Money{AmountMinor: feeMinor, Currency: amount.Currency},
		ProviderFee:    domain.Money{AmountMinor: providerFeeMinor, Currency: amount.Currency},
		CreditedAmount: domain.Money{AmountMinor: creditedMinor, Currency: settlementCurrency},
		ExchangeRate:   exchangeRate,
		RateTimestamp:  rateTimestamp,
		ExpiresAt:      now.Add(ttl),
	}, nil
}

func roundMinor(v decimal.Decimal, rounding Rounding) int64 {
	switch rounding {
	case RoundingCeil:
		return v.Ceil().IntPart()
	case RoundingBankers:
		return v.RoundBank(0).IntPart()
	default:
		return v.Floor().IntPart()
	}
}
