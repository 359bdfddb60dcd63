package sniper

import (
	"mint_sniper/internal/models"

	"github.com/shopspring/decimal"
)

// TierRule describes one staged sell: fire once the position's profit
// percentage meets Threshold, selling either the initial investment or a
// fraction of the unrealized profit. The rule set is fixed at startup.
type TierRule struct {
	Threshold      decimal.Decimal // profit % gate
	Tier           models.Tier
	SellsInitial   bool            // sell back the initial investment
	ProfitFraction decimal.Decimal // otherwise: fraction of (value - investment)
}

// DefaultTierRules is the production ladder, in ascending threshold order:
// recover the stake at 2x, then peel off 25% of profit three times, then
// half of profit at 6x.
var DefaultTierRules = []TierRule{
	{Threshold: decimal.NewFromInt(100), Tier: models.TierInitialRecovered, SellsInitial: true},
	{Threshold: decimal.NewFromInt(150), Tier: models.TierProfit25A, ProfitFraction: decimal.RequireFromString("0.25")},
	{Threshold: decimal.NewFromInt(200), Tier: models.TierProfit25B, ProfitFraction: decimal.RequireFromString("0.25")},
	{Threshold: decimal.NewFromInt(300), Tier: models.TierProfit25C, ProfitFraction: decimal.RequireFromString("0.25")},
	{Threshold: decimal.NewFromInt(500), Tier: models.TierProfit50Final, ProfitFraction: decimal.RequireFromString("0.5")},
}

// sellAmount computes the SOL to sell for a firing rule. Both inputs come
// from the valuation snapshot taken at the start of the position's
// evaluation, so every tier firing in the same pass prices consistently.
func (r TierRule) sellAmount(investment, currentValue decimal.Decimal) decimal.Decimal {
	if r.SellsInitial {
		return investment
	}
	return r.ProfitFraction.Mul(currentValue.Sub(investment))
}
