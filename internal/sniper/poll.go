package sniper

import (
	"context"
	"fmt"
	"log"

	"mint_sniper/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Poll runs one profit-taking pass over every tracked position. Positions
// are evaluated one at a time; a failure on one never aborts the pass.
// A started pass always runs to completion: shutdown lands between passes,
// and an already-submitted swap keeps its confirmation wait. Cancelling a
// sell after submission would leave the tier flag unset and re-sell the
// same tier on restart.
func (s *Sniper) Poll(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	book := s.store.All()
	if len(book) == 0 {
		return
	}
	log.Printf("Profit check: %d position(s)", len(book))

	for _, pos := range book {
		if pos.Completed() {
			continue
		}
		s.checkPosition(ctx, pos)
	}
}

// checkPosition values one position and walks the tier ladder against a
// single valuation snapshot, so several tiers firing in the same pass all
// price consistently.
func (s *Sniper) checkPosition(ctx context.Context, pos models.Position) {
	if !pos.InitialInvestment.IsPositive() {
		// Should not exist given Create's contract, but never divide by it.
		log.Printf("Warning: [%s] non-positive investment, skipping", pos.Mint)
		return
	}

	vctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	qty, err := s.data.TokenBalance(vctx, pos.Mint)
	cancel()
	if err != nil {
		log.Printf("ERROR: [%s] Fetching holdings: %v", pos.Mint, err)
		return
	}

	vctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
	price, err := s.data.UnitPriceSOL(vctx, pos.Mint)
	cancel()
	if err != nil {
		log.Printf("ERROR: [%s] Fetching price: %v", pos.Mint, err)
		return
	}
	if !price.IsPositive() {
		// Fail closed on a dead or stale quote rather than sell into it.
		log.Printf("Warning: [%s] zero price, holding off sells this pass", pos.Mint)
		return
	}

	currentValue := qty.Mul(price)
	profitPct := currentValue.Sub(pos.InitialInvestment).Div(pos.InitialInvestment).Mul(hundred)
	log.Printf("[%s] Value: %s SOL | Invested: %s SOL | PnL: %s%%",
		pos.Mint, currentValue.StringFixed(4), pos.InitialInvestment.StringFixed(4), profitPct.StringFixed(1))

	for _, rule := range s.tiers {
		if pos.Fired(rule.Tier) {
			continue
		}
		if profitPct.LessThan(rule.Threshold) {
			// Thresholds ascend, nothing further can fire this pass.
			break
		}
		s.fireTier(ctx, pos, rule, currentValue, price)
	}
}

// fireTier attempts one staged sell. The tier flag is only set after the
// executor confirms; on failure it stays unset and the next pass retries.
func (s *Sniper) fireTier(ctx context.Context, pos models.Position, rule TierRule, currentValue, price decimal.Decimal) {
	amount := rule.sellAmount(pos.InitialInvestment, currentValue)
	if !amount.IsPositive() {
		log.Printf("Warning: [%s] tier %s computed non-positive sell, skipping", pos.Mint, rule.Tier)
		return
	}

	err := s.exec.Sell(ctx, pos.Mint, amount)
	if isInsufficient(err) {
		// Sell what is actually there instead of aborting the tier.
		clamped, clampErr := s.availableValue(ctx, pos.Mint, price)
		if clampErr != nil {
			log.Printf("ERROR: [%s] tier %s clamp lookup failed: %v", pos.Mint, rule.Tier, clampErr)
			return
		}
		clamped = decimal.Min(amount, clamped)
		if !clamped.IsPositive() {
			log.Printf("Warning: [%s] tier %s: nothing left to sell", pos.Mint, rule.Tier)
			return
		}
		log.Printf("[%s] tier %s clamped %s -> %s SOL (insufficient holdings)", pos.Mint, rule.Tier, amount, clamped)
		amount = clamped
		err = s.exec.Sell(ctx, pos.Mint, amount)
	}
	if err != nil {
		log.Printf("ERROR: [%s] tier %s sell of %s SOL failed, will retry next pass: %v", pos.Mint, rule.Tier, amount, err)
		return
	}

	set, err := s.store.MarkTier(pos.Mint, rule.Tier)
	if err != nil {
		log.Printf("CRITICAL: [%s] sold tier %s but failed to persist flag: %v", pos.Mint, rule.Tier, err)
		return
	}
	if !set {
		// Should be impossible with a single poll loop; the contract is
		// idempotent so a duplicate mark is a no-op either way.
		log.Printf("Warning: [%s] tier %s was already marked", pos.Mint, rule.Tier)
		return
	}

	log.Printf("[%s] Tier %s fired: sold %s SOL", pos.Mint, rule.Tier, amount)
	s.notifyTrade(fmt.Sprintf("💰 *Profit take* (%s)", rule.Tier), pos.Mint, amount)
}

// availableValue re-reads the wallet's holdings and values them at the
// pass's snapshot price, for clamping short sells.
func (s *Sniper) availableValue(ctx context.Context, mint string, price decimal.Decimal) (decimal.Decimal, error) {
	vctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	qty, err := s.data.TokenBalance(vctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Mul(price), nil
}
