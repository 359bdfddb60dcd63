// Package sniper is the trading core: the acquisition pipeline that turns
// posts into buys, and the poll loop that takes staged profits on open
// positions.
package sniper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"mint_sniper/internal/config"
	"mint_sniper/internal/extract"
	"mint_sniper/internal/ledger"
	"mint_sniper/internal/market"
	"mint_sniper/internal/positions"
	"mint_sniper/internal/telegram"
	"mint_sniper/internal/trader"

	"github.com/shopspring/decimal"
)

type Sniper struct {
	cfg    *config.Config
	data   market.DataProvider
	exec   trader.Executor
	budget *ledger.Budget
	store  *positions.Store
	tiers  []TierRule

	maxPerTrade  decimal.Decimal
	minLiquidity decimal.Decimal

	// buyMu serializes the whole authorize→buy→commit section so two
	// candidates can never both pass Authorize against stale spend.
	buyMu sync.Mutex
}

func New(cfg *config.Config, data market.DataProvider, exec trader.Executor, budget *ledger.Budget, store *positions.Store, tiers []TierRule) *Sniper {
	return &Sniper{
		cfg:          cfg,
		data:         data,
		exec:         exec,
		budget:       budget,
		store:        store,
		tiers:        tiers,
		maxPerTrade:  decimal.NewFromFloat(cfg.MaxPerTradeSOL),
		minLiquidity: decimal.NewFromFloat(cfg.MinLiquidityUSD),
	}
}

// OnPost runs the acquisition pipeline for one stream event. Candidates
// are processed sequentially in extraction order; each one is independent
// and any failure only skips that candidate.
func (s *Sniper) OnPost(ctx context.Context, text string) {
	mints := extract.Mints(text)
	if len(mints) == 0 {
		return
	}
	log.Printf("Post contained %d mint candidate(s)", len(mints))

	for _, mint := range mints {
		s.tryAcquire(ctx, mint)
	}
}

func (s *Sniper) tryAcquire(ctx context.Context, mint string) {
	amount, bought := s.acquire(ctx, mint)
	if !bought {
		return
	}
	// Off the buy lock: a slow notification must not delay other candidates.
	s.notifyTrade("🎯 *Sniped*", mint, amount)
}

// acquire runs the gated buy under the buy mutex and reports the amount
// bought, if any.
func (s *Sniper) acquire(ctx context.Context, mint string) (decimal.Decimal, bool) {
	s.buyMu.Lock()
	defer s.buyMu.Unlock()

	if _, held := s.store.Get(mint); held {
		log.Printf("[%s] Skipping: already tracked", mint)
		return decimal.Zero, false
	}

	lctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	liq, err := s.data.LiquidityUSD(lctx, mint)
	cancel()
	if err != nil {
		// Fail closed: an unknown token is an untradeable token.
		log.Printf("[%s] Skipping: liquidity lookup failed: %v", mint, err)
		return decimal.Zero, false
	}
	if liq.LessThan(s.minLiquidity) {
		log.Printf("[%s] Skipping: liquidity $%s below floor $%s", mint, liq.StringFixed(2), s.minLiquidity.StringFixed(2))
		return decimal.Zero, false
	}

	amount := decimal.Min(s.maxPerTrade, s.budget.Remaining())
	if !amount.IsPositive() {
		log.Printf("[%s] Skipping: budget exhausted (spent %s SOL)", mint, s.budget.TotalSpent())
		return decimal.Zero, false
	}
	if !s.budget.Authorize(amount) {
		log.Printf("[%s] Skipping: budget refused %s SOL", mint, amount)
		return decimal.Zero, false
	}

	if err := s.exec.Buy(ctx, mint, amount); err != nil {
		// No commit, no position: a failed buy leaves zero state behind.
		log.Printf("ERROR: [%s] Buy of %s SOL failed: %v", mint, amount, err)
		return decimal.Zero, false
	}

	s.budget.Commit(amount)
	if err := s.store.SetTotalSpent(s.budget.TotalSpent()); err != nil {
		log.Printf("CRITICAL: [%s] Failed to persist spend total: %v", mint, err)
	}
	if err := s.store.Create(mint, amount); err != nil {
		log.Printf("CRITICAL: [%s] Failed to persist position: %v", mint, err)
	}

	log.Printf("[%s] Bought for %s SOL (liquidity $%s)", mint, amount, liq.StringFixed(0))
	return amount, true
}

// notifyTrade sends a best-effort Telegram message with an approximate
// USD figure from the SOL reference price.
func (s *Sniper) notifyTrade(title, mint string, amountSOL decimal.Decimal) {
	msg := fmt.Sprintf("%s `%s`\nAmount: %s SOL", title, mint, amountSOL)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	if solUSD, err := s.data.SolPriceUSD(ctx); err == nil && solUSD.IsPositive() {
		msg += fmt.Sprintf(" (~$%s)", amountSOL.Mul(solUSD).StringFixed(2))
	}

	telegram.Notify(msg)
}

// isInsufficient reports whether a sell failed for lack of holdings.
func isInsufficient(err error) bool {
	return errors.Is(err, trader.ErrInsufficientBalance)
}
