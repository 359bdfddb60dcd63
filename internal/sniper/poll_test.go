package sniper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mint_sniper/internal/models"

	"github.com/shopspring/decimal"
)

func seedPosition(t *testing.T, s *Sniper, mint, investment string) {
	t.Helper()
	if err := s.store.Create(mint, dec(investment)); err != nil {
		t.Fatalf("seed position failed: %v", err)
	}
}

func TestPoll_InitialRecoveryAt120Percent(t *testing.T) {
	// 22 tokens at 0.1 SOL = 2.2 SOL on a 1.0 SOL stake: +120%.
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22")}, price: dec("0.1"), solUSD: dec("150")}
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	if len(fe.sells) != 1 {
		t.Fatalf("Expected exactly one sell, got %v", fe.sells)
	}
	if !fe.sells[0].amount.Equal(dec("1.0")) {
		t.Errorf("Expected initial recovery to sell 1.0 SOL, got %s", fe.sells[0].amount)
	}
	pos, _ := store.Get(mintA)
	if !pos.Fired(models.TierInitialRecovered) {
		t.Error("Expected initial_recovered marked")
	}
	if pos.Fired(models.TierProfit25A) {
		t.Error("Tier above threshold must not fire at 120%")
	}

	// A second pass at the same valuation must not re-fire the tier.
	s.Poll(context.Background())
	if len(fe.sells) != 1 {
		t.Errorf("Tier fired twice: %v", fe.sells)
	}
}

func TestPoll_MultipleTiersShareOneSnapshot(t *testing.T) {
	// 36 tokens at 0.1 SOL = 3.6 SOL on 1.0: +260% -> three tiers fire.
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("36")}, price: dec("0.1"), solUSD: dec("150")}
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	// initial 1.0, then 0.25*(3.6-1.0)=0.65 twice, all from the same snapshot.
	want := []string{"1.0", "0.65", "0.65"}
	if len(fe.sells) != len(want) {
		t.Fatalf("Expected %d sells, got %v", len(want), fe.sells)
	}
	for i, w := range want {
		if !fe.sells[i].amount.Equal(dec(w)) {
			t.Errorf("sell %d: expected %s, got %s", i, w, fe.sells[i].amount)
		}
	}

	pos, _ := store.Get(mintA)
	for _, tier := range []models.Tier{models.TierInitialRecovered, models.TierProfit25A, models.TierProfit25B} {
		if !pos.Fired(tier) {
			t.Errorf("Expected %s marked", tier)
		}
	}
	if pos.Fired(models.TierProfit25C) || pos.Fired(models.TierProfit50Final) {
		t.Error("Tiers above 260% must not fire")
	}
}

func TestPoll_AllTiersAt620Percent(t *testing.T) {
	// 72 tokens at 0.1 = 7.2 SOL on 1.0: +620%, the full ladder fires.
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("72")}, price: dec("0.1"), solUSD: dec("150")}
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	want := []string{"1.0", "1.55", "1.55", "1.55", "3.1"}
	if len(fe.sells) != len(want) {
		t.Fatalf("Expected %d sells, got %v", len(want), fe.sells)
	}
	for i, w := range want {
		if !fe.sells[i].amount.Equal(dec(w)) {
			t.Errorf("sell %d: expected %s, got %s", i, w, fe.sells[i].amount)
		}
	}
	pos, _ := store.Get(mintA)
	if !pos.Completed() {
		t.Error("Expected position completed after full ladder")
	}
}

func TestPoll_FailedSellRetriesNextPass(t *testing.T) {
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22")}, price: dec("0.1"), solUSD: dec("150")}
	fe := &fakeExec{sellErr: errors.New("blockhash expired")}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	pos, _ := store.Get(mintA)
	if pos.Fired(models.TierInitialRecovered) {
		t.Fatal("Tier must stay unset after a failed sell")
	}

	// Next pass, the trade goes through and the tier fires.
	fe.sellErr = nil
	s.Poll(context.Background())

	pos, _ = store.Get(mintA)
	if !pos.Fired(models.TierInitialRecovered) {
		t.Error("Expected tier to fire on the retry pass")
	}
	if len(fe.sells) != 1 || !fe.sells[0].amount.Equal(dec("1.0")) {
		t.Errorf("Expected one sell of 1.0 after retry, got %v", fe.sells)
	}
}

func TestPoll_ZeroPriceBlocksSells(t *testing.T) {
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22")}, price: decimal.Zero, solUSD: dec("150")}
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	if len(fe.sells) != 0 {
		t.Errorf("Expected zero price to block sells, got %v", fe.sells)
	}
	pos, _ := store.Get(mintA)
	if pos.Fired(models.TierInitialRecovered) {
		t.Error("No tier may fire on a zero price")
	}
}

func TestPoll_ValuationErrorSkipsPosition(t *testing.T) {
	fd := &fakeData{balErr: errors.New("rpc timeout"), price: dec("0.1")}
	fe := &fakeExec{}
	s, _, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	if len(fe.sells) != 0 {
		t.Errorf("Expected valuation failure to skip the position, got %v", fe.sells)
	}
}

func TestPoll_ClampsInsufficientHoldings(t *testing.T) {
	// Valuation sees 22 tokens (2.2 SOL, +120%), but the wallet can only
	// cover 8 tokens by the time the sell lands: clamp 1.0 -> 0.8.
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22"), dec("8")}, price: dec("0.1"), solUSD: dec("150")}
	fe := &fakeExec{insufficientOnce: true}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")

	s.Poll(context.Background())

	if len(fe.sells) != 1 {
		t.Fatalf("Expected one clamped sell, got %v", fe.sells)
	}
	if !fe.sells[0].amount.Equal(dec("0.8")) {
		t.Errorf("Expected clamped amount 0.8, got %s", fe.sells[0].amount)
	}
	pos, _ := store.Get(mintA)
	if !pos.Fired(models.TierInitialRecovered) {
		t.Error("Expected tier marked after clamped sell confirmed")
	}
}

func TestPoll_SkipsCompletedPositions(t *testing.T) {
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22")}, price: dec("0.1")}
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")
	for _, tier := range models.AllTiers {
		if _, err := store.MarkTier(mintA, tier); err != nil {
			t.Fatal(err)
		}
	}

	s.Poll(context.Background())

	if fd.balanceCalls != 0 {
		t.Errorf("Expected completed position to skip valuation, got %d calls", fd.balanceCalls)
	}
}

func TestPoll_ZeroInvestmentGuard(t *testing.T) {
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22")}, price: dec("0.1")}
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, fe, "10", "0.05", "0")
	if err := store.Create(mintA, decimal.Zero); err != nil {
		t.Fatal(err)
	}

	// Must not divide by zero or sell anything.
	s.Poll(context.Background())

	if len(fe.sells) != 0 {
		t.Errorf("Expected zero-investment position skipped, got %v", fe.sells)
	}
}

// shutdownExec cancels the given context from inside the first sell,
// simulating a shutdown signal arriving mid-pass.
type shutdownExec struct {
	*fakeExec
	cancel context.CancelFunc
	once   sync.Once
}

func (s *shutdownExec) Sell(ctx context.Context, mint string, amount decimal.Decimal) error {
	s.once.Do(s.cancel)
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeExec.Sell(ctx, mint, amount)
}

func TestPoll_ShutdownSignalDoesNotAbortPass(t *testing.T) {
	// Both positions sit at +120%. The shutdown signal lands during the
	// first sell; the sell must keep its context and the pass must still
	// reach the second position, or a confirmed trade would be re-sold
	// after restart.
	fd := &fakeData{balanceSeq: []decimal.Decimal{dec("22")}, price: dec("0.1"), solUSD: dec("150")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fe := &fakeExec{}
	s, store, _ := newTestSniper(t, fd, &shutdownExec{fakeExec: fe, cancel: cancel}, "10", "0.05", "0")
	seedPosition(t, s, mintA, "1.0")
	seedPosition(t, s, mintB, "1.0")

	s.Poll(ctx)

	if len(fe.sells) != 2 {
		t.Fatalf("Expected both positions handled despite shutdown, got %v", fe.sells)
	}
	for _, m := range []string{mintA, mintB} {
		pos, _ := store.Get(m)
		if !pos.Fired(models.TierInitialRecovered) {
			t.Errorf("[%s] Expected tier marked across mid-pass shutdown", m)
		}
	}
}
