// Package ledger tracks cumulative SOL spend against the hard budget cap.
// It is the only hard safety bound in the system: no buy may be submitted
// unless Authorize approved it, and Commit must only be called after the
// trade confirmed.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Budget is the process-wide spend ledger. All methods are safe for
// concurrent use; total spend only ever grows.
type Budget struct {
	mu         sync.Mutex
	totalSpent decimal.Decimal
	cap        decimal.Decimal
	reserve    decimal.Decimal // withheld from the cap to cover fees
}

// New creates a Budget seeded with the spend total recovered from the
// state file (zero on a fresh start).
func New(cap, reserve, alreadySpent decimal.Decimal) *Budget {
	return &Budget{
		totalSpent: alreadySpent,
		cap:        cap,
		reserve:    reserve,
	}
}

// Authorize reports whether a buy of the given size fits the budget:
// total_spent + amount <= cap - reserve.
//
// Authorization is advisory, not a reservation. Callers must serialize
// their authorize→trade→commit sections (the sniper holds its buy mutex
// for the whole section) so two buys can never pass Authorize against the
// same stale total.
func (b *Budget) Authorize(amount decimal.Decimal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !amount.IsPositive() {
		return false
	}
	return b.totalSpent.Add(amount).LessThanOrEqual(b.cap.Sub(b.reserve))
}

// Commit records a confirmed buy. Never call this for a failed trade:
// that would credit spend that never left the wallet.
func (b *Budget) Commit(amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSpent = b.totalSpent.Add(amount)
}

// TotalSpent returns the cumulative confirmed spend.
func (b *Budget) TotalSpent() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSpent
}

// Remaining returns how much may still be spent: cap - reserve - spent.
// May be negative if the configured cap was lowered between runs.
func (b *Budget) Remaining() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cap.Sub(b.reserve).Sub(b.totalSpent)
}
