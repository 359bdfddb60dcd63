package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier identifies one of the staged profit-taking sell actions.
// The values are persisted in the state file, so they must stay stable.
type Tier string

const (
	TierInitialRecovered Tier = "initial_recovered"
	TierProfit25A        Tier = "profit_25_a"
	TierProfit25B        Tier = "profit_25_b"
	TierProfit25C        Tier = "profit_25_c"
	TierProfit50Final    Tier = "profit_50_final"
)

// AllTiers lists every tier in firing order (ascending profit threshold).
var AllTiers = []Tier{
	TierInitialRecovered,
	TierProfit25A,
	TierProfit25B,
	TierProfit25C,
	TierProfit50Final,
}

// Position represents one tracked token acquisition.
type Position struct {
	Mint              string          `json:"mint"`               // Token mint address (base58)
	InitialInvestment decimal.Decimal `json:"initial_investment"` // SOL committed at buy time, immutable
	TiersFired        map[Tier]bool   `json:"tiers_fired"`        // Profit tiers that already sold
	OpenedAt          time.Time       `json:"opened_at"`          // When the buy confirmed
}

// Fired reports whether the given tier has already sold for this position.
func (p *Position) Fired(t Tier) bool {
	return p.TiersFired[t]
}

// Completed reports whether every tier has fired. Completed positions stay
// in the state file but the poll loop skips them.
func (p *Position) Completed() bool {
	for _, t := range AllTiers {
		if !p.TiersFired[t] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can read a position outside the
// store lock without racing the poll loop.
func (p *Position) Clone() Position {
	c := *p
	c.TiersFired = make(map[Tier]bool, len(p.TiersFired))
	for t, v := range p.TiersFired {
		c.TiersFired[t] = v
	}
	return c
}

// BotState is the durable union of the spend ledger and the position set.
// This struct matches the structure of the JSON state file exactly.
type BotState struct {
	Version    string               `json:"version"`     // Schema version for migrations
	TotalSpent decimal.Decimal      `json:"total_spent"` // Cumulative SOL across confirmed buys
	Positions  map[string]*Position `json:"positions"`   // Keyed by mint address
}
