package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// WSOLMint is the wrapped-SOL mint, the quote side of every pair we price.
const WSOLMint = "So11111111111111111111111111111111111111112"

// ErrNoMarketData is returned when a token has no usable Solana pair.
var ErrNoMarketData = errors.New("no market data for token")

// DataProvider is the valuation interface the sniper core depends on.
// Implementations must convert loose API responses into strict values and
// return an error on anything missing or malformed — the core treats every
// error as "skip this token for now" (fail-closed).
type DataProvider interface {
	// LiquidityUSD returns the USD liquidity of the token's deepest pool.
	LiquidityUSD(ctx context.Context, mint string) (decimal.Decimal, error)
	// UnitPriceSOL returns the token price denominated in SOL.
	UnitPriceSOL(ctx context.Context, mint string) (decimal.Decimal, error)
	// TokenBalance returns the wallet's holdings of the token (UI units).
	TokenBalance(ctx context.Context, mint string) (decimal.Decimal, error)
	// SolPriceUSD returns the USD reference price of SOL itself.
	SolPriceUSD(ctx context.Context) (decimal.Decimal, error)
}
