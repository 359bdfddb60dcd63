// Package trader executes swaps. From the caller's point of view a trade
// is one atomic operation: quote, build, sign, submit, confirm.
package trader

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance signals that the wallet does not hold enough of
// the token to cover the requested sell. The caller clamps and retries
// with what is actually available.
var ErrInsufficientBalance = errors.New("insufficient token balance for sell")

// Executor performs swaps denominated in SOL.
type Executor interface {
	// Buy swaps amountSOL of SOL into the token.
	Buy(ctx context.Context, mint string, amountSOL decimal.Decimal) error
	// Sell swaps enough of the token to receive amountSOL of SOL.
	Sell(ctx context.Context, mint string, amountSOL decimal.Decimal) error
}
