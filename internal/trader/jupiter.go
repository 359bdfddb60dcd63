package trader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mint_sniper/internal/market"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

const confirmTimeout = 45 * time.Second

// Jupiter executes swaps through the Jupiter v6 aggregator API and
// submits the signed transactions over Solana JSON-RPC.
type Jupiter struct {
	httpClient  *http.Client
	baseURL     string
	rpcClient   *rpc.Client
	wallet      solana.PrivateKey
	slippageBps int
}

func NewJupiter(baseURL string, timeout time.Duration, rpcClient *rpc.Client, wallet solana.PrivateKey, slippageBps int) *Jupiter {
	return &Jupiter{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rpcClient:   rpcClient,
		wallet:      wallet,
		slippageBps: slippageBps,
	}
}

// Buy swaps exactly amountSOL of SOL into mint.
func (j *Jupiter) Buy(ctx context.Context, mint string, amountSOL decimal.Decimal) error {
	quote, err := j.quote(ctx, market.WSOLMint, mint, lamports(amountSOL), "ExactIn")
	if err != nil {
		return err
	}
	return j.swapAndConfirm(ctx, quote)
}

// Sell swaps enough of mint to receive amountSOL of SOL (ExactOut). The
// quoted input amount is checked against the wallet's actual balance
// first so a short position surfaces as ErrInsufficientBalance instead of
// a failed transaction.
func (j *Jupiter) Sell(ctx context.Context, mint string, amountSOL decimal.Decimal) error {
	quote, err := j.quote(ctx, mint, market.WSOLMint, lamports(amountSOL), "ExactOut")
	if err != nil {
		return err
	}

	needed, ok := new(big.Int).SetString(quote.InAmount, 10)
	if !ok {
		return fmt.Errorf("bad quote inAmount %q", quote.InAmount)
	}
	held, err := j.rawBalance(ctx, mint)
	if err != nil {
		return err
	}
	if held.Cmp(needed) < 0 {
		return fmt.Errorf("%w: need %s, hold %s", ErrInsufficientBalance, needed, held)
	}

	return j.swapAndConfirm(ctx, quote)
}

type quoteResult struct {
	Raw      json.RawMessage
	InAmount string
}

func (j *Jupiter) quote(ctx context.Context, inputMint, outputMint string, amount uint64, swapMode string) (quoteResult, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", fmt.Sprintf("%d", amount))
	params.Set("slippageBps", fmt.Sprintf("%d", j.slippageBps))
	params.Set("swapMode", swapMode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/v6/quote?"+params.Encode(), nil)
	if err != nil {
		return quoteResult{}, err
	}
	resp, err := j.httpClient.Do(req)
	if err != nil {
		return quoteResult{}, fmt.Errorf("jupiter quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return quoteResult{}, fmt.Errorf("jupiter quote read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return quoteResult{}, fmt.Errorf("jupiter quote status %s: %s", resp.Status, truncate(body))
	}

	var parsed struct {
		InAmount string `json:"inAmount"`
		ErrorMsg string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return quoteResult{}, fmt.Errorf("jupiter quote decode: %w", err)
	}
	if parsed.ErrorMsg != "" {
		return quoteResult{}, fmt.Errorf("jupiter quote: %s", parsed.ErrorMsg)
	}
	if parsed.InAmount == "" {
		return quoteResult{}, fmt.Errorf("jupiter quote missing inAmount")
	}
	return quoteResult{Raw: body, InAmount: parsed.InAmount}, nil
}

// swapAndConfirm asks Jupiter to build the swap transaction around the
// quote, signs it locally, submits it, and waits for confirmation.
func (j *Jupiter) swapAndConfirm(ctx context.Context, quote quoteResult) error {
	payload, err := json.Marshal(map[string]interface{}{
		"quoteResponse":    quote.Raw,
		"userPublicKey":    j.wallet.PublicKey().String(),
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/v6/swap", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jupiter swap: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("jupiter swap read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jupiter swap status %s: %s", resp.Status, truncate(body))
	}

	var swap struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &swap); err != nil {
		return fmt.Errorf("jupiter swap decode: %w", err)
	}
	if swap.SwapTransaction == "" {
		return fmt.Errorf("jupiter swap missing transaction")
	}

	rawTx, err := base64.StdEncoding.DecodeString(swap.SwapTransaction)
	if err != nil {
		return fmt.Errorf("swap transaction base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return fmt.Errorf("swap transaction decode: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(j.wallet.PublicKey()) {
			return &j.wallet
		}
		return nil
	}); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := j.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}
	log.Printf("Submitted swap %s", sig)

	return j.awaitConfirmation(ctx, sig)
}

// awaitConfirmation polls signature status until the transaction lands or
// the confirmation window expires. The window is wider than the per-call
// request timeout: a submitted transaction deserves time to settle.
func (j *Jupiter) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation timeout for %s: %w", sig, ctx.Err())
		case <-ticker.C:
			out, err := j.rpcClient.GetSignatureStatuses(ctx, true, sig)
			if err != nil || out == nil || len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

// rawBalance returns the wallet's token holdings in raw (non-UI) units.
func (j *Jupiter) rawBalance(ctx context.Context, mint string) (*big.Int, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("bad mint %s: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(j.wallet.PublicKey(), mintKey)
	if err != nil {
		return nil, err
	}
	res, err := j.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("token balance rpc: %w", err)
	}
	if res == nil || res.Value == nil {
		return big.NewInt(0), nil
	}
	held, ok := new(big.Int).SetString(res.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("bad raw balance %q for %s", res.Value.Amount, mint)
	}
	return held, nil
}

func lamports(amountSOL decimal.Decimal) uint64 {
	return uint64(amountSOL.Mul(decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))).IntPart())
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
