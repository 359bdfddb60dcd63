package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// Provider implements DataProvider with DexScreener pair data for
// liquidity and pricing, and Solana JSON-RPC for wallet holdings.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	rpcClient  *rpc.Client
	owner      solana.PublicKey
}

// NewProvider builds a Provider. baseURL is overridable for tests;
// rpcClient may be nil when only the HTTP-backed lookups are exercised.
func NewProvider(baseURL string, timeout time.Duration, rpcClient *rpc.Client, owner solana.PublicKey) *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		rpcClient:  rpcClient,
		owner:      owner,
	}
}

type dexPair struct {
	ChainID     string `json:"chainId"`
	PriceNative string `json:"priceNative"`
	PriceUsd    string `json:"priceUsd"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	QuoteToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"quoteToken"`
}

type tokensResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// bestPair fetches the token's pairs and returns the Solana pair with the
// deepest USD liquidity. Anything else — no pairs, wrong chain, HTTP
// failure — comes back as an error for the caller to treat as a skip.
func (p *Provider) bestPair(ctx context.Context, mint string) (dexPair, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", p.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return dexPair{}, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return dexPair{}, fmt.Errorf("dexscreener request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dexPair{}, fmt.Errorf("dexscreener status %s for %s", resp.Status, mint)
	}

	var body tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return dexPair{}, fmt.Errorf("dexscreener decode: %w", err)
	}

	best := dexPair{}
	found := false
	for _, pair := range body.Pairs {
		if pair.ChainID != "solana" {
			continue
		}
		if !found || pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
			found = true
		}
	}
	if !found {
		return dexPair{}, fmt.Errorf("%w: %s", ErrNoMarketData, mint)
	}
	return best, nil
}

func (p *Provider) LiquidityUSD(ctx context.Context, mint string) (decimal.Decimal, error) {
	pair, err := p.bestPair(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(pair.Liquidity.USD), nil
}

// UnitPriceSOL returns the token's price in SOL, taken from the deepest
// pair's priceNative. Pairs not quoted in SOL are converted through the
// USD price and the SOL reference price.
func (p *Provider) UnitPriceSOL(ctx context.Context, mint string) (decimal.Decimal, error) {
	pair, err := p.bestPair(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}

	if pair.QuoteToken.Address == WSOLMint || pair.QuoteToken.Symbol == "SOL" {
		price, err := decimal.NewFromString(pair.PriceNative)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad priceNative %q for %s", pair.PriceNative, mint)
		}
		return price, nil
	}

	priceUSD, err := decimal.NewFromString(pair.PriceUsd)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad priceUsd %q for %s", pair.PriceUsd, mint)
	}
	solUSD, err := p.SolPriceUSD(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if solUSD.IsZero() {
		return decimal.Zero, fmt.Errorf("zero SOL reference price")
	}
	return priceUSD.Div(solUSD), nil
}

// SolPriceUSD prices wrapped SOL itself, used as the USD reference.
func (p *Provider) SolPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	pair, err := p.bestPair(ctx, WSOLMint)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(pair.PriceUsd)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad SOL priceUsd %q", pair.PriceUsd)
	}
	return price, nil
}

// TokenBalance reads the wallet's associated token account for the mint.
// A missing account means the wallet simply holds none of the token.
func (p *Provider) TokenBalance(ctx context.Context, mint string) (decimal.Decimal, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad mint %s: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(p.owner, mintKey)
	if err != nil {
		return decimal.Zero, err
	}

	res, err := p.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("token balance rpc: %w", err)
	}
	if res == nil || res.Value == nil {
		return decimal.Zero, nil
	}

	qty, err := decimal.NewFromString(res.Value.UiAmountString)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad balance %q for %s", res.Value.UiAmountString, mint)
	}
	return qty, nil
}
