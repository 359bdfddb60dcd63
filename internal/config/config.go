package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter. All values are fixed at startup;
// nothing here is reloadable.
type Config struct {
	// Stream
	TrackedAccounts []string // Twitter handles whose posts we act on
	BearerToken     string
	TwitterBaseURL  string

	// Wallet / chain
	WalletPrivateKey string // base58 secret key
	RPCURL           string

	// External APIs
	DexScreenerBaseURL string
	JupiterBaseURL     string
	SlippageBps        int

	// Budget (all SOL)
	MaxPerTradeSOL  float64
	MaxTotalSOL     float64
	ReserveSOL      float64
	MinLiquidityUSD float64

	// Scheduling
	PollInterval   time.Duration
	RequestTimeout time.Duration

	// Persistence / logging
	StateFile     string
	MaxLogSizeMB  int64
	MaxLogBackups int

	Version string
}

// Load initializes the configuration.
// It tries to read a .env file and checks for necessary environment variables.
// Missing required secrets are fatal: the bot must not start half-configured.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	required := []string{
		"TWITTER_BEARER_TOKEN",
		"TRACKED_ACCOUNTS",
		"WALLET_PRIVATE_KEY",
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	cfg := &Config{
		TrackedAccounts:    splitAccounts(os.Getenv("TRACKED_ACCOUNTS")),
		BearerToken:        os.Getenv("TWITTER_BEARER_TOKEN"),
		TwitterBaseURL:     getEnvAsString("TWITTER_BASE_URL", "https://api.twitter.com"),
		WalletPrivateKey:   os.Getenv("WALLET_PRIVATE_KEY"),
		RPCURL:             getEnvAsString("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		DexScreenerBaseURL: getEnvAsString("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
		JupiterBaseURL:     getEnvAsString("JUPITER_BASE_URL", "https://quote-api.jup.ag"),
		SlippageBps:        getEnvAsInt("SLIPPAGE_BPS", 300),
		MaxPerTradeSOL:     getEnvAsFloat64("MAX_PER_TRADE_SOL", 0.1),
		MaxTotalSOL:        getEnvAsFloat64("MAX_TOTAL_SOL", 1.0),
		ReserveSOL:         getEnvAsFloat64("RESERVE_SOL", 0.05),
		MinLiquidityUSD:    getEnvAsFloat64("MIN_LIQUIDITY_USD", 100),
		PollInterval:       time.Duration(getEnvAsInt("POLL_INTERVAL_SECS", 60)) * time.Second,
		RequestTimeout:     time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECS", 5)) * time.Second,
		StateFile:          getEnvAsString("STATE_FILE", "sniper_state.json"),
		MaxLogSizeMB:       int64(getEnvAsInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups:      getEnvAsInt("MAX_LOG_BACKUPS", 3),
	}

	validate(cfg)
	return cfg
}

func splitAccounts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		handle := strings.TrimPrefix(strings.TrimSpace(part), "@")
		if handle != "" {
			out = append(out, handle)
		}
	}
	return out
}

func validate(cfg *Config) {
	if len(cfg.TrackedAccounts) == 0 {
		log.Fatalf("CRITICAL: TRACKED_ACCOUNTS contains no usable handles")
	}
	if cfg.MaxPerTradeSOL <= 0 {
		log.Fatalf("CRITICAL: MAX_PER_TRADE_SOL must be > 0")
	}
	if cfg.MaxTotalSOL <= 0 {
		log.Fatalf("CRITICAL: MAX_TOTAL_SOL must be > 0")
	}
	if cfg.ReserveSOL < 0 {
		log.Fatalf("CRITICAL: RESERVE_SOL must be >= 0")
	}
	if cfg.ReserveSOL >= cfg.MaxTotalSOL {
		log.Fatalf("CRITICAL: RESERVE_SOL leaves no spendable budget")
	}
	if cfg.PollInterval <= 0 {
		log.Fatalf("CRITICAL: POLL_INTERVAL_SECS must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		log.Fatalf("CRITICAL: REQUEST_TIMEOUT_SECS must be > 0")
	}
	if cfg.SlippageBps <= 0 || cfg.SlippageBps > 10_000 {
		log.Fatalf("CRITICAL: SLIPPAGE_BPS must be in (0, 10000]")
	}
}
