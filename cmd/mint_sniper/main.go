package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mint_sniper/internal/config"
	"mint_sniper/internal/ledger"
	"mint_sniper/internal/logger"
	"mint_sniper/internal/market"
	"mint_sniper/internal/positions"
	"mint_sniper/internal/sniper"
	"mint_sniper/internal/telegram"
	"mint_sniper/internal/trader"
	"mint_sniper/internal/twitter"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

const LogFile = "sniper.log"
const VersionFile = "version.latest"

func main() {
	cfg := config.Load()
	cfg.Version = readVersion()

	logger.Setup(LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	// Everything below that can fail, fails before any trade is possible.
	wallet, err := solana.PrivateKeyFromBase58(cfg.WalletPrivateKey)
	if err != nil {
		log.Fatalf("CRITICAL: Invalid WALLET_PRIVATE_KEY: %v", err)
	}

	store, err := positions.Open(cfg.StateFile)
	if err != nil {
		// Trading on an unknown budget is worse than not starting.
		log.Fatalf("CRITICAL: Could not load state file: %v", err)
	}
	budget := ledger.New(
		decimal.NewFromFloat(cfg.MaxTotalSOL),
		decimal.NewFromFloat(cfg.ReserveSOL),
		store.TotalSpent(),
	)

	rpcClient := rpc.New(cfg.RPCURL)
	provider := market.NewProvider(cfg.DexScreenerBaseURL, cfg.RequestTimeout, rpcClient, wallet.PublicKey())
	executor := trader.NewJupiter(cfg.JupiterBaseURL, cfg.RequestTimeout, rpcClient, wallet, cfg.SlippageBps)

	bot := sniper.New(cfg, provider, executor, budget, store, sniper.DefaultTierRules)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := twitter.NewClient(cfg.TwitterBaseURL, cfg.BearerToken, cfg.RequestTimeout)
	if err := stream.SyncRules(ctx, cfg.TrackedAccounts); err != nil {
		log.Fatalf("CRITICAL: Could not install stream rules: %v", err)
	}
	go stream.Listen(ctx, func(text string) {
		bot.OnPost(ctx, text)
	})

	// Graceful shutdown on SIGINT/SIGTERM: the loops stop between passes,
	// never mid-position.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("⚠️ Sniper Shutting Down: System signal received.")
		cancel()
	}()

	log.Printf("Mint Sniper %s Initialized", cfg.Version)
	log.Printf("Tracking %d account(s) | Budget: %.2f SOL (reserve %.2f) | Poll: %s",
		len(cfg.TrackedAccounts), cfg.MaxTotalSOL, cfg.ReserveSOL, cfg.PollInterval)
	log.Printf("Spend carried over from previous runs: %s SOL", budget.TotalSpent())

	bot.Poll(ctx) // Run one pass immediately on start

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Main loop stopping...")
			if err := store.Flush(); err != nil {
				log.Printf("CRITICAL: Failed to flush state on shutdown: %v", err)
			}
			telegram.Notify("🛑 Mint Sniper stopped")
			log.Println("Sniper shutdown complete")
			return
		case <-ticker.C:
			bot.Poll(ctx)
		}
	}
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return string(version)
}
