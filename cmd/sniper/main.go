// Command sniper runs the token sniping engine: discovery of new listings,
// entry under a position cap and automated exit monitoring.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-sniper/internal/config"
	"solana-sniper/internal/discovery"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/execution"
	"solana-sniper/internal/logging"
	"solana-sniper/internal/marketdata"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/position"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage/file"
	"solana-sniper/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sniper: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	metrics := observability.NewMetrics("")
	log.Infow("starting sniper",
		"wallet", cfg.WalletPublicKey,
		"maxPositions", cfg.MaxActivePositions,
		"investment", cfg.DefaultInvestment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)

	aggregator := marketdata.New(marketdata.Options{
		Providers:        buildProviders(cfg, rpc),
		RateLimitRetries: cfg.RateLimitRetries,
		Logger:           log,
		Metrics:          metrics,
	})

	executor := execution.NewPaperExecutor(rpc, aggregator, cfg.WalletPublicKey, log)

	manager := position.NewManager(position.Config{
		MaxPositions:      cfg.MaxActivePositions,
		StopLossPct:       cfg.StopLossPct,
		TakeProfitPct:     cfg.TakeProfitPct,
		TakeProfitSellPct: cfg.TakeProfitSellPct,
		SlippageBps:       cfg.SlippageBps,
		MonitorInterval:   cfg.MonitorInterval,
		MaxHold:           cfg.MaxHoldDuration,
		BaseMint:          solana.WSOLMint,
	}, executor, aggregator,
		file.NewPositionStore(filepath.Join(cfg.DataDir, "positions.json")),
		log, metrics)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start position manager: %w", err)
	}

	excluded := []string{solana.WSOLMint, solana.USDCMint}
	waiter := discovery.NewLiquidityWaiter(aggregator, solana.WSOLMint, cfg.MinLiquidity,
		10, cfg.MaxLiquidityWait, excluded, log, metrics)

	onToken := func(ctx context.Context, info *domain.TokenInfo, quote *domain.TokenQuote) {
		if !manager.CanAddPosition() {
			log.Debugw("skipping discovery, position cap reached", "token", info.Address)
			return
		}
		if err := manager.SnipeToken(ctx, info.Address, cfg.DefaultInvestment); err != nil {
			log.Warnw("snipe failed", "token", info.Address, "error", err)
		}
	}

	scanner := discovery.NewScanner(buildFeeds(cfg), aggregator, rpc, waiter,
		file.NewKnownTokenStore(filepath.Join(cfg.DataDir, "known_tokens.json")),
		discovery.ScannerConfig{
			Interval:      cfg.ScanInterval,
			ErrorInterval: cfg.ErrorScanInterval,
			Excluded:      excluded,
			MinAgeHours:   cfg.MinTokenAgeHours,
			MaxAgeHours:   cfg.MaxTokenAgeHours,
			Gates: marketdata.GateConfig{
				MaxLiquidity:        cfg.MaxLiquidity,
				MaxPrice:            cfg.MaxPrice,
				VolumeMultiple:      cfg.VolumeMultiple,
				MaxAgeDays:          cfg.MaxValidAgeDays,
				BlockedNamePatterns: cfg.BlockedNamePatterns,
			},
		}, onToken, log, metrics)

	if err := scanner.StartMonitoring(ctx); err != nil {
		manager.Shutdown(cfg.ShutdownGrace)
		return fmt.Errorf("start discovery: %w", err)
	}

	startEventSupervisor(ctx, cfg, log, metrics)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: observability.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server", "error", err)
		}
	}()
	log.Infow("sniper running", "metrics", cfg.MetricsAddr)

	<-ctx.Done()
	log.Infow("shutting down")

	scanner.StopMonitoring()
	manager.Shutdown(cfg.ShutdownGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Infow("shutdown complete")
	return nil
}

// buildProviders assembles the provider chain in priority order. DexScreener
// leads because it is free and complete; the on-chain reader closes the
// chain as the last resort.
func buildProviders(cfg *config.Config, rpc solana.RPCClient) []marketdata.ProviderSpec {
	queue := cfg.RequestQueueSize
	specs := []marketdata.ProviderSpec{
		{
			Provider:    marketdata.NewDexScreener("", nil),
			MinInterval: 200 * time.Millisecond,
			WindowCap:   300, WindowLen: time.Minute,
			QueueSize: queue,
		},
		{
			Provider:    marketdata.NewJupiter("", "", nil),
			MinInterval: 100 * time.Millisecond,
			WindowCap:   600, WindowLen: time.Minute,
			QueueSize: queue,
		},
	}
	if cfg.BirdeyeAPIKey != "" {
		specs = append(specs, marketdata.ProviderSpec{
			Provider:    marketdata.NewBirdeye("", cfg.BirdeyeAPIKey, nil),
			MinInterval: 150 * time.Millisecond,
			WindowCap:   400, WindowLen: time.Minute,
			QueueSize:   queue,
		})
	}
	specs = append(specs, marketdata.ProviderSpec{
		Provider:    marketdata.NewPoolScan(rpc),
		MinInterval: 100 * time.Millisecond,
		QueueSize:   queue,
	})
	return specs
}

func buildFeeds(cfg *config.Config) []discovery.Feed {
	feeds := []discovery.Feed{discovery.NewDexScreenerFeed("", nil)}
	if cfg.BirdeyeAPIKey != "" {
		feeds = append(feeds, discovery.NewBirdeyeFeed("", cfg.BirdeyeAPIKey, nil))
	}
	return feeds
}

// startEventSupervisor keeps the wallet event subscription alive in the
// background. A failed initial dial degrades to log-only operation; the
// engine itself does not depend on the stream.
func startEventSupervisor(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, metrics *observability.Metrics) {
	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, log)
	if err != nil {
		log.Warnw("websocket unavailable, continuing without account events", "error", err)
		return
	}

	sup := supervisor.New(ws, supervisor.Config{
		Mentions: []string{cfg.WalletPublicKey},
	}, func(ctx context.Context, event solana.LogNotification) {
		log.Debugw("wallet event", "signature", event.Signature, "slot", event.Slot)
	}, log, metrics)

	go func() {
		defer ws.Close()
		if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorw("event supervisor exited", "error", err)
		}
	}()
}
