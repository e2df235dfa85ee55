package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/api"
	"oanda-trading-bot/internal/bot"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/cache"
	"oanda-trading-bot/internal/circuit"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/execution"
	"oanda-trading-bot/internal/gate"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/logging"
	"oanda-trading-bot/internal/monitor"
	"oanda-trading-bot/internal/notification"
	"oanda-trading-bot/internal/planner"
	"oanda-trading-bot/internal/risk"
	"oanda-trading-bot/internal/scanner"
	"oanda-trading-bot/internal/sentiment"
	"oanda-trading-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx := context.Background()
	eventBus := events.NewEventBus()

	client := brokerClient(ctx, cfg, logger)

	// Dedup cache: Redis when configured, in-memory otherwise.
	var dedup cache.DedupCache
	if cfg.RedisConfig.Enabled {
		redisCache, err := cache.NewRedisDedupCache(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory dedup: %v", err)
			dedup = cache.NewMemoryDedupCache()
		} else {
			logger.Info("Redis dedup cache connected at %s", cfg.RedisConfig.Address)
			dedup = redisCache
		}
	} else {
		dedup = cache.NewMemoryDedupCache()
	}
	defer dedup.Close()

	// Trade history store is optional; everything degrades without it.
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(cfg.DatabaseConfig.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		repo = database.NewRepository(db)
		logger.Info("Trade history persistence enabled")
	} else {
		logger.Warn("Database disabled, trade history and circuit-breaker lookback are off")
	}

	led, err := ledger.Load(cfg.LedgerConfig.File)
	if err != nil {
		log.Fatalf("Failed to load trade ledger: %v", err)
	}
	logger.Info("Trade ledger loaded: %d open positions", led.Size())

	registry, err := gate.LoadRegistry(cfg.GateConfig.RegistryFile)
	if err != nil {
		log.Fatalf("Failed to load idea registry: %v", err)
	}

	admissionGate := gate.New(cfg.GateConfig, registry)
	oppScanner := scanner.NewScanner(cfg.ScannerConfig, cfg.RiskConfig.CorrelationGroups, client, eventBus)
	tradePlanner := planner.New(cfg.PlannerConfig, client)
	riskManager := risk.NewManager(cfg.RiskConfig)
	breaker := circuit.NewBreaker(cfg.CircuitBreakerConfig, eventBus)

	var analyzer *sentiment.Analyzer
	if cfg.SentimentConfig.Enabled {
		analyzer = sentiment.NewAnalyzer(cfg.SentimentConfig)
		logger.Info("Sentiment analysis enabled")
	}

	ideaLookback := time.Duration(cfg.GateConfig.FreshnessLookbackDays) * 24 * time.Hour
	executor := execution.NewExecutor(cfg.ExecutionConfig, client, led, registry, repoOrNil(repo), eventBus, ideaLookback)

	tracker := monitor.NewTracker(nil)
	monitors := monitor.NewManager(cfg.MonitorConfig, client, led, eventBus, tracker, closerOrNil(repo))

	var notifier *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifier = notification.NewManager(cfg.NotificationConfig, dedup)
		logger.Info("Notifications enabled")
	}

	tradingBot := bot.New(cfg, bot.Deps{
		Client:    client,
		Scanner:   oppScanner,
		Gate:      admissionGate,
		Planner:   tradePlanner,
		Risk:      riskManager,
		Sentiment: analyzer,
		Breaker:   breaker,
		Executor:  executor,
		Monitors:  monitors,
		Ledger:    led,
		Dedup:     dedup,
		Notifier:  notifier,
		Repo:      repo,
		Bus:       eventBus,
	})

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(cfg.ServerConfig, tradingBot, repo, eventBus)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("API server failed: %v", err)
			}
		}()
	}

	tradingBot.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received %s, shutting down", sig)

	tradingBot.Stop()
	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Warn("API shutdown: %v", err)
		}
	}
	logger.Info("Shutdown complete")
}

// brokerClient resolves credentials (Vault first, config fallback) and
// returns the live client, or the mock when mock mode is on.
func brokerClient(ctx context.Context, cfg *config.Config, logger *logging.Logger) broker.Client {
	if cfg.OandaConfig.MockMode {
		logger.Warn("Mock broker mode: no real orders will be placed")
		return broker.NewMockClient()
	}

	apiKey := cfg.OandaConfig.APIKey
	accountID := cfg.OandaConfig.AccountID
	if cfg.VaultConfig.Enabled {
		vc, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Vault: %v", err)
		}
		creds, err := vc.GetCredentials(ctx, cfg.OandaConfig.Environment)
		if err != nil {
			log.Fatalf("Failed to read broker credentials from Vault: %v", err)
		}
		apiKey = creds.APIKey
		accountID = creds.AccountID
		logger.Info("Broker credentials loaded from Vault")
	}
	if apiKey == "" || accountID == "" {
		log.Fatalf("No broker credentials: set oanda.api_key/account_id or enable Vault")
	}
	return broker.NewOandaClient(cfg.OandaConfig.BaseURL, apiKey, accountID)
}

// repoOrNil avoids a typed-nil interface when persistence is disabled.
func repoOrNil(repo *database.Repository) execution.TradePersister {
	if repo == nil {
		return nil
	}
	return repo
}

func closerOrNil(repo *database.Repository) monitor.TradeCloser {
	if repo == nil {
		return nil
	}
	return repo
}
