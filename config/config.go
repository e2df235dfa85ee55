package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	OandaConfig          OandaConfig          `json:"oanda"`
	ScannerConfig        ScannerConfig        `json:"scanner"`
	GateConfig           GateConfig           `json:"gate"`
	PlannerConfig        PlannerConfig        `json:"planner"`
	ExecutionConfig      ExecutionConfig      `json:"execution"`
	MonitorConfig        MonitorConfig        `json:"monitor"`
	LedgerConfig         LedgerConfig         `json:"ledger"`
	CircuitBreakerConfig CircuitBreakerConfig `json:"circuit_breaker"`
	SentimentConfig      SentimentConfig      `json:"sentiment"`
	RiskConfig           RiskConfig           `json:"risk"`
	NotificationConfig   NotificationConfig   `json:"notification"`
	LoggingConfig        LoggingConfig        `json:"logging"`
	ServerConfig         ServerConfig         `json:"server"`
	VaultConfig          VaultConfig          `json:"vault"`
	RedisConfig          RedisConfig          `json:"redis"`
	DatabaseConfig       DatabaseConfig       `json:"database"`
	BotConfig            BotConfig            `json:"bot"`
}

// OandaConfig holds OANDA broker connectivity configuration. Credentials
// may alternatively come from Vault; see VaultConfig.
type OandaConfig struct {
	APIKey      string `json:"api_key"`
	AccountID   string `json:"account_id"`
	BaseURL     string `json:"base_url"`
	Environment string `json:"environment"` // "live" or "practice"
	MockMode    bool   `json:"mock_mode"`   // Use simulated data when the OANDA API is unavailable
}

// ScannerConfig holds opportunity scanner configuration. Instruments is the
// single tradable-instrument list shared by the scanner and the
// execution-time correlation guard.
type ScannerConfig struct {
	Enabled      bool     `json:"enabled"`
	Instruments  []string `json:"instruments"`
	Granularity  string   `json:"granularity"`    // e.g. "H4"
	CandleCount  int      `json:"candle_count"`   // Candles fetched per instrument
	WorkerCount  int      `json:"worker_count"`   // Concurrent analysis workers
	MinRawScore  float64  `json:"min_raw_score"`  // Floor before correlation adjustment
	MinScore     float64  `json:"min_score"`      // Floor after correlation adjustment
	ATRSLMult    float64  `json:"atr_sl_mult"`    // Suggested SL distance in ATR
	ATRTPMult    float64  `json:"atr_tp_mult"`    // Suggested TP distance in ATR
	ScanInterval int      `json:"scan_interval"`  // Seconds between scan cycles
	MaxResults   int      `json:"max_results"`    // Truncate ranked output
}

// GateConfig holds admission gate configuration: idea freshness, cooldown,
// regime hard filters, and order-time guardrails.
type GateConfig struct {
	RegistryFile          string  `json:"registry_file"`
	CooldownHours         float64 `json:"cooldown_hours"`
	CooldownATRMult       float64 `json:"cooldown_atr_mult"`
	CooldownPctMove       float64 `json:"cooldown_pct_move"`
	FreshnessLookbackDays int     `json:"freshness_lookback_days"`
	FreshnessSimilarity   float64 `json:"freshness_similarity"`
	MinADX                float64 `json:"min_adx"`
	ADXRelaxDelta         float64 `json:"adx_relax_delta"`
	MinATRPercent         float64 `json:"min_atr_percent"`
	MaxATRPercent         float64 `json:"max_atr_percent"`
	AllowTrendRelax       bool    `json:"allow_trend_relax"`
	MinRiskReward         float64 `json:"min_risk_reward"`       // Guardrail floor
	LowVolatilityFloor    float64 `json:"low_volatility_floor"`  // ATR% below this blocks
}

// PlannerConfig holds trade planner configuration.
type PlannerConfig struct {
	RiskPerTradeMin float64 `json:"risk_per_trade_min"` // Account fraction, e.g. 0.005
	RiskPerTradeMax float64 `json:"risk_per_trade_max"` // Account fraction, e.g. 0.010
	MinSLPips       float64 `json:"min_sl_pips"`
	TP1RMultiple    float64 `json:"tp1_r_multiple"`
	TP2RMultiple    float64 `json:"tp2_r_multiple"`
	TrailStartR     float64 `json:"trail_start_r"`
	MinTrailPips    float64 `json:"min_trail_pips"`
}

// ExecutionConfig holds order execution configuration.
type ExecutionConfig struct {
	ATRSLMultiplier  float64 `json:"atr_sl_multiplier"`  // SL distance in H4 ATR
	ATRTPMultiplier  float64 `json:"atr_tp_multiplier"`  // TP distance in H4 ATR
	M15ATRFloorMult  float64 `json:"m15_atr_floor_mult"` // SL never tighter than this many M15 ATRs
	MinRRRatio       float64 `json:"min_rr_ratio"`       // TP pushed out to respect this
	SwingLookback    int     `json:"swing_lookback"`     // Bars for swing-based SL widening
	MinPositionSize  int     `json:"min_position_size"`
	MaxPositionSize  int     `json:"max_position_size"`
	FallbackSizePct  float64 `json:"fallback_size_pct"`  // Percent of balance when no risk sizing input
	QuoteSampleDelay int     `json:"quote_sample_delay"` // Seconds between the two entry quote samples
}

// MonitorConfig holds position monitor configuration.
type MonitorConfig struct {
	PollInterval        int     `json:"poll_interval"`          // Seconds between ticks
	MissingPriceBackoff int     `json:"missing_price_backoff"`  // Seconds when a quote is unavailable
	ErrorBackoff        int     `json:"error_backoff"`          // Seconds after a transient broker error
	BreakevenTriggerR   float64 `json:"breakeven_trigger_r"`    // Profit in R that arms breakeven
	PartialCloseRatio   float64 `json:"partial_close_ratio"`    // Fraction of remaining units closed once
	PartialTriggerR     float64 `json:"partial_trigger_r"`      // Profit in R for the partial close
	PartialMinPips      float64 `json:"partial_min_pips"`       // Fixed pip floor for the partial trigger
	PartialMinPipsJPY   float64 `json:"partial_min_pips_jpy"`
	TrailMultNear       float64 `json:"trail_mult_near"`  // ATR trail multiplier while profit < 1.5R
	TrailMultMid        float64 `json:"trail_mult_mid"`   // While profit < 2.5R
	TrailMultFar        float64 `json:"trail_mult_far"`   // Beyond 2.5R
	ShutdownGrace       int     `json:"shutdown_grace"`   // Seconds monitors get to wind down
}

// LedgerConfig holds trade ledger configuration.
type LedgerConfig struct {
	File          string `json:"file"`
	StaleMaxHours int    `json:"stale_max_hours"`
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled             bool    `json:"enabled"`
	StateFile           string  `json:"state_file"`
	MaxDrawdownPercent  float64 `json:"max_drawdown_percent"`
	LossStreakThreshold int     `json:"loss_streak_threshold"`
	RiskReduction       float64 `json:"risk_reduction"`       // Multiplier while tripped
	RecoveryThreshold   float64 `json:"recovery_threshold"`   // Percent recovery to reset
	LookbackDays        int     `json:"lookback_days"`
}

// SentimentConfig holds market sentiment analyzer configuration.
type SentimentConfig struct {
	Enabled        bool    `json:"enabled"`
	APIKey         string  `json:"api_key"` // Twelve Data API key
	BaseURL        string  `json:"base_url"`
	CacheTTL       int     `json:"cache_ttl"` // Seconds
	MaxAdjust      float64 `json:"max_adjust"`
	ProtectedScore float64 `json:"protected_score"` // Scores at or above cap negative adjust at -8
}

// RiskConfig holds execution-time risk checks: correlation groups, spread
// ceilings, session windows. CorrelationGroups centralizes the instrument
// groupings formerly duplicated between the scanner and the trader.
type RiskConfig struct {
	MaxOpenTrades        int                 `json:"max_open_trades"`
	MaxTradesPerSession  int                 `json:"max_trades_per_session"`
	CorrelationGroups    map[string][]string `json:"correlation_groups"`
	MaxCorrelatedPerSide int                 `json:"max_correlated_per_side"`
	MaxSpreadRegular     float64             `json:"max_spread_regular"`
	MaxSpreadJPY         float64             `json:"max_spread_jpy"`
	MaxSpreadMetals      float64             `json:"max_spread_metals"`
	WeekendBlockEnabled  bool                `json:"weekend_block_enabled"`
	VolatilitySpikeMult  float64             `json:"volatility_spike_mult"` // ATR vs rolling average warn ratio
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds HTTP server configuration for the operator API.
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// VaultConfig holds HashiCorp Vault configuration for broker credentials.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for broker credentials
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for the notification dedup cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds Postgres configuration for the trade history store.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// BotConfig holds session orchestrator configuration.
type BotConfig struct {
	SessionInterval    int     `json:"session_interval"`     // Seconds between sessions
	InterTradeDelay    int     `json:"inter_trade_delay"`    // Seconds between consecutive orders
	PreEntryRechecks   int     `json:"pre_entry_rechecks"`
	RecheckSleep       int     `json:"recheck_sleep"`        // Seconds between rechecks
	BaseMinScore       float64 `json:"base_min_score"`       // Normal execution threshold
	FrequencyMinScore  float64 `json:"frequency_min_score"`  // First-trade threshold
	ScalpMinScore      float64 `json:"scalp_min_score"`      // Scalp-mode candidate floor
	ScalpMinSession    float64 `json:"scalp_min_session"`
	ScalpMaxCorrelation float64 `json:"scalp_max_correlation"`
	DryRun             bool    `json:"dry_run"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// DefaultInstruments is the tradable universe scanned every cycle. Kept in
// config so the scanner and the correlation guard read the same list.
var DefaultInstruments = []string{
	"EUR_USD", "GBP_USD", "USD_JPY", "USD_CHF", "AUD_USD", "USD_CAD",
	"NZD_USD", "EUR_JPY", "GBP_JPY", "AUD_JPY", "EUR_GBP", "XAU_USD",
}

// DefaultCorrelationGroups mirrors the historically linked instrument sets
// used to cap aggregate directional exposure.
var DefaultCorrelationGroups = map[string][]string{
	"usd_majors":  {"EURUSD", "GBPUSD", "AUDUSD", "NZDUSD", "USDCAD", "USDCHF"},
	"yen_crosses": {"USDJPY", "EURJPY", "GBPJPY", "AUDJPY", "NZDJPY"},
}

// applyEnvOverrides applies environment variable overrides to the config.
// Note: OANDA credentials may also come from Vault; environment values take
// precedence only when set.
func applyEnvOverrides(cfg *Config) {
	// OANDA config
	cfg.OandaConfig.APIKey = getEnvOrDefault("OANDA_API_KEY", cfg.OandaConfig.APIKey)
	cfg.OandaConfig.AccountID = getEnvOrDefault("OANDA_ACCOUNT_ID", cfg.OandaConfig.AccountID)
	cfg.OandaConfig.BaseURL = getEnvOrDefault("OANDA_BASE_URL", cfg.OandaConfig.BaseURL)
	cfg.OandaConfig.Environment = getEnvOrDefault("OANDA_ENVIRONMENT", cfg.OandaConfig.Environment)
	cfg.OandaConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"

	// Scanner config
	cfg.ScannerConfig.Enabled = getEnvOrDefault("SCANNER_ENABLED", "true") == "true"
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	cfg.ScannerConfig.ScanInterval = getEnvIntOrDefault("SCANNER_INTERVAL", cfg.ScannerConfig.ScanInterval)

	// Gate config
	cfg.GateConfig.CooldownHours = getEnvFloatOrDefault("COOLDOWN_HOURS", cfg.GateConfig.CooldownHours)
	cfg.GateConfig.MinADX = getEnvFloatOrDefault("H4_MIN_ADX", cfg.GateConfig.MinADX)
	cfg.GateConfig.MinATRPercent = getEnvFloatOrDefault("H4_MIN_ATR_PCT", cfg.GateConfig.MinATRPercent)
	cfg.GateConfig.MaxATRPercent = getEnvFloatOrDefault("H4_MAX_ATR_PCT", cfg.GateConfig.MaxATRPercent)
	cfg.GateConfig.AllowTrendRelax = getEnvOrDefault("ALLOW_TREND_RELAX", "true") == "true"

	// Execution config
	cfg.ExecutionConfig.ATRSLMultiplier = getEnvFloatOrDefault("ATR_SL_MULTIPLIER", cfg.ExecutionConfig.ATRSLMultiplier)
	cfg.ExecutionConfig.ATRTPMultiplier = getEnvFloatOrDefault("ATR_TP_MULTIPLIER", cfg.ExecutionConfig.ATRTPMultiplier)
	cfg.ExecutionConfig.MinRRRatio = getEnvFloatOrDefault("MIN_RR_RATIO", cfg.ExecutionConfig.MinRRRatio)

	// Monitor config
	cfg.MonitorConfig.BreakevenTriggerR = getEnvFloatOrDefault("BREAKEVEN_TRIGGER_R", cfg.MonitorConfig.BreakevenTriggerR)
	cfg.MonitorConfig.PollInterval = getEnvIntOrDefault("MONITOR_POLL_INTERVAL", cfg.MonitorConfig.PollInterval)

	// Circuit breaker config
	cfg.CircuitBreakerConfig.Enabled = getEnvOrDefault("CIRCUIT_BREAKER_ENABLED", "true") == "true"
	cfg.CircuitBreakerConfig.MaxDrawdownPercent = getEnvFloatOrDefault("MAX_DRAWDOWN_PCT", cfg.CircuitBreakerConfig.MaxDrawdownPercent)
	cfg.CircuitBreakerConfig.LossStreakThreshold = getEnvIntOrDefault("LOSS_STREAK_THRESHOLD", cfg.CircuitBreakerConfig.LossStreakThreshold)
	cfg.CircuitBreakerConfig.RiskReduction = getEnvFloatOrDefault("CIRCUIT_BREAKER_REDUCTION", cfg.CircuitBreakerConfig.RiskReduction)
	cfg.CircuitBreakerConfig.RecoveryThreshold = getEnvFloatOrDefault("RECOVERY_THRESHOLD", cfg.CircuitBreakerConfig.RecoveryThreshold)

	// Sentiment config
	cfg.SentimentConfig.Enabled = getEnvOrDefault("SENTIMENT_ENABLED", "true") == "true"
	cfg.SentimentConfig.APIKey = getEnvOrDefault("TWELVE_DATA_API_KEY", cfg.SentimentConfig.APIKey)

	// Risk config
	cfg.RiskConfig.MaxOpenTrades = getEnvIntOrDefault("MAX_CONCURRENT_TRADES", cfg.RiskConfig.MaxOpenTrades)
	cfg.RiskConfig.MaxSpreadRegular = getEnvFloatOrDefault("MAX_SPREAD_REGULAR", cfg.RiskConfig.MaxSpreadRegular)
	cfg.RiskConfig.MaxSpreadJPY = getEnvFloatOrDefault("MAX_SPREAD_JPY", cfg.RiskConfig.MaxSpreadJPY)
	cfg.RiskConfig.MaxSpreadMetals = getEnvFloatOrDefault("MAX_SPREAD_METALS", cfg.RiskConfig.MaxSpreadMetals)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", "false") == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Server config
	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", "true") == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database config
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)
	cfg.DatabaseConfig.Enabled = cfg.DatabaseConfig.URL != ""

	// Bot config
	cfg.BotConfig.SessionInterval = getEnvIntOrDefault("SESSION_INTERVAL", cfg.BotConfig.SessionInterval)
	cfg.BotConfig.PreEntryRechecks = getEnvIntOrDefault("PRE_ENTRY_RECHECKS", cfg.BotConfig.PreEntryRechecks)
	cfg.BotConfig.RecheckSleep = getEnvIntOrDefault("PRE_ENTRY_RECHECK_SLEEP", cfg.BotConfig.RecheckSleep)
	cfg.BotConfig.DryRun = getEnvOrDefault("DRY_RUN", "false") == "true"
}

// applyDefaults fills in any remaining zero values with the documented
// defaults so a missing config.json still yields a runnable configuration.
func applyDefaults(cfg *Config) {
	if cfg.OandaConfig.Environment == "" {
		cfg.OandaConfig.Environment = "practice"
	}
	if cfg.OandaConfig.BaseURL == "" {
		if cfg.OandaConfig.Environment == "live" {
			cfg.OandaConfig.BaseURL = "https://api-fxtrade.oanda.com"
		} else {
			cfg.OandaConfig.BaseURL = "https://api-fxpractice.oanda.com"
		}
	}
	if len(cfg.ScannerConfig.Instruments) == 0 {
		cfg.ScannerConfig.Instruments = DefaultInstruments
	}
	if cfg.ScannerConfig.Granularity == "" {
		cfg.ScannerConfig.Granularity = "H4"
	}
	if cfg.ScannerConfig.CandleCount == 0 {
		cfg.ScannerConfig.CandleCount = 100
	}
	if cfg.ScannerConfig.WorkerCount == 0 {
		cfg.ScannerConfig.WorkerCount = 6
	}
	if cfg.ScannerConfig.MinRawScore == 0 {
		cfg.ScannerConfig.MinRawScore = 60
	}
	if cfg.ScannerConfig.MinScore == 0 {
		cfg.ScannerConfig.MinScore = 60
	}
	if cfg.ScannerConfig.ATRSLMult == 0 {
		cfg.ScannerConfig.ATRSLMult = 2.0
	}
	if cfg.ScannerConfig.ATRTPMult == 0 {
		cfg.ScannerConfig.ATRTPMult = 3.0
	}
	if cfg.ScannerConfig.MaxResults == 0 {
		cfg.ScannerConfig.MaxResults = 10
	}
	if cfg.ScannerConfig.ScanInterval == 0 {
		cfg.ScannerConfig.ScanInterval = 900
	}

	if cfg.GateConfig.RegistryFile == "" {
		cfg.GateConfig.RegistryFile = "idea_registry.json"
	}
	if cfg.GateConfig.CooldownHours == 0 {
		cfg.GateConfig.CooldownHours = 6
	}
	if cfg.GateConfig.CooldownATRMult == 0 {
		cfg.GateConfig.CooldownATRMult = 0.8
	}
	if cfg.GateConfig.CooldownPctMove == 0 {
		cfg.GateConfig.CooldownPctMove = 0.6
	}
	if cfg.GateConfig.FreshnessLookbackDays == 0 {
		cfg.GateConfig.FreshnessLookbackDays = 14
	}
	if cfg.GateConfig.FreshnessSimilarity == 0 {
		cfg.GateConfig.FreshnessSimilarity = 0.85
	}
	if cfg.GateConfig.MinADX == 0 {
		cfg.GateConfig.MinADX = 17
	}
	if cfg.GateConfig.ADXRelaxDelta == 0 {
		cfg.GateConfig.ADXRelaxDelta = 2
	}
	if cfg.GateConfig.MinATRPercent == 0 {
		cfg.GateConfig.MinATRPercent = 0.22
	}
	if cfg.GateConfig.MaxATRPercent == 0 {
		cfg.GateConfig.MaxATRPercent = 3.2
	}
	if cfg.GateConfig.MinRiskReward == 0 {
		cfg.GateConfig.MinRiskReward = 1.3
	}
	if cfg.GateConfig.LowVolatilityFloor == 0 {
		cfg.GateConfig.LowVolatilityFloor = 0.15
	}

	if cfg.PlannerConfig.RiskPerTradeMin == 0 {
		cfg.PlannerConfig.RiskPerTradeMin = 0.005
	}
	if cfg.PlannerConfig.RiskPerTradeMax == 0 {
		cfg.PlannerConfig.RiskPerTradeMax = 0.010
	}
	if cfg.PlannerConfig.MinSLPips == 0 {
		cfg.PlannerConfig.MinSLPips = 8
	}
	if cfg.PlannerConfig.TP1RMultiple == 0 {
		cfg.PlannerConfig.TP1RMultiple = 1.2
	}
	if cfg.PlannerConfig.TP2RMultiple == 0 {
		cfg.PlannerConfig.TP2RMultiple = 2.0
	}
	if cfg.PlannerConfig.TrailStartR == 0 {
		cfg.PlannerConfig.TrailStartR = 1.0
	}
	if cfg.PlannerConfig.MinTrailPips == 0 {
		cfg.PlannerConfig.MinTrailPips = 5
	}

	if cfg.ExecutionConfig.ATRSLMultiplier == 0 {
		cfg.ExecutionConfig.ATRSLMultiplier = 1.6
	}
	if cfg.ExecutionConfig.ATRTPMultiplier == 0 {
		cfg.ExecutionConfig.ATRTPMultiplier = 2.8
	}
	if cfg.ExecutionConfig.M15ATRFloorMult == 0 {
		cfg.ExecutionConfig.M15ATRFloorMult = 2.5
	}
	if cfg.ExecutionConfig.MinRRRatio == 0 {
		cfg.ExecutionConfig.MinRRRatio = 1.6
	}
	if cfg.ExecutionConfig.SwingLookback == 0 {
		cfg.ExecutionConfig.SwingLookback = 30
	}
	if cfg.ExecutionConfig.MinPositionSize == 0 {
		cfg.ExecutionConfig.MinPositionSize = 1000
	}
	if cfg.ExecutionConfig.MaxPositionSize == 0 {
		cfg.ExecutionConfig.MaxPositionSize = 100000
	}
	if cfg.ExecutionConfig.FallbackSizePct == 0 {
		cfg.ExecutionConfig.FallbackSizePct = 2.0
	}
	if cfg.ExecutionConfig.QuoteSampleDelay == 0 {
		cfg.ExecutionConfig.QuoteSampleDelay = 1
	}

	if cfg.MonitorConfig.PollInterval == 0 {
		cfg.MonitorConfig.PollInterval = 10
	}
	if cfg.MonitorConfig.MissingPriceBackoff == 0 {
		cfg.MonitorConfig.MissingPriceBackoff = 15
	}
	if cfg.MonitorConfig.ErrorBackoff == 0 {
		cfg.MonitorConfig.ErrorBackoff = 30
	}
	if cfg.MonitorConfig.BreakevenTriggerR == 0 {
		cfg.MonitorConfig.BreakevenTriggerR = 0.7
	}
	if cfg.MonitorConfig.PartialCloseRatio == 0 {
		cfg.MonitorConfig.PartialCloseRatio = 0.25
	}
	if cfg.MonitorConfig.PartialTriggerR == 0 {
		cfg.MonitorConfig.PartialTriggerR = 1.5
	}
	if cfg.MonitorConfig.PartialMinPips == 0 {
		cfg.MonitorConfig.PartialMinPips = 35
	}
	if cfg.MonitorConfig.PartialMinPipsJPY == 0 {
		cfg.MonitorConfig.PartialMinPipsJPY = 30
	}
	if cfg.MonitorConfig.TrailMultNear == 0 {
		cfg.MonitorConfig.TrailMultNear = 1.5
	}
	if cfg.MonitorConfig.TrailMultMid == 0 {
		cfg.MonitorConfig.TrailMultMid = 1.2
	}
	if cfg.MonitorConfig.TrailMultFar == 0 {
		cfg.MonitorConfig.TrailMultFar = 1.0
	}
	if cfg.MonitorConfig.ShutdownGrace == 0 {
		cfg.MonitorConfig.ShutdownGrace = 30
	}

	if cfg.LedgerConfig.File == "" {
		cfg.LedgerConfig.File = "active_trades.json"
	}
	if cfg.LedgerConfig.StaleMaxHours == 0 {
		cfg.LedgerConfig.StaleMaxHours = 72
	}

	if cfg.CircuitBreakerConfig.StateFile == "" {
		cfg.CircuitBreakerConfig.StateFile = "circuit_breaker_state.json"
	}
	if cfg.CircuitBreakerConfig.MaxDrawdownPercent == 0 {
		cfg.CircuitBreakerConfig.MaxDrawdownPercent = 8.0
	}
	if cfg.CircuitBreakerConfig.LossStreakThreshold == 0 {
		cfg.CircuitBreakerConfig.LossStreakThreshold = 4
	}
	if cfg.CircuitBreakerConfig.RiskReduction == 0 {
		cfg.CircuitBreakerConfig.RiskReduction = 0.5
	}
	if cfg.CircuitBreakerConfig.RecoveryThreshold == 0 {
		cfg.CircuitBreakerConfig.RecoveryThreshold = 2.0
	}
	if cfg.CircuitBreakerConfig.LookbackDays == 0 {
		cfg.CircuitBreakerConfig.LookbackDays = 7
	}

	if cfg.SentimentConfig.BaseURL == "" {
		cfg.SentimentConfig.BaseURL = "https://api.twelvedata.com"
	}
	if cfg.SentimentConfig.CacheTTL == 0 {
		cfg.SentimentConfig.CacheTTL = 3600
	}
	if cfg.SentimentConfig.MaxAdjust == 0 {
		cfg.SentimentConfig.MaxAdjust = 10
	}
	if cfg.SentimentConfig.ProtectedScore == 0 {
		cfg.SentimentConfig.ProtectedScore = 48
	}

	if cfg.RiskConfig.MaxOpenTrades == 0 {
		cfg.RiskConfig.MaxOpenTrades = 3
	}
	if cfg.RiskConfig.MaxTradesPerSession == 0 {
		cfg.RiskConfig.MaxTradesPerSession = 3
	}
	if len(cfg.RiskConfig.CorrelationGroups) == 0 {
		cfg.RiskConfig.CorrelationGroups = DefaultCorrelationGroups
	}
	if cfg.RiskConfig.MaxCorrelatedPerSide == 0 {
		cfg.RiskConfig.MaxCorrelatedPerSide = 2
	}
	if cfg.RiskConfig.MaxSpreadRegular == 0 {
		cfg.RiskConfig.MaxSpreadRegular = 0.00030
	}
	if cfg.RiskConfig.MaxSpreadJPY == 0 {
		cfg.RiskConfig.MaxSpreadJPY = 0.050
	}
	if cfg.RiskConfig.MaxSpreadMetals == 0 {
		cfg.RiskConfig.MaxSpreadMetals = 0.060
	}
	if cfg.RiskConfig.VolatilitySpikeMult == 0 {
		cfg.RiskConfig.VolatilitySpikeMult = 1.5
	}

	if cfg.BotConfig.SessionInterval == 0 {
		cfg.BotConfig.SessionInterval = 14400
	}
	if cfg.BotConfig.InterTradeDelay == 0 {
		cfg.BotConfig.InterTradeDelay = 2
	}
	if cfg.BotConfig.PreEntryRechecks == 0 {
		cfg.BotConfig.PreEntryRechecks = 2
	}
	if cfg.BotConfig.RecheckSleep == 0 {
		cfg.BotConfig.RecheckSleep = 20
	}
	if cfg.BotConfig.BaseMinScore == 0 {
		cfg.BotConfig.BaseMinScore = 65
	}
	if cfg.BotConfig.FrequencyMinScore == 0 {
		cfg.BotConfig.FrequencyMinScore = 55
	}
	if cfg.BotConfig.ScalpMinScore == 0 {
		cfg.BotConfig.ScalpMinScore = 38
	}
	if cfg.BotConfig.ScalpMinSession == 0 {
		cfg.BotConfig.ScalpMinSession = 0.25
	}
	if cfg.BotConfig.ScalpMaxCorrelation == 0 {
		cfg.BotConfig.ScalpMaxCorrelation = 0.85
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}

	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.VaultConfig.Address == "" {
		cfg.VaultConfig.Address = "http://localhost:8200"
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "trading-bot/broker"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file.
func GenerateSampleConfig(filename string) error {
	config := Config{}
	applyDefaults(&config)
	config.OandaConfig = OandaConfig{
		APIKey:      "your_api_key_here",
		AccountID:   "101-001-0000000-001",
		Environment: "practice",
		BaseURL:     "https://api-fxpractice.oanda.com",
	}
	config.LoggingConfig = LoggingConfig{
		Level:      "INFO",
		Output:     "stdout",
		JSONFormat: true,
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
