package config

import "testing"

// clearEnv blanks the variables so values from the developer's shell never
// leak into the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestEnvOverridesPreserveFileValues(t *testing.T) {
	clearEnv(t,
		"OANDA_ENVIRONMENT", "COOLDOWN_HOURS", "H4_MIN_ADX",
		"ATR_SL_MULTIPLIER", "BREAKEVEN_TRIGGER_R", "MAX_SPREAD_REGULAR",
		"MAX_DRAWDOWN_PCT", "SESSION_INTERVAL", "WEB_PORT",
	)

	cfg := &Config{}
	cfg.OandaConfig.Environment = "live"
	cfg.GateConfig.CooldownHours = 12
	cfg.GateConfig.MinADX = 25
	cfg.ExecutionConfig.ATRSLMultiplier = 2.5
	cfg.MonitorConfig.BreakevenTriggerR = 0.9
	cfg.RiskConfig.MaxSpreadRegular = 0.00050
	cfg.CircuitBreakerConfig.MaxDrawdownPercent = 12
	cfg.BotConfig.SessionInterval = 7200
	cfg.ServerConfig.Port = 9090

	applyEnvOverrides(cfg)

	if cfg.OandaConfig.Environment != "live" {
		t.Errorf("Environment = %q, want the file value", cfg.OandaConfig.Environment)
	}
	if cfg.GateConfig.CooldownHours != 12 {
		t.Errorf("CooldownHours = %v, want 12", cfg.GateConfig.CooldownHours)
	}
	if cfg.GateConfig.MinADX != 25 {
		t.Errorf("MinADX = %v, want 25", cfg.GateConfig.MinADX)
	}
	if cfg.ExecutionConfig.ATRSLMultiplier != 2.5 {
		t.Errorf("ATRSLMultiplier = %v, want 2.5", cfg.ExecutionConfig.ATRSLMultiplier)
	}
	if cfg.MonitorConfig.BreakevenTriggerR != 0.9 {
		t.Errorf("BreakevenTriggerR = %v, want 0.9", cfg.MonitorConfig.BreakevenTriggerR)
	}
	if cfg.RiskConfig.MaxSpreadRegular != 0.00050 {
		t.Errorf("MaxSpreadRegular = %v, want 0.0005", cfg.RiskConfig.MaxSpreadRegular)
	}
	if cfg.CircuitBreakerConfig.MaxDrawdownPercent != 12 {
		t.Errorf("MaxDrawdownPercent = %v, want 12", cfg.CircuitBreakerConfig.MaxDrawdownPercent)
	}
	if cfg.BotConfig.SessionInterval != 7200 {
		t.Errorf("SessionInterval = %v, want 7200", cfg.BotConfig.SessionInterval)
	}
	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("Port = %v, want 9090", cfg.ServerConfig.Port)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("COOLDOWN_HOURS", "3.5")
	t.Setenv("SESSION_INTERVAL", "1800")
	t.Setenv("OANDA_ENVIRONMENT", "practice")

	cfg := &Config{}
	cfg.OandaConfig.Environment = "live"
	cfg.GateConfig.CooldownHours = 12
	cfg.BotConfig.SessionInterval = 7200

	applyEnvOverrides(cfg)

	if cfg.GateConfig.CooldownHours != 3.5 {
		t.Errorf("CooldownHours = %v, want the env value 3.5", cfg.GateConfig.CooldownHours)
	}
	if cfg.BotConfig.SessionInterval != 1800 {
		t.Errorf("SessionInterval = %v, want the env value 1800", cfg.BotConfig.SessionInterval)
	}
	if cfg.OandaConfig.Environment != "practice" {
		t.Errorf("Environment = %q, want the env value", cfg.OandaConfig.Environment)
	}
}

func TestDefaultsFillUnsetFields(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.OandaConfig.Environment != "practice" {
		t.Errorf("Environment = %q, want practice", cfg.OandaConfig.Environment)
	}
	if cfg.GateConfig.CooldownHours != 6 {
		t.Errorf("CooldownHours = %v, want 6", cfg.GateConfig.CooldownHours)
	}
	if cfg.ExecutionConfig.ATRSLMultiplier != 1.6 {
		t.Errorf("ATRSLMultiplier = %v, want 1.6", cfg.ExecutionConfig.ATRSLMultiplier)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("Port = %v, want 8080", cfg.ServerConfig.Port)
	}
	if cfg.LoggingConfig.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", cfg.LoggingConfig.Level)
	}
	if cfg.VaultConfig.MountPath != "secret" {
		t.Errorf("MountPath = %q, want secret", cfg.VaultConfig.MountPath)
	}
	if cfg.RedisConfig.Address != "localhost:6379" {
		t.Errorf("Redis address = %q, want localhost:6379", cfg.RedisConfig.Address)
	}
}
