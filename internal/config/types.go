package config

import "strings"

// Config is the root configuration of backdesk.
type Config struct {
	App      AppConfig      `toml:"app"`
	Remote   RemoteConfig   `toml:"remote"`
	Session  SessionConfig  `toml:"session"`
	Backtest BacktestConfig `toml:"backtest"`
	Catalog  CatalogConfig  `toml:"catalog"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// RemoteConfig points at the backtest/data service. TimeoutSeconds 0 means
// requests wait until the service answers.
type RemoteConfig struct {
	BaseURL         string  `toml:"base_url"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	FetchRatePerMin float64 `toml:"fetch_rate_per_min"`
	APIToken        string  `toml:"api_token"`
	// BreakerThreshold consecutive failures open the circuit for
	// BreakerCooldownSeconds; an explicit 0 disables it.
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

type SessionConfig struct {
	DBPath               string `toml:"db_path"`
	TTLHours             int    `toml:"ttl_hours"`
	PurgeIntervalMinutes int    `toml:"purge_interval_minutes"`
	CookieName           string `toml:"cookie_name"`
}

// BacktestConfig holds the form defaults. Percent fields are 0-100.
type BacktestConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	MaxTradeAmount float64 `toml:"max_trade_amount"`
	StopLossPct    float64 `toml:"stop_loss_pct"`
	TakeProfitPct  float64 `toml:"take_profit_pct"`
	Logic          string  `toml:"logic"`
	Interval       string  `toml:"interval"`
}

// CatalogConfig.Path optionally replaces the built-in indicator catalog.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// keySet tracks the field paths explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
