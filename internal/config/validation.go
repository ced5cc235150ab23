package config

import (
	"fmt"
	"net/url"
	"strings"
)

var knownLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// validate performs basic sanity checks.
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Remote.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}
	return c.Backtest.validate()
}

func (a *AppConfig) validate() error {
	if !knownLogLevels[strings.ToLower(strings.TrimSpace(a.LogLevel))] {
		return fmt.Errorf("app.log_level %q is not one of debug, info, warn, error", a.LogLevel)
	}
	return nil
}

func (r *RemoteConfig) validate() error {
	u, err := url.Parse(r.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote.base_url must be an absolute URL, got %q", r.BaseURL)
	}
	if r.TimeoutSeconds < 0 {
		return fmt.Errorf("remote.timeout_seconds must be >= 0")
	}
	if r.FetchRatePerMin < 0 {
		return fmt.Errorf("remote.fetch_rate_per_min must be >= 0")
	}
	if r.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("remote.breaker_cooldown_seconds must be >= 0")
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if strings.TrimSpace(s.CookieName) == "" {
		return fmt.Errorf("session.cookie_name cannot be empty")
	}
	if s.TTLHours <= 0 {
		return fmt.Errorf("session.ttl_hours must be > 0")
	}
	if s.PurgeIntervalMinutes <= 0 {
		return fmt.Errorf("session.purge_interval_minutes must be > 0")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if b.MaxTradeAmount <= 0 || b.MaxTradeAmount > b.InitialCapital {
		return fmt.Errorf("backtest.max_trade_amount must be in (0, initial_capital]")
	}
	for field, v := range map[string]float64{"backtest.stop_loss_pct": b.StopLossPct, "backtest.take_profit_pct": b.TakeProfitPct} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be between 0 and 100", field)
		}
	}
	return nil
}
