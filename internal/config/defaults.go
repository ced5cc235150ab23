package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":8080"
	defaultRemoteBaseURL    = "http://localhost:5000"
	defaultRemoteFetchRate  = 20
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30
	defaultSessionDBPath    = "data/sessions.db"
	defaultSessionTTLHours  = 24
	defaultSessionPurgeMins = 60
	defaultSessionCookie    = "backdesk_session"
	defaultInitialCapital   = 10000
	defaultMaxTradeAmount   = 1000
	defaultStopLossPct      = 5
	defaultTakeProfitPct    = 10
	defaultBacktestLogic    = "AND"
	defaultBacktestInterval = "1d"
)

// Default returns a configuration with every default applied, used when no
// config file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults(nil)
	return &cfg
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Remote.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (r *RemoteConfig) applyDefaults(keys keySet) {
	r.BaseURL = strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	applyFieldDefaults(keys,
		stringFieldDefault("remote.base_url", &r.BaseURL, defaultRemoteBaseURL),
		floatFieldDefault("remote.fetch_rate_per_min", &r.FetchRatePerMin, defaultRemoteFetchRate),
		fieldDefault{
			key:   "remote.breaker_threshold",
			need:  func() bool { return r.BreakerThreshold == 0 },
			apply: func() { r.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "remote.breaker_cooldown_seconds",
			need:  func() bool { return r.BreakerCooldownSeconds <= 0 },
			apply: func() { r.BreakerCooldownSeconds = defaultBreakerCooldown },
		},
	)
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("session.db_path", &s.DBPath, defaultSessionDBPath),
		stringFieldDefault("session.cookie_name", &s.CookieName, defaultSessionCookie),
		fieldDefault{
			key:   "session.ttl_hours",
			need:  func() bool { return s.TTLHours <= 0 },
			apply: func() { s.TTLHours = defaultSessionTTLHours },
		},
		fieldDefault{
			key:   "session.purge_interval_minutes",
			need:  func() bool { return s.PurgeIntervalMinutes <= 0 },
			apply: func() { s.PurgeIntervalMinutes = defaultSessionPurgeMins },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("backtest.initial_capital", &b.InitialCapital, defaultInitialCapital),
		floatFieldDefault("backtest.max_trade_amount", &b.MaxTradeAmount, defaultMaxTradeAmount),
		floatFieldDefault("backtest.stop_loss_pct", &b.StopLossPct, defaultStopLossPct),
		floatFieldDefault("backtest.take_profit_pct", &b.TakeProfitPct, defaultTakeProfitPct),
		stringFieldDefault("backtest.logic", &b.Logic, defaultBacktestLogic),
		stringFieldDefault("backtest.interval", &b.Interval, defaultBacktestInterval),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
