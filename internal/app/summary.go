package app

import (
	"fmt"
	"strings"

	"backdesk/internal/config"
	"backdesk/internal/indicator"
)

// StartupSummary is printed once when the server starts.
type StartupSummary struct {
	HTTPAddr   string
	RemoteURL  string
	Timeout    string
	SessionDB  string
	SessionTTL int
	Defaults   config.BacktestConfig
	Indicators []string
}

func newStartupSummary(cfg *config.Config, catalog *indicator.Catalog) *StartupSummary {
	s := &StartupSummary{
		HTTPAddr:   cfg.App.HTTPAddr,
		RemoteURL:  cfg.Remote.BaseURL,
		Timeout:    "none",
		SessionDB:  cfg.Session.DBPath,
		SessionTTL: cfg.Session.TTLHours,
		Defaults:   cfg.Backtest,
	}
	if cfg.Remote.TimeoutSeconds > 0 {
		s.Timeout = fmt.Sprintf("%ds", cfg.Remote.TimeoutSeconds)
	}
	for _, d := range catalog.List() {
		s.Indicators = append(s.Indicators, d.ID)
	}
	return s
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("STARTUP SUMMARY\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "[HTTP]     listen: %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "[REMOTE]   base: %s  timeout: %s\n", s.RemoteURL, s.Timeout)
	fmt.Fprintf(&b, "[SESSION]  db: %s  ttl: %dh\n", s.SessionDB, s.SessionTTL)
	d := s.Defaults
	fmt.Fprintf(&b, "[BACKTEST] capital: %g  max trade: %g  stop: %g%%  take: %g%%  logic: %s  interval: %s\n",
		d.InitialCapital, d.MaxTradeAmount, d.StopLossPct, d.TakeProfitPct, d.Logic, d.Interval)
	fmt.Fprintf(&b, "[CATALOG]  %s\n", formatList(s.Indicators))
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	fmt.Println(s.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
