package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"backdesk/internal/config"
	"backdesk/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type cli struct {
	cfgPath string
	cfg     *config.Config
	logFile *os.File
}

func main() {
	c := &cli{}
	root := &cobra.Command{
		Use:           "backdesk",
		Short:         "Backtest workbench: load market data, pick indicators, run remote backtests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logFile != nil {
				_ = c.logFile.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "config file (default $BACKDESK_CONFIG or "+defaultConfigPath+")")
	root.AddCommand(c.serveCmd(), c.indicatorsCmd(), c.fetchCmd(), c.backtestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) setup() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring .env: %v", err)
	}
	path := c.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyEnvOverrides(cfg)
	if c.logFile, err = setupLogOutput(cfg.App.LogPath); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	c.cfgPath = path
	c.cfg = cfg
	return nil
}

// resolveConfigPath prefers the flag, then BACKDESK_CONFIG, then the default
// path when it exists. An empty result means built-in defaults.
func (c *cli) resolveConfigPath() string {
	if p := strings.TrimSpace(c.cfgPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("BACKDESK_CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func applyEnvOverrides(cfg *config.Config) {
	if v := strings.TrimSpace(os.Getenv("BACKDESK_API_TOKEN")); v != "" {
		cfg.Remote.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("BACKDESK_REMOTE_URL")); v != "" {
		cfg.Remote.BaseURL = strings.TrimRight(v, "/")
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
