package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"backdesk/internal/chart"
	"backdesk/internal/report"
	"backdesk/internal/request"
	"backdesk/internal/result"

	"github.com/spf13/cobra"
)

// indicatorFlag is one --indicator value: "id" or "id:name=value,name=value".
type indicatorFlag struct {
	ID     string
	Params [][2]string
}

func parseIndicatorFlag(s string) (indicatorFlag, error) {
	id, rest, _ := strings.Cut(strings.TrimSpace(s), ":")
	out := indicatorFlag{ID: strings.TrimSpace(id)}
	if out.ID == "" {
		return indicatorFlag{}, fmt.Errorf("indicator %q: missing id", s)
	}
	if strings.TrimSpace(rest) == "" {
		return out, nil
	}
	for _, kv := range strings.Split(rest, ",") {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return indicatorFlag{}, fmt.Errorf("indicator %q: expected name=value, got %q", s, kv)
		}
		out.Params = append(out.Params, [2]string{name, strings.TrimSpace(value)})
	}
	return out, nil
}

func (c *cli) backtestCmd() *cobra.Command {
	var (
		form       request.Form
		indicators []string
		csvDir     string
		chartPath  string
	)
	cmd := &cobra.Command{
		Use:   "backtest <data.json>",
		Short: "Upload a dataset, select indicators and run a remote backtest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := make([]indicatorFlag, 0, len(indicators))
			for _, s := range indicators {
				f, err := parseIndicatorFlag(s)
				if err != nil {
					return err
				}
				flags = append(flags, f)
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			mgr, err := c.newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess := mgr.Create()
			if _, err := sess.Upload(ctx, raw); err != nil {
				return err
			}
			for _, f := range flags {
				if _, err := sess.Toggle(ctx, f.ID); err != nil {
					return err
				}
				for _, p := range f.Params {
					if _, err := sess.SetParam(ctx, f.ID, p[0], p[1]); err != nil {
						return err
					}
				}
			}
			for _, w := range sess.Selections(ctx).Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			view, err := sess.RunBacktest(ctx, form)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report.Summary(out, view.Summary)
			report.Trades(out, view.Trades)

			if csvDir != "" {
				if err := writeCSV(csvDir, view); err != nil {
					return err
				}
			}
			if chartPath != "" {
				title := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				if err := writeChart(chartPath, title, view); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&indicators, "indicator", nil, "indicator to enable, e.g. sma:window=20 (repeatable)")
	f.StringVar(&form.Logic, "logic", "", "indicator combination logic (default from config)")
	f.StringVar(&form.InitialCapital, "capital", "", "initial capital")
	f.StringVar(&form.MaxTradeAmount, "max-trade", "", "maximum amount per trade")
	f.StringVar(&form.StopLoss, "stop-loss", "", "stop loss in percent")
	f.StringVar(&form.TakeProfit, "take-profit", "", "take profit in percent")
	f.StringVar(&csvDir, "csv", "", "directory to write trades.csv and equity.csv")
	f.StringVar(&chartPath, "chart", "", "HTML file to write the equity and price charts")
	return cmd
}

func writeCSV(dir string, view *result.View) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	trades, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	defer trades.Close()
	if err := report.TradesCSV(trades, view.Trades); err != nil {
		return err
	}
	equity, err := os.Create(filepath.Join(dir, "equity.csv"))
	if err != nil {
		return err
	}
	defer equity.Close()
	return report.EquityCSV(equity, view.Equity)
}

func writeChart(path, title string, view *result.View) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return chart.RenderView(f, title, view)
}
