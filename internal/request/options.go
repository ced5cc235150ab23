package request

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Options are the numeric backtest settings. StopLossPct and TakeProfitPct
// are in percent (0-100) as the user enters them.
type Options struct {
	Logic          string
	InitialCapital decimal.Decimal
	MaxTradeAmount decimal.Decimal
	StopLossPct    decimal.Decimal
	TakeProfitPct  decimal.Decimal
}

// Form carries the raw strings of the backtest form. Empty fields fall back
// to the matching entry in Defaults.
type Form struct {
	Logic          string `json:"logic"`
	InitialCapital string `json:"initialCapital"`
	MaxTradeAmount string `json:"maxTradeAmount"`
	StopLoss       string `json:"stopLoss"`
	TakeProfit     string `json:"takeProfit"`
}

type Defaults struct {
	Logic          string
	InitialCapital float64
	MaxTradeAmount float64
	StopLossPct    float64
	TakeProfitPct  float64
}

// ParseForm converts the form to Options without checking cross-field
// constraints; Build does that.
func ParseForm(f Form, d Defaults) (Options, error) {
	var (
		opts Options
		err  error
	)
	opts.Logic = strings.TrimSpace(f.Logic)
	if opts.Logic == "" {
		opts.Logic = d.Logic
	}
	if opts.InitialCapital, err = parseAmount("initialCapital", f.InitialCapital, d.InitialCapital); err != nil {
		return Options{}, err
	}
	if opts.MaxTradeAmount, err = parseAmount("maxTradeAmount", f.MaxTradeAmount, d.MaxTradeAmount); err != nil {
		return Options{}, err
	}
	if opts.StopLossPct, err = parseAmount("stopLoss", f.StopLoss, d.StopLossPct); err != nil {
		return Options{}, err
	}
	if opts.TakeProfitPct, err = parseAmount("takeProfit", f.TakeProfit, d.TakeProfitPct); err != nil {
		return Options{}, err
	}
	return opts, nil
}

var (
	// 10,000 or 1,000,000.50 as printed by result.FormatMoney.
	groupedAmount = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	// 2500,5 with a decimal comma.
	commaDecimal = regexp.MustCompile(`^[+-]?\d+,\d+$`)
)

func parseAmount(field, raw string, fallback float64) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NewFromFloat(fallback), nil
	}
	text, ok := normalizeAmount(raw)
	if !ok {
		return decimal.Zero, invalid(field, "%q is ambiguous, use 10000 or 10000.5", raw)
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, invalid(field, "%q is not a number", raw)
	}
	return v, nil
}

// normalizeAmount drops thousands separators and turns a lone decimal comma
// into a dot. Anything else with a comma is refused rather than guessed.
func normalizeAmount(raw string) (string, bool) {
	if !strings.Contains(raw, ",") {
		return raw, true
	}
	switch {
	case groupedAmount.MatchString(raw):
		return strings.ReplaceAll(raw, ",", ""), true
	case commaDecimal.MatchString(raw):
		return strings.Replace(raw, ",", ".", 1), true
	default:
		return "", false
	}
}
