// Package request assembles the payload sent to the backtest service.
package request

import (
	"bytes"
	"encoding/json"

	"backdesk/internal/indicator"
	"backdesk/internal/market"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// IndicatorEntry is one strategy indicator flattened to {type, ...params}.
type IndicatorEntry struct {
	Type   string
	Names  []string
	Params map[string]indicator.ParamValue
}

// MarshalJSON writes type first and the params in catalog order.
func (e IndicatorEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(typ)
	for _, name := range e.Names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Params[name])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type StrategyParams struct {
	Indicators []IndicatorEntry `json:"indicators"`
	Logic      string           `json:"logic"`
}

// BacktestRequest is the body of POST /api/backtest. StopLoss and
// TakeProfit are fractions.
type BacktestRequest struct {
	Data           *market.Dataset `json:"data"`
	StrategyParams StrategyParams  `json:"strategy_params"`
	InitialCapital float64         `json:"initial_capital"`
	MaxTradeAmount float64         `json:"max_trade_amount"`
	StopLoss       float64         `json:"stop_loss"`
	TakeProfit     float64         `json:"take_profit"`
}

// Build validates the inputs and assembles the request. It converts
// percentages to fractions; nothing downstream converts units again.
func Build(ds *market.Dataset, selections []indicator.Selection, opts Options) (*BacktestRequest, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, invalid("data", "no dataset loaded")
	}
	if !opts.InitialCapital.IsPositive() {
		return nil, invalid("initialCapital", "must be greater than 0")
	}
	if opts.MaxTradeAmount.GreaterThan(opts.InitialCapital) {
		return nil, invalid("maxTradeAmount", "must not exceed initial capital (%s > %s)", opts.MaxTradeAmount, opts.InitialCapital)
	}
	if len(selections) == 0 {
		return nil, invalid("indicators", "select at least one indicator")
	}
	if err := checkPercent("stopLoss", opts.StopLossPct); err != nil {
		return nil, err
	}
	if err := checkPercent("takeProfit", opts.TakeProfitPct); err != nil {
		return nil, err
	}

	entries := make([]IndicatorEntry, 0, len(selections))
	for _, sel := range selections {
		names := sel.Names()
		params := make(map[string]indicator.ParamValue, len(names))
		for _, n := range names {
			params[n] = sel.Params[n]
		}
		entries = append(entries, IndicatorEntry{Type: sel.Type, Names: names, Params: params})
	}

	return &BacktestRequest{
		Data:           ds,
		StrategyParams: StrategyParams{Indicators: entries, Logic: opts.Logic},
		InitialCapital: opts.InitialCapital.InexactFloat64(),
		MaxTradeAmount: opts.MaxTradeAmount.InexactFloat64(),
		StopLoss:       opts.StopLossPct.Div(hundred).InexactFloat64(),
		TakeProfit:     opts.TakeProfitPct.Div(hundred).InexactFloat64(),
	}, nil
}

func checkPercent(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(hundred) {
		return invalid(field, "must be between 0 and 100 percent, got %s", v)
	}
	return nil
}
