// Package result validates backtest responses and turns them into the
// display model.
package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"backdesk/internal/normalize"
	"backdesk/internal/pkg/convert"

	"github.com/tidwall/gjson"
)

type Trade struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	// Profit is nil for an open leg.
	Profit *float64 `json:"profit"`
}

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// BacktestResult is the adapted response. ProfitFactor may be +Inf when
// there were no losing trades, or nil when the service sent null.
type BacktestResult struct {
	InitialCapital float64       `json:"initialCapital"`
	FinalCapital   float64       `json:"finalCapital"`
	TotalReturnPct float64       `json:"totalReturnPct"`
	MaxDrawdownPct float64       `json:"maxDrawdownPct"`
	WinningTrades  int           `json:"winningTrades"`
	LosingTrades   int           `json:"losingTrades"`
	ProfitFactor   *float64      `json:"-"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equityCurve"`
}

// each summary field with the key spellings accepted for it.
var summaryFields = []struct {
	name    string
	aliases []string
}{
	{"initial_capital", []string{"initial_capital", "initialCapital"}},
	{"final_capital", []string{"final_capital", "finalCapital"}},
	{"total_return", []string{"total_return", "totalReturn", "total_return_pct"}},
	{"max_drawdown", []string{"max_drawdown", "maxDrawdown", "max_drawdown_pct"}},
	{"winning_trades", []string{"winning_trades", "winningTrades"}},
	{"losing_trades", []string{"losing_trades", "losingTrades"}},
	{"profit_factor", []string{"profit_factor", "profitFactor"}},
}

// Adapt validates raw and builds a BacktestResult. raw is never modified,
// so adapting the same bytes twice yields equal results.
func Adapt(raw []byte) (*BacktestResult, error) {
	body := sanitizeNonFinite(raw)
	if !gjson.ValidBytes(body) {
		return nil, shapeErr("is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, shapeErr("is not a JSON object")
	}

	var missing []string
	summary := make(map[string]gjson.Result, len(summaryFields))
	for _, f := range summaryFields {
		v, ok := first(doc, f.aliases...)
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		summary[f.name] = v
	}
	trades, okTrades := first(doc, "trades")
	if !okTrades {
		missing = append(missing, "trades")
	}
	equity, okEquity := first(doc, "equity_curve", "equityCurve")
	if !okEquity {
		missing = append(missing, "equity_curve")
	}
	if len(missing) > 0 {
		return nil, &ResultShapeError{Missing: missing}
	}

	res := &BacktestResult{}
	var err error
	if res.InitialCapital, err = number(summary["initial_capital"], "initial_capital"); err != nil {
		return nil, err
	}
	if res.FinalCapital, err = number(summary["final_capital"], "final_capital"); err != nil {
		return nil, err
	}
	if res.TotalReturnPct, err = number(summary["total_return"], "total_return"); err != nil {
		return nil, err
	}
	if res.MaxDrawdownPct, err = number(summary["max_drawdown"], "max_drawdown"); err != nil {
		return nil, err
	}
	if res.WinningTrades, err = count(summary["winning_trades"], "winning_trades"); err != nil {
		return nil, err
	}
	if res.LosingTrades, err = count(summary["losing_trades"], "losing_trades"); err != nil {
		return nil, err
	}
	if res.ProfitFactor, err = profitFactor(summary["profit_factor"]); err != nil {
		return nil, err
	}
	if res.Trades, err = adaptTrades(trades); err != nil {
		return nil, err
	}
	if res.EquityCurve, err = adaptEquity(equity); err != nil {
		return nil, err
	}
	return res, nil
}

func first(doc gjson.Result, keys ...string) (gjson.Result, bool) {
	for _, k := range keys {
		if v := doc.Get(k); v.Exists() {
			return v, true
		}
	}
	return gjson.Result{}, false
}

func number(v gjson.Result, field string) (float64, error) {
	var (
		f  float64
		ok bool
	)
	switch v.Type {
	case gjson.Number:
		f, ok = v.Float(), true
	case gjson.String:
		f, ok = convert.Float(v.Str)
	}
	if !ok {
		return 0, shapeErr("field %s is not a number: %s", field, v.Raw)
	}
	return f, nil
}

func count(v gjson.Result, field string) (int, error) {
	f, err := number(v, field)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, shapeErr("field %s is not a count: %s", field, v.Raw)
	}
	return int(f), nil
}

func profitFactor(v gjson.Result) (*float64, error) {
	if v.Type == gjson.Null {
		return nil, nil
	}
	if v.Type == gjson.String {
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "inf", "+inf", "infinity", "+infinity":
			inf := math.Inf(1)
			return &inf, nil
		case "nan":
			return nil, nil
		}
	}
	f, err := number(v, "profit_factor")
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeObject(raw string) (map[string]any, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func adaptTrades(list gjson.Result) ([]Trade, error) {
	if !list.IsArray() {
		return nil, shapeErr("field trades is not an array")
	}
	items := list.Array()
	trades := make([]Trade, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, shapeErr("trade %d is not an object", i)
		}
		obj, err := decodeObject(item.Raw)
		if err != nil {
			return nil, shapeErr("trade %d: %v", i, err)
		}
		ts, err := normalize.ResolveTimestamp(obj)
		if err != nil {
			return nil, shapeErr("trade %d: %v", i, err)
		}
		price, err := number(item.Get("price"), fmt.Sprintf("trades[%d].price", i))
		if err != nil {
			return nil, err
		}
		amount, err := number(item.Get("amount"), fmt.Sprintf("trades[%d].amount", i))
		if err != nil {
			return nil, err
		}
		t := Trade{Timestamp: ts, Type: item.Get("type").String(), Price: price, Amount: amount}
		if p := item.Get("profit"); p.Exists() && p.Type != gjson.Null {
			profit, err := number(p, fmt.Sprintf("trades[%d].profit", i))
			if err != nil {
				return nil, err
			}
			t.Profit = &profit
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func adaptEquity(list gjson.Result) ([]EquityPoint, error) {
	if !list.IsArray() {
		return nil, shapeErr("field equity_curve is not an array")
	}
	items := list.Array()
	points := make([]EquityPoint, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, shapeErr("equity point %d is not an object", i)
		}
		obj, err := decodeObject(item.Raw)
		if err != nil {
			return nil, shapeErr("equity point %d: %v", i, err)
		}
		ts, err := normalize.ResolveTimestamp(obj)
		if err != nil {
			return nil, shapeErr("equity point %d: %v", i, err)
		}
		value, err := number(item.Get("value"), fmt.Sprintf("equity_curve[%d].value", i))
		if err != nil {
			return nil, err
		}
		points = append(points, EquityPoint{Timestamp: ts, Value: value})
	}
	return points, nil
}
