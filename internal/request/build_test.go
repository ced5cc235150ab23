package request

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"backdesk/internal/indicator"
	"backdesk/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *market.Dataset {
	return &market.Dataset{
		Ticker: "AAPL",
		Records: []market.OHLCVRecord{
			{Timestamp: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Close: market.Num(10)},
		},
	}
}

func selections(t *testing.T, ids ...string) []indicator.Selection {
	t.Helper()
	store := indicator.NewStore(indicator.DefaultCatalog(), func() bool { return true })
	for _, id := range ids {
		_, err := store.Toggle(id)
		require.NoError(t, err)
	}
	return store.Selections()
}

func defaultOptions() Options {
	return Options{
		Logic:          "AND",
		InitialCapital: decimal.NewFromInt(10000),
		MaxTradeAmount: decimal.NewFromInt(1000),
		StopLossPct:    decimal.NewFromInt(5),
		TakeProfitPct:  decimal.NewFromInt(10),
	}
}

func TestBuildIndicatorEntries(t *testing.T) {
	req, err := Build(sampleDataset(), selections(t, "sma", "rsi"), defaultOptions())
	require.NoError(t, err)

	raw, err := json.Marshal(req.StrategyParams.Indicators)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"type":"SMA","window":20},{"type":"RSI","window":14,"overbought":70,"oversold":30}]`,
		string(raw))
	assert.Equal(t, "AND", req.StrategyParams.Logic)
}

func TestBuildConvertsPercentOnce(t *testing.T) {
	opts, err := ParseForm(Form{StopLoss: "5", TakeProfit: "12.5", InitialCapital: "10000", MaxTradeAmount: "500"}, Defaults{})
	require.NoError(t, err)
	req, err := Build(sampleDataset(), selections(t, "ema"), opts)
	require.NoError(t, err)
	assert.Equal(t, 0.05, req.StopLoss)
	assert.Equal(t, 0.125, req.TakeProfit)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 0.05, decoded["stop_loss"])
	assert.Equal(t, 10000.0, decoded["initial_capital"])
	assert.Contains(t, decoded, "strategy_params")
	data := decoded["data"].(map[string]any)
	assert.Len(t, data["data"], 1)
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
		sels   []string
		field  string
	}{
		{"zero capital", func(o *Options) { o.InitialCapital = decimal.Zero }, []string{"sma"}, "initialCapital"},
		{"amount above capital", func(o *Options) { o.MaxTradeAmount = decimal.NewFromInt(20000) }, []string{"sma"}, "maxTradeAmount"},
		{"no indicators", func(o *Options) {}, nil, "indicators"},
		{"stop loss above 100", func(o *Options) { o.StopLossPct = decimal.NewFromInt(150) }, []string{"sma"}, "stopLoss"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := defaultOptions()
			tc.mutate(&opts)
			req, err := Build(sampleDataset(), selections(t, tc.sels...), opts)
			assert.Nil(t, req)
			var cfgErr *ConfigValidationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestBuildAllowsAmountEqualToCapital(t *testing.T) {
	opts := defaultOptions()
	opts.MaxTradeAmount = opts.InitialCapital
	_, err := Build(sampleDataset(), selections(t, "macd"), opts)
	assert.NoError(t, err)
}

func TestBuildKeepsRawParamText(t *testing.T) {
	store := indicator.NewStore(indicator.DefaultCatalog(), func() bool { return true })
	_, _ = store.Toggle("sma")
	require.NoError(t, store.SetParam("sma", "window", "twenty"))
	req, err := Build(sampleDataset(), store.Selections(), defaultOptions())
	require.NoError(t, err)
	raw, _ := json.Marshal(req.StrategyParams.Indicators[0])
	assert.Equal(t, `{"type":"SMA","window":"twenty"}`, string(raw))
}

func TestParseForm(t *testing.T) {
	d := Defaults{Logic: "AND", InitialCapital: 10000, MaxTradeAmount: 1000, StopLossPct: 2, TakeProfitPct: 4}
	opts, err := ParseForm(Form{Logic: " OR ", MaxTradeAmount: "2500,5"}, d)
	require.NoError(t, err)
	assert.Equal(t, "OR", opts.Logic)
	assert.True(t, opts.InitialCapital.Equal(decimal.NewFromInt(10000)))
	assert.True(t, opts.MaxTradeAmount.Equal(decimal.RequireFromString("2500.5")))
	assert.True(t, opts.StopLossPct.Equal(decimal.NewFromInt(2)))

	_, err = ParseForm(Form{InitialCapital: "lots"}, d)
	var cfgErr *ConfigValidationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "initialCapital", cfgErr.Field)
}

func TestParseFormAmounts(t *testing.T) {
	d := Defaults{Logic: "AND", InitialCapital: 10000, MaxTradeAmount: 1000}
	cases := map[string]string{
		"10,000":    "10000",
		"1,000,000": "1000000",
		"10,000.00": "10000",
		"2500,5":    "2500.5",
		"12,3456":   "12.3456",
		"1000":      "1000",
		" 0.25 ":    "0.25",
	}
	for raw, want := range cases {
		opts, err := ParseForm(Form{InitialCapital: raw}, d)
		require.NoError(t, err, raw)
		assert.True(t, opts.InitialCapital.Equal(decimal.RequireFromString(want)), "%s -> %s", raw, opts.InitialCapital)
	}

	for _, raw := range []string{"1,00,000", "10,000,5", "1.000,50", "2,5,0"} {
		_, err := ParseForm(Form{MaxTradeAmount: raw}, d)
		var cfgErr *ConfigValidationError
		require.True(t, errors.As(err, &cfgErr), raw)
		assert.Equal(t, "maxTradeAmount", cfgErr.Field)
	}
}
