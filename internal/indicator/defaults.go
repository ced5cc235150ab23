package indicator

func bound(f float64) *float64 { return &f }

func numberParam(name, label string, def, lo, hi float64) ParamSpec {
	return ParamSpec{Name: name, Label: label, Kind: KindNumber, Default: Number(def), Min: bound(lo), Max: bound(hi), Step: bound(1)}
}

var defaultDescriptors = []Descriptor{
	{
		ID: "sma", Label: "SMA", Description: "Simple moving average",
		Params: []ParamSpec{numberParam("window", "Period", 20, 5, 200)},
	},
	{
		ID: "ema", Label: "EMA", Description: "Exponential moving average",
		Params: []ParamSpec{numberParam("window", "Period", 20, 5, 200)},
	},
	{
		ID: "rsi", Label: "RSI", Description: "Relative strength index",
		Params: []ParamSpec{
			numberParam("window", "Period", 14, 5, 50),
			numberParam("overbought", "Overbought", 70, 50, 90),
			numberParam("oversold", "Oversold", 30, 10, 50),
		},
	},
	{
		ID: "bollinger", Label: "Bollinger Bands", Description: "Bollinger bands",
		Params: []ParamSpec{
			numberParam("window", "Period", 20, 5, 50),
			{Name: "std_dev", Label: "Std. deviations", Kind: KindNumber, Default: Number(2), Min: bound(1), Max: bound(3), Step: bound(0.1)},
		},
	},
	{
		ID: "macd", Label: "MACD", Description: "Moving average convergence divergence",
		Params: []ParamSpec{
			numberParam("fast", "Fast period", 12, 5, 26),
			numberParam("slow", "Slow period", 26, 10, 50),
			numberParam("signal", "Signal period", 9, 5, 20),
		},
	},
}

// DefaultCatalog is the built-in set of five indicators.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultDescriptors)
	if err != nil {
		panic(err)
	}
	return c
}
