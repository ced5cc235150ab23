package result

import (
	"math"
	"time"

	"backdesk/internal/market"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const NotAvailable = "N/A"

// Trade row classes.
const (
	ClassProfit = "profit"
	ClassLoss   = "loss"
	ClassNone   = "none"
)

type SummaryView struct {
	InitialCapital string `json:"initialCapital"`
	FinalCapital   string `json:"finalCapital"`
	TotalReturn    string `json:"totalReturn"`
	ReturnClass    string `json:"returnClass"`
	MaxDrawdown    string `json:"maxDrawdown"`
	WinningTrades  int    `json:"winningTrades"`
	LosingTrades   int    `json:"losingTrades"`
	ProfitFactor   string `json:"profitFactor"`
}

type TradeRow struct {
	Date   string `json:"date" csv:"date"`
	Type   string `json:"type" csv:"type"`
	Price  string `json:"price" csv:"price"`
	Amount string `json:"amount" csv:"amount"`
	Profit string `json:"profit" csv:"profit"`
	Class  string `json:"class" csv:"class"`
}

// Series is what the charting collaborator consumes.
type Series struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type View struct {
	Summary SummaryView `json:"summary"`
	Trades  []TradeRow  `json:"trades"`
	Equity  Series      `json:"equity"`
	Price   Series      `json:"price"`
}

// Classify derives the row class from the sign of profit alone. A nil
// profit is neither, and a zero profit counts as a profit.
func Classify(profit *float64) string {
	switch {
	case profit == nil:
		return ClassNone
	case *profit < 0:
		return ClassLoss
	default:
		return ClassProfit
	}
}

// FormatPercent renders 12.34 as "12.34%".
func FormatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// FormatMoney renders 10000 as "10,000.00".
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f", v)
}

func FormatProfitFactor(pf *float64) string {
	switch {
	case pf == nil || math.IsNaN(*pf):
		return NotAvailable
	case math.IsInf(*pf, 1):
		return "∞"
	case math.IsInf(*pf, -1):
		return "-∞"
	}
	return decimal.NewFromFloat(*pf).StringFixed(2)
}

func formatProfit(profit *float64) string {
	if profit == nil {
		return NotAvailable
	}
	return FormatMoney(*profit)
}

// FormatTime drops the clock when the timestamp falls on midnight.
func FormatTime(ts time.Time) string {
	ts = ts.UTC()
	if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 {
		return ts.Format("2006-01-02")
	}
	return ts.Format("2006-01-02 15:04")
}

// Present builds the display model. ds may be nil, in which case the price
// series is empty.
func Present(res *BacktestResult, ds *market.Dataset) View {
	ret := res.TotalReturnPct
	view := View{
		Summary: SummaryView{
			InitialCapital: FormatMoney(res.InitialCapital),
			FinalCapital:   FormatMoney(res.FinalCapital),
			TotalReturn:    FormatPercent(res.TotalReturnPct),
			ReturnClass:    Classify(&ret),
			MaxDrawdown:    FormatPercent(res.MaxDrawdownPct),
			WinningTrades:  res.WinningTrades,
			LosingTrades:   res.LosingTrades,
			ProfitFactor:   FormatProfitFactor(res.ProfitFactor),
		},
		Trades: make([]TradeRow, 0, len(res.Trades)),
		Equity: EquitySeries(res),
		Price:  PriceSeries(ds),
	}
	for _, t := range res.Trades {
		view.Trades = append(view.Trades, TradeRow{
			Date:   FormatTime(t.Timestamp),
			Type:   t.Type,
			Price:  FormatMoney(t.Price),
			Amount: FormatMoney(t.Amount),
			Profit: formatProfit(t.Profit),
			Class:  Classify(t.Profit),
		})
	}
	return view
}

func EquitySeries(res *BacktestResult) Series {
	s := Series{
		Name:   "Portfolio value",
		Labels: make([]string, 0, len(res.EquityCurve)),
		Values: make([]float64, 0, len(res.EquityCurve)),
	}
	for _, p := range res.EquityCurve {
		s.Labels = append(s.Labels, FormatTime(p.Timestamp))
		s.Values = append(s.Values, p.Value)
	}
	return s
}

// PriceSeries plots close values; records with a missing close are skipped.
func PriceSeries(ds *market.Dataset) Series {
	s := Series{Name: "Close price", Labels: []string{}, Values: []float64{}}
	if ds == nil {
		return s
	}
	for _, r := range ds.Records {
		c, ok := r.Close.Float()
		if !ok {
			continue
		}
		s.Labels = append(s.Labels, FormatTime(r.Timestamp))
		s.Values = append(s.Values, c)
	}
	return s
}
