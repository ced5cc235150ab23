// Package report prints backtest views as terminal tables and exports them
// as CSV.
package report

import (
	"fmt"
	"io"
	"strconv"

	"backdesk/internal/result"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
)

// Summary writes the summary statistics as a two-column table.
func Summary(w io.Writer, s result.SummaryView) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.AppendBulk([][]string{
		{"Initial capital", s.InitialCapital},
		{"Final capital", s.FinalCapital},
		{"Total return", s.TotalReturn},
		{"Max drawdown", s.MaxDrawdown},
		{"Winning trades", strconv.Itoa(s.WinningTrades)},
		{"Losing trades", strconv.Itoa(s.LosingTrades)},
		{"Profit factor", s.ProfitFactor},
	})
	table.Render()
}

// Trades writes one row per trade. Profitable and losing rows are marked
// with + and - in the last column.
func Trades(w io.Writer, rows []result.TradeRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Type", "Price", "Amount", "Profit", ""})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_CENTER,
	})
	for _, r := range rows {
		table.Append([]string{r.Date, r.Type, r.Price, r.Amount, r.Profit, marker(r.Class)})
	}
	if len(rows) == 0 {
		table.SetFooter([]string{"", "", "", "", "no trades", ""})
	}
	table.Render()
}

func marker(class string) string {
	switch class {
	case result.ClassProfit:
		return "+"
	case result.ClassLoss:
		return "-"
	default:
		return ""
	}
}

// TradesCSV writes the trade rows with a header line.
func TradesCSV(w io.Writer, rows []result.TradeRow) error {
	if rows == nil {
		rows = []result.TradeRow{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write trades csv: %w", err)
	}
	return nil
}

type equityRow struct {
	Date  string  `csv:"date"`
	Value float64 `csv:"value"`
}

// EquityCSV writes the equity series as date,value rows.
func EquityCSV(w io.Writer, s result.Series) error {
	n := min(len(s.Labels), len(s.Values))
	rows := make([]equityRow, n)
	for i := 0; i < n; i++ {
		rows[i] = equityRow{Date: s.Labels[i], Value: s.Values[i]}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write equity csv: %w", err)
	}
	return nil
}
