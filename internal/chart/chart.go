// Package chart renders result series as standalone echarts HTML pages.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"backdesk/internal/result"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorPrice         = "#3b82f6"
	colorEquity        = "#34d399"

	chartWidthPx  = 1200
	chartHeightPx = 420
)

// ErrEmptySeries is returned when nothing can be plotted.
var ErrEmptySeries = errors.New("series has no points")

// Line builds a line chart of s. Labels and values are paired by index;
// extra labels or values are ignored.
func Line(title string, s result.Series, color string) (*charts.Line, error) {
	n := min(len(s.Labels), len(s.Values))
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", title, ErrEmptySeries)
	}
	lo, hi := bounds(s.Values[:n])
	padding := (hi - lo) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(hi)*0.01)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			Min:       round(lo-padding, 2),
			Max:       round(hi+padding, 2),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	data := make([]opts.LineData, n)
	for i := 0; i < n; i++ {
		data[i] = opts.LineData{Value: round(s.Values[i], 4)}
	}
	line.SetXAxis(s.Labels[:n]).AddSeries(s.Name, data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
	)
	return line, nil
}

// RenderPrice writes the close-price chart as an HTML page.
func RenderPrice(w io.Writer, title string, price result.Series) error {
	line, err := Line(title, price, colorPrice)
	if err != nil {
		return err
	}
	return line.Render(w)
}

// RenderView writes a page with the equity curve above the price series.
// Either series may be empty, but not both.
func RenderView(w io.Writer, title string, v *result.View) error {
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)
	if line, err := Line(title+" equity", v.Equity, colorEquity); err == nil {
		page.AddCharts(line)
	}
	if line, err := Line(title+" price", v.Price, colorPrice); err == nil {
		page.AddCharts(line)
	}
	if len(page.Charts) == 0 {
		return fmt.Errorf("%s: %w", title, ErrEmptySeries)
	}
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func round(val float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(val*p) / p
}
