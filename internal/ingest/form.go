package ingest

import (
	"strings"
	"time"

	"backdesk/internal/normalize"
)

const dateLayout = "2006-01-02"

// FetchForm is the historical-data request as typed by the user.
type FetchForm struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Interval  string `json:"interval"`
}

// Normalize validates the form and fills defaults: endDate is today (UTC) and
// interval is 1d. Dates are rewritten as YYYY-MM-DD.
func (f FetchForm) Normalize(now time.Time) (FetchForm, error) {
	out := FetchForm{
		Ticker:   strings.ToUpper(strings.TrimSpace(f.Ticker)),
		Interval: strings.ToLower(strings.TrimSpace(f.Interval)),
	}
	if out.Ticker == "" {
		return FetchForm{}, invalid("ticker", "ticker is required")
	}
	if strings.TrimSpace(f.StartDate) == "" {
		return FetchForm{}, invalid("startDate", "start date is required")
	}
	start, ok := normalize.ParseTimestamp(f.StartDate)
	if !ok {
		return FetchForm{}, invalid("startDate", "unrecognised date %q", f.StartDate)
	}
	end := now.UTC()
	if strings.TrimSpace(f.EndDate) != "" {
		if end, ok = normalize.ParseTimestamp(f.EndDate); !ok {
			return FetchForm{}, invalid("endDate", "unrecognised date %q", f.EndDate)
		}
	}
	start, end = truncateDay(start), truncateDay(end)
	if start.After(end) {
		return FetchForm{}, invalid("startDate", "start date %s is after end date %s", start.Format(dateLayout), end.Format(dateLayout))
	}
	if out.Interval == "" {
		out.Interval = DefaultInterval
	}
	if _, ok := ParseInterval(out.Interval); !ok {
		return FetchForm{}, invalid("interval", "unsupported interval %q (allowed: %s)", f.Interval, strings.Join(SupportedIntervals(), ", "))
	}
	out.StartDate = start.Format(dateLayout)
	out.EndDate = end.Format(dateLayout)
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
