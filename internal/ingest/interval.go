package ingest

import (
	"sort"
	"strings"
	"time"
)

// Interval is a bar size accepted by the historical fetch endpoint.
type Interval struct {
	Key      string
	Duration time.Duration
}

var supportedIntervals = map[string]Interval{
	"1m":  {Key: "1m", Duration: time.Minute},
	"5m":  {Key: "5m", Duration: 5 * time.Minute},
	"15m": {Key: "15m", Duration: 15 * time.Minute},
	"30m": {Key: "30m", Duration: 30 * time.Minute},
	"60m": {Key: "60m", Duration: time.Hour},
	"1h":  {Key: "1h", Duration: time.Hour},
	"4h":  {Key: "4h", Duration: 4 * time.Hour},
	"1d":  {Key: "1d", Duration: 24 * time.Hour},
	"1wk": {Key: "1wk", Duration: 7 * 24 * time.Hour},
	"1mo": {Key: "1mo", Duration: 31 * 24 * time.Hour},
}

const DefaultInterval = "1d"

func ParseInterval(input string) (Interval, bool) {
	iv, ok := supportedIntervals[strings.ToLower(strings.TrimSpace(input))]
	return iv, ok
}

// SupportedIntervals returns the accepted keys ordered by bar size.
func SupportedIntervals() []string {
	keys := make([]string, 0, len(supportedIntervals))
	for k := range supportedIntervals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := supportedIntervals[keys[i]].Duration, supportedIntervals[keys[j]].Duration
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// spanTolerance is how far records may sit outside the declared dates.
func spanTolerance(interval string) time.Duration {
	tol := 24 * time.Hour
	if iv, ok := ParseInterval(interval); ok && iv.Duration > tol {
		tol = iv.Duration
	}
	return tol
}
