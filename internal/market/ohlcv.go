package market

import (
	"encoding/json"
	"fmt"
	"time"
)

// OHLCVRecord is the canonical price bar. Timestamp is always UTC.
type OHLCVRecord struct {
	Timestamp time.Time
	Open      Value
	High      Value
	Low       Value
	Close     Value
	Volume    Value
}

// wire keys match the column names the backtest service reads.
type ohlcvWire struct {
	Date   string `json:"Date"`
	Open   Value  `json:"Open"`
	High   Value  `json:"High"`
	Low    Value  `json:"Low"`
	Close  Value  `json:"Close"`
	Volume Value  `json:"Volume"`
}

func (r OHLCVRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(ohlcvWire{
		Date:   r.Timestamp.UTC().Format(time.RFC3339Nano),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	})
}

func (r *OHLCVRecord) UnmarshalJSON(data []byte) error {
	var w ohlcvWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Date)
	if err != nil {
		return fmt.Errorf("record Date %q: %w", w.Date, err)
	}
	*r = OHLCVRecord{
		Timestamp: ts.UTC(),
		Open:      w.Open,
		High:      w.High,
		Low:       w.Low,
		Close:     w.Close,
		Volume:    w.Volume,
	}
	return nil
}

// Dataset is immutable once built; callers that need to change it work on a Clone.
type Dataset struct {
	Ticker    string        `json:"ticker,omitempty"`
	StartDate string        `json:"startDate,omitempty"`
	EndDate   string        `json:"endDate,omitempty"`
	Interval  string        `json:"interval,omitempty"`
	Records   []OHLCVRecord `json:"data"`
}

// CheckOrder reports the first index whose timestamp goes backwards.
func (d *Dataset) CheckOrder() error {
	if d == nil {
		return nil
	}
	for i := 1; i < len(d.Records); i++ {
		if d.Records[i].Timestamp.Before(d.Records[i-1].Timestamp) {
			return fmt.Errorf("record %d (%s) precedes record %d (%s)", i,
				d.Records[i].Timestamp.Format(time.RFC3339), i-1,
				d.Records[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Span returns the first and last record timestamps.
func (d *Dataset) Span() (time.Time, time.Time, bool) {
	if d.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.Records[0].Timestamp, d.Records[len(d.Records)-1].Timestamp, true
}

func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := *d
	out.Records = append([]OHLCVRecord(nil), d.Records...)
	return &out
}
