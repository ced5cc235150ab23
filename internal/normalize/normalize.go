package normalize

import (
	"sort"
	"time"

	"backdesk/internal/market"
)

// Normalize converts one raw record. It fails only when no date-like key
// resolves to a parseable timestamp; numeric fields that are absent or
// unparseable become market.Missing.
func Normalize(raw map[string]any) (market.OHLCVRecord, error) {
	keys := sortedKeys(raw)
	ts, err := resolveTimestamp(raw, keys)
	if err != nil {
		return market.OHLCVRecord{}, err
	}
	return market.OHLCVRecord{
		Timestamp: ts,
		Open:      numeric(raw, keys, FieldOpen),
		High:      numeric(raw, keys, FieldHigh),
		Low:       numeric(raw, keys, FieldLow),
		Close:     numeric(raw, keys, FieldClose),
		Volume:    numeric(raw, keys, FieldVolume),
	}, nil
}

// ResolveTimestamp applies the date resolution rules to any keyed object,
// so trades and equity points share the record parser.
func ResolveTimestamp(raw map[string]any) (time.Time, error) {
	return resolveTimestamp(raw, sortedKeys(raw))
}

func resolveTimestamp(raw map[string]any, keys []string) (time.Time, error) {
	key := Resolve(keys, FieldTimestamp)
	if key == "" {
		return time.Time{}, &DataShapeError{Keys: keys, Reason: "no date-like key"}
	}
	ts, ok := ParseTimestamp(raw[key])
	if !ok {
		return time.Time{}, &DataShapeError{Keys: keys, Key: key, Reason: "unparseable timestamp"}
	}
	return ts, nil
}

func numeric(raw map[string]any, keys []string, f Field) market.Value {
	key := Resolve(keys, f)
	if key == "" {
		return market.Missing()
	}
	return market.ParseValue(raw[key])
}

func sortedKeys(raw map[string]any) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
