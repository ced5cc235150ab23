// Package normalize turns raw price records of any known shape into the
// canonical market.OHLCVRecord.
package normalize

import (
	"sort"
	"strings"
)

// Field is a canonical column and the lower-case names that identify it.
type Field struct {
	Name    string
	Aliases []string
}

var (
	FieldTimestamp = Field{Name: "timestamp", Aliases: []string{"date", "datetime", "timestamp"}}
	FieldOpen      = Field{Name: "open", Aliases: []string{"open"}}
	FieldHigh      = Field{Name: "high", Aliases: []string{"high"}}
	FieldLow       = Field{Name: "low", Aliases: []string{"low"}}
	FieldClose     = Field{Name: "close", Aliases: []string{"close"}}
	FieldVolume    = Field{Name: "volume", Aliases: []string{"volume"}}
)

// Resolve picks the raw key for f, or "" when none matches.
//
// An exact case-insensitive match on any alias wins. Otherwise a key whose
// bare name contains an alias wins; plain keys beat composite ones, then
// shorter keys, then lexical order. Alias order decides between aliases.
func Resolve(keys []string, f Field) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	for _, alias := range f.Aliases {
		for _, k := range sorted {
			if strings.EqualFold(strings.TrimSpace(k), alias) {
				return k
			}
		}
	}

	for _, alias := range f.Aliases {
		var candidates []string
		for _, k := range sorted {
			if strings.Contains(BareName(k), alias) {
				candidates = append(candidates, k)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			ci, cj := IsComposite(candidates[i]), IsComposite(candidates[j])
			if ci != cj {
				return !ci
			}
			if len(candidates[i]) != len(candidates[j]) {
				return len(candidates[i]) < len(candidates[j])
			}
			return candidates[i] < candidates[j]
		})
		return candidates[0]
	}
	return ""
}

// IsComposite reports whether key looks like a stringified tuple or list,
// e.g. "('Close', 'AAPL')".
func IsComposite(key string) bool {
	k := strings.TrimSpace(key)
	if len(k) < 2 || !strings.Contains(k, ",") {
		return false
	}
	return (k[0] == '(' && k[len(k)-1] == ')') || (k[0] == '[' && k[len(k)-1] == ']')
}

// BareName lower-cases key; for composite keys it keeps only the first
// component with quotes and punctuation stripped, discarding the symbol part.
func BareName(key string) string {
	k := strings.TrimSpace(key)
	if IsComposite(k) {
		k = k[1 : len(k)-1]
		if idx := strings.Index(k, ","); idx >= 0 {
			k = k[:idx]
		}
		k = strings.Trim(strings.TrimSpace(k), `'"`+"`")
	}
	return strings.ToLower(strings.TrimSpace(k))
}
