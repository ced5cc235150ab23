package normalize

import (
	"fmt"
	"strings"
)

// DataShapeError reports a record that has no usable date-like key. Keys is
// the sorted raw key set of the offending record.
type DataShapeError struct {
	Keys   []string
	Key    string
	Reason string
}

func (e *DataShapeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("record key %q: %s (keys: %s)", e.Key, e.Reason, strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("%s (keys: %s)", e.Reason, strings.Join(e.Keys, ", "))
}
