package result

import (
	"fmt"
	"strings"
)

// ResultShapeError reports a backtest response that cannot be displayed.
type ResultShapeError struct {
	Missing []string
	Reason  string
}

func (e *ResultShapeError) Error() string {
	switch {
	case len(e.Missing) > 0 && e.Reason != "":
		return fmt.Sprintf("backtest response %s; missing fields: %s", e.Reason, strings.Join(e.Missing, ", "))
	case len(e.Missing) > 0:
		return "backtest response is missing fields: " + strings.Join(e.Missing, ", ")
	default:
		return "backtest response " + e.Reason
	}
}

func shapeErr(format string, args ...any) error {
	return &ResultShapeError{Reason: fmt.Sprintf(format, args...)}
}
