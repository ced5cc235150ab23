package ingest

import "fmt"

// InputValidationError is raised for missing or contradictory user input
// before any record is normalized or any request is sent.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &InputValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
