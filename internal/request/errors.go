package request

import "fmt"

// ConfigValidationError names the option that blocked a submission.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
