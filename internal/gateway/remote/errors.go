package remote

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// NetworkError is a transport failure or a non-2xx answer from the service.
// Message is the text to show the user: the service's "error" field when it
// sent one.
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: service returned %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// errorMessage extracts {"error": "..."} from a failure body, falling back to
// the trimmed body or the status text.
func errorMessage(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() && msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
		if msg := gjson.GetBytes(body, "detail"); msg.Exists() && msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return status
}
