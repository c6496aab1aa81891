package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

// TransportError is a network-level failure: connection refused, timeout,
// or an unparseable response. The HTTP layer has already retried it.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a success:false response envelope. It is not a transport
// failure: the request reached the provider, which rejected the operation.
// Callers inspect the raw error list to decide whether the rejection is
// benign (already exists) or real.
type APIError struct {
	Status int
	Errors []cloudflare.ResponseInfo
	// Raw is the provider's errors payload verbatim, for the run summary.
	Raw json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("provider: request failed with status %d", e.Status)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, info := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", info.Code, info.Message))
	}
	return "provider: " + strings.Join(msgs, "; ")
}

func (e *APIError) HasCode(code int) bool {
	for _, info := range e.Errors {
		if info.Code == code {
			return true
		}
	}
	return false
}

func (e *APIError) MessageContains(substr string) bool {
	for _, info := range e.Errors {
		if strings.Contains(strings.ToLower(info.Message), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}
