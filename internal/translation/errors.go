package translation

import (
	"fmt"
	"strings"
)

// HTTPError is returned when the completion endpoint answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
	// Message is the upstream error.message field when the body carried one.
	Message string
}

func (e *HTTPError) Error() string {
	detail := strings.TrimSpace(e.Message)
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	if detail == "" {
		return fmt.Sprintf("completion endpoint status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion endpoint status %d: %s", e.StatusCode, detail)
}

// TransportError is returned when no response was obtained: connection refused,
// DNS failure, timeout, or a body that could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when a 2xx response does not carry a completion.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed completion response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed completion response: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
