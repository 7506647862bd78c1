package provider

import (
	"fmt"
	"time"
)

// ConnectivityError is a transport-level failure raised before any response
// arrived: DNS, dial, TLS, or a broken connection.
type ConnectivityError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// TimeoutError marks a deadline expiry. It is distinguishable from a
// caller-initiated cancellation even though both abort through the same
// context primitive.
type TimeoutError struct {
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("timeout after %s", e.After)
	}
	return "timeout"
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// CancellationError marks a caller-initiated abort.
type CancellationError struct {
	Err error
}

func (e *CancellationError) Error() string { return "request cancelled" }

func (e *CancellationError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx response. Body holds the best-effort response
// text; RetryAfterSeconds is parsed from the Retry-After header when present.
type HTTPStatusError struct {
	StatusCode        int
	Status            string
	Body              string
	RetryAfterSeconds *float64
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("http %d %s", e.StatusCode, e.Status)
}

// DecodeError means a response or stream payload did not match the expected
// provider shape. Payload retains the offending bytes for diagnostics.
type DecodeError struct {
	Provider string
	Payload  string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: decode: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: decode: payload does not match expected shape", e.Provider)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedOperationError is raised synchronously, before any network call,
// when a capability is not offered by the provider or model.
type UnsupportedOperationError struct {
	Provider Type
	Op       string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider, e.Op)
}
