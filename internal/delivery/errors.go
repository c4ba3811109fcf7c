package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrorKind classifies a failed delivery attempt. Classification works
// on the error chain, never on message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindConnectionRefused
	KindDNSFailure
	KindHTTPStatus
	KindParseError
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection refused"
	case KindDNSFailure:
		return "dns failure"
	case KindHTTPStatus:
		return "http status"
	case KindParseError:
		return "parse error"
	default:
		return "unknown"
	}
}

// Error is a classified delivery failure. StatusCode is set only when
// Kind is KindHTTPStatus.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Auth() {
		return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
	}
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("collector returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Auth reports an authentication rejection (the device key is bad).
func (e *Error) Auth() bool {
	return e.Kind == KindHTTPStatus && e.StatusCode == http.StatusUnauthorized
}

// RateLimited reports that the collector asked the agent to back off.
func (e *Error) RateLimited() bool {
	return e.Kind == KindHTTPStatus && e.StatusCode == http.StatusTooManyRequests
}

// Classify wraps a transport error in a typed Error by inspecting the
// error chain.
func Classify(err error) *Error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindDNSFailure, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Kind: KindConnectionRefused, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}
