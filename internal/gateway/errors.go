package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies every failure the gateway returns.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindServerError        Kind = "server_error"
	KindNetworkUnreachable Kind = "network_unreachable"
	KindTimeout            Kind = "timeout"
	KindMalformedResponse  Kind = "malformed_response"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrServerError        = errors.New("server error")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrTimeout            = errors.New("request timed out")
	ErrMalformedResponse  = errors.New("malformed response")
)

var sentinels = map[Kind]error{
	KindNotFound:           ErrNotFound,
	KindForbidden:          ErrForbidden,
	KindServerError:        ErrServerError,
	KindNetworkUnreachable: ErrNetworkUnreachable,
	KindTimeout:            ErrTimeout,
	KindMalformedResponse:  ErrMalformedResponse,
}

// Error is the typed failure of one gateway operation.
type Error struct {
	Op         string `json:"op"`
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"statusCode,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Err        error  `json:"-"`
}

// Error formats the failure for logs.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying transport or decode error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the gateway kind of err, or "" when err did not come from the gateway.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

// Retryable reports whether polling may continue after kind.
func Retryable(kind Kind) bool {
	switch kind {
	case KindNetworkUnreachable, KindTimeout, KindServerError, KindMalformedResponse:
		return true
	default:
		return false
	}
}

// statusError maps a non-2xx response onto a kind.
func statusError(op string, code int, detail string) *Error {
	kind := KindServerError
	switch {
	case code == http.StatusNotFound:
		kind = KindNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = KindForbidden
	}
	return &Error{Op: op, Kind: kind, StatusCode: code, Detail: detail}
}

// transportError maps a failed round trip onto timeout or network_unreachable.
func transportError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Op: op, Kind: KindTimeout, Err: err}
	}
	return &Error{Op: op, Kind: KindNetworkUnreachable, Err: err}
}

// malformed reports an undecodable or semantically invalid payload.
func malformed(op, detail string, err error) *Error {
	return &Error{Op: op, Kind: KindMalformedResponse, Detail: detail, Err: err}
}
