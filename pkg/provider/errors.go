package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies an adapter failure.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindAuth            Kind = "auth"
	KindRateLimited     Kind = "rate_limited"
	KindInvalidResponse Kind = "invalid_response"
	KindNetwork         Kind = "network"
)

// Error is returned by adapters for every failed translation call.
type Error struct {
	Provider string
	Kind     Kind
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a provider error, or "" when err is not one.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// retryableWithNextKey reports whether another credential may succeed.
func retryableWithNextKey(err error) bool {
	k := KindOf(err)
	return k == KindAuth || k == KindRateLimited
}

func statusError(provider string, status int, msg string) *Error {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status >= 500:
		kind = KindNetwork
	default:
		kind = KindInvalidResponse
	}
	return &Error{Provider: provider, Kind: kind, Status: status, Err: errors.New(msg)}
}

func transportError(ctx context.Context, provider string, err error) *Error {
	kind := KindNetwork
	var ne net.Error
	switch {
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		kind = KindTimeout
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

func invalidResponse(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindInvalidResponse, Err: err}
}
