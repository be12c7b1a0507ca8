package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a failed generation call.
type Kind int

const (
	// KindTransportOrServer covers network failures and non-success statuses
	// other than auth and throttling.
	KindTransportOrServer Kind = iota
	// KindUnauthenticated means the upstream rejected the credential.
	KindUnauthenticated
	// KindRateLimited means the upstream throttled the request.
	KindRateLimited
	// KindMalformedResponse means a success status with an unusable body.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "transport_or_server_error"
	}
}

// Message is the user-facing text for a failure of this kind.
func (k Kind) Message() string {
	switch k {
	case KindUnauthenticated:
		return "Invalid API key. Check the API key in the plugin settings."
	case KindRateLimited:
		return "Rate limit exceeded. Please retry later."
	default:
		return "Failed to generate text. Please try again later."
	}
}

// Error is a classified generation failure.
type Error struct {
	Kind       Kind
	StatusCode int // zero when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindTransportOrServer when err
// is not a *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransportOrServer
}

// classifyStatus maps a non-2xx status to a Kind.
func classifyStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindUnauthenticated
	case code == 429:
		return KindRateLimited
	default:
		return KindTransportOrServer
	}
}
