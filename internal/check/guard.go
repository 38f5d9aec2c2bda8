package check

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrAccessDenied is returned when a required token is missing or wrong.
	ErrAccessDenied = errors.New("access forbidden")

	// ErrTokenNotConfigured is returned when a request carries a token but
	// none is configured. This is a server misconfiguration, not a pass.
	ErrTokenNotConfigured = errors.New("token provided but no token is configured")
)

// Deny reasons.
const (
	ReasonMissingToken = "missing token"
	ReasonInvalidToken = "invalid token"
)

// Decision is the outcome of token verification.
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorize compares the presented token with the configured one.
func Authorize(configured, presented string) (Decision, error) {
	if configured == "" {
		if presented != "" {
			return Decision{}, ErrTokenNotConfigured
		}
		return Decision{Allowed: true}, nil
	}

	if presented == "" {
		return Decision{Reason: ReasonMissingToken}, nil
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return Decision{Reason: ReasonInvalidToken}, nil
	}

	return Decision{Allowed: true}, nil
}
