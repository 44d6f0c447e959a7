package llm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindUpstream covers timeouts, network failures, 5xx and malformed responses.
	KindUpstream Kind = iota
	// KindAuthentication means the endpoint rejected the token (HTTP 401).
	KindAuthentication
	// KindBilling means the account is out of credits (HTTP 402).
	KindBilling
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindBilling:
		return "billing"
	default:
		return "upstream"
	}
}

var (
	// ErrMissingToken is returned by NewClient when no token is configured.
	ErrMissingToken = errors.New("llm: token not configured")

	ErrAuthentication = errors.New("llm: authentication failed, check token")
	ErrBilling        = errors.New("llm: billing issue, check credits")
	ErrUpstream       = errors.New("llm: upstream request failed")
)

// Error is the typed failure returned by Client.Generate.
type Error struct {
	Kind       Kind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("llm %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match on the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrBilling:
		return e.Kind == KindBilling
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

// Retryable reports whether another attempt could succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstream
}
