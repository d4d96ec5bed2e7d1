package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type ErrorKind int

const (
	KindConnection ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindServerError
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	default:
		return "error"
	}
}

// Error is the single classified error type every transport call can
// return. Callers branch on Kind, never on raw status codes.
type Error struct {
	Kind       ErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func connectionError(err error) *Error {
	return &Error{Kind: KindConnection, cause: err}
}

func classify(resp *http.Response, message string) *Error {
	e := &Error{Status: resp.StatusCode, Message: message}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		e.Kind = KindForbidden
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	case resp.StatusCode >= 500:
		e.Kind = KindServerError
	default:
		e.Kind = KindOther
	}

	return e
}

func kindOf(err error) (ErrorKind, bool) {
	var te *Error
	if !errors.As(err, &te) {
		return 0, false
	}
	return te.Kind, true
}

func IsUnauthorized(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUnauthorized
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsConnection(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConnection
}
