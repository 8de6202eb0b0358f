package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can pick a recovery path.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindMalformedResponse Kind = "malformed_response"
	KindCredential        Kind = "credential"
	KindNetwork           Kind = "network"
	KindStorage           Kind = "storage"
)

// Error is the single error type of the taxonomy. Op names the failing
// operation, Msg is a caller-facing detail, Err the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrCredential        = &Error{Kind: KindCredential}
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrStorage           = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Msg == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Malformed(op string, err error) error {
	return &Error{Kind: KindMalformedResponse, Op: op, Err: err}
}

func Credential(op string, err error) error {
	return &Error{Kind: KindCredential, Op: op, Err: err}
}

func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindStorage {
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// KindOf returns the taxonomy kind of err, or "" when err is outside it.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage maps an error to the one message shown for its kind.
// Raw provider strings never reach the user.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Kind {
	case KindValidation:
		if e.Msg != "" {
			return e.Msg
		}
		return "Please check your input and try again."
	case KindMalformedResponse:
		return "The analysis service returned an unexpected answer. Please try again."
	case KindCredential:
		return "The AI service rejected the access credential. Please re-enter your credential."
	case KindNetwork:
		return "Connection error, try again."
	case KindStorage:
		return "Your data could not be saved on this device."
	}
	return "Something went wrong. Please try again."
}

// HTTPStatus maps a taxonomy kind to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindCredential:
		return http.StatusUnauthorized
	case KindMalformedResponse:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindStorage:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
