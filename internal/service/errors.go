package service

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/policy"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
)

// Error carries a client-facing message and unwraps to one of the sentinel
// kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func fail(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func denied(d policy.Decision, what string) error {
	if d == policy.Forbidden {
		return fail(ErrForbidden, "only the owner can change this %s", what)
	}
	return fail(ErrNotFound, "%s not found", what)
}
