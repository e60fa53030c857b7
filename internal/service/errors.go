package service

import (
	"errors"

	"github.com/shinyyama/unimarket-backend/internal/repository"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)

// Error carries a caller-facing message while matching one of the sentinels above.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func validationError(msg string) error { return &Error{kind: ErrValidation, msg: msg} }

func notFoundError(msg string) error { return &Error{kind: ErrNotFound, msg: msg} }

func forbiddenError(msg string) error { return &Error{kind: ErrForbidden, msg: msg} }

// translate maps repository misses onto a not-found error with msg.
func translate(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError(msg)
	}
	return err
}
