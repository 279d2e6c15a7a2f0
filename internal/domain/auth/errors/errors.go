package errors

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInternal           = errors.New("internal error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnavailable        = errors.New("unavailable")
)

func NewInvalidArgument(msg string) error {
	return errors.Mark(errors.Newf("invalid argument: %s", msg), ErrInvalidArgument)
}

// InvalidArgument classifies cause as ErrInvalidArgument without hiding it.
func InvalidArgument(cause error) error {
	return errors.Mark(cause, ErrInvalidArgument)
}

func WrapInternal(err error, context string) error {
	return errors.Mark(errors.Wrapf(err, "internal error: %s", context), ErrInternal)
}

// InvalidCredentials keeps cause matchable with errors.Is while classifying
// the failure as ErrInvalidCredentials.
func InvalidCredentials(cause error) error {
	return errors.Mark(cause, ErrInvalidCredentials)
}

func NewUnavailable(msg string) error {
	return errors.Mark(errors.Newf("unavailable: %s", msg), ErrUnavailable)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
