package blockhub

import (
	"errors"
	"fmt"
)

var (
	ErrMissingArguments        = errors.New("missing arguments")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrRequest                 = errors.New("bad request")
	ErrUserNotFound            = errors.New("user not found")
	ErrIncorrectUserOrPassword = errors.New("incorrect username or password")
	ErrNotAuthorized           = errors.New("not authorized")
	ErrSessionNotFound         = errors.New("session not found")
	ErrUsernameExhausted       = errors.New("no free username available")
)

// ArgumentError names the request field that failed validation.
// Err is either ErrMissingArguments or ErrInvalidArgument.
type ArgumentError struct {
	Field string
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func missingArgument(field string) error {
	return &ArgumentError{Field: field, Err: ErrMissingArguments}
}

func invalidArgument(field string) error {
	return &ArgumentError{Field: field, Err: ErrInvalidArgument}
}

// NotFoundError carries the username that could not be found.
type NotFoundError struct {
	Username string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.Username)
}

func (e *NotFoundError) Unwrap() error { return ErrUserNotFound }

func userNotFound(username string) error {
	return &NotFoundError{Username: username}
}

// RequestError is a conflict with existing state, such as a taken username.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return ErrRequest }

func requestError(format string, args ...interface{}) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}
