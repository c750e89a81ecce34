package auth

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrAccountInactive    = errors.New("User account is inactive")
	ErrInvalidResetToken  = errors.New("Invalid or expired reset token")
	ErrIncorrectPassword  = errors.New("Current password is incorrect")
	ErrInvalidToken       = errors.New("Invalid or expired token")
	ErrUnauthorized       = errors.New("Authentication required")
	ErrForbidden          = errors.New("Forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
)

// publicError carries a client-facing message and unwraps to one of the
// sentinels above so callers can still branch with errors.Is.
type publicError struct {
	kind error
	msg  string
}

func (e *publicError) Error() string { return e.msg }
func (e *publicError) Unwrap() error { return e.kind }

// PublicError returns an error with a client-facing message that matches kind
// under errors.Is.
func PublicError(kind error, msg string) error {
	return &publicError{kind: kind, msg: msg}
}

func invalidInput(msg string) error {
	return &publicError{kind: ErrInvalidInput, msg: msg}
}

func notFound(msg string) error {
	return &publicError{kind: ErrNotFound, msg: msg}
}

func conflict(msg string) error {
	return &publicError{kind: ErrConflict, msg: msg}
}
