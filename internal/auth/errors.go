package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown identifiers and wrong passwords
	// alike; the two are never distinguished to the client.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLockedOut indicates a throttle or rate limit denied the attempt
	// before credentials were even considered.
	ErrLockedOut = errors.New("too many attempts")
)

// CredentialsError is a failed login with the caller's remaining attempt
// budget attached. Unwraps to ErrInvalidCredentials.
type CredentialsError struct {
	Remaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials (%d attempts remaining)", e.Remaining)
}

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }

// CodeLimitError is a denied code issuance carrying the email dimension's
// remaining budget. Unwraps to ErrLockedOut.
type CodeLimitError struct {
	Remaining int
}

func (e *CodeLimitError) Error() string {
	return fmt.Sprintf("too many code requests (%d remaining)", e.Remaining)
}

func (e *CodeLimitError) Unwrap() error { return ErrLockedOut }

// LockoutError is a denied attempt with the window expiry attached. Unwraps
// to ErrLockedOut.
type LockoutError struct {
	RetryAt time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAt.Format(time.RFC3339))
}

func (e *LockoutError) Unwrap() error { return ErrLockedOut }
