// Package service implements the account and license lifecycles on top of
// the repository layer. Handlers translate the sentinel errors below into
// HTTP statuses; the messages are deliberately generic where account
// enumeration is a concern.
package service

import "errors"

var (
	// ErrDuplicateEmail – registration with an email that already has an account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials – unknown email or wrong password; the two cases
	// share one error on purpose so login cannot be used to probe for accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed – correct credentials but the address was never
	// confirmed; clients route the user to the resend-confirmation flow.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrInvalidOrExpiredToken – confirmation/reset token unknown, expired or
	// already spent.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrAlreadyConfirmed – resend requested for a confirmed account.
	ErrAlreadyConfirmed = errors.New("email already confirmed")
	// ErrNotFound – the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyOwnedByOther – license activation attempted on a key owned by
	// a different user.
	ErrAlreadyOwnedByOther = errors.New("license already activated by another user")
	// ErrDeactivated – license activation attempted while is_active=false.
	// Distinct from expiry: a deactivated license may be unexpired.
	ErrDeactivated = errors.New("license deactivated")
	// ErrNoFieldsProvided – admin partial update with an empty patch.
	ErrNoFieldsProvided = errors.New("no fields provided")
	// ErrInvalidDuration – a timed duration type without a positive day
	// count; accepting it would mint a license that never expires.
	ErrInvalidDuration = errors.New("duration_days required for timed licenses")
	// ErrUnauthenticated – missing, malformed or unverifiable session token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound – a verified token whose subject no longer resolves.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden – authenticated but lacking the admin role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable – transient store or mailer fault, safe to retry.
	ErrUnavailable = errors.New("temporarily unavailable")
)
