// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without parsing driver
// error strings everywhere. ErrEmailExists and ErrKeyExists both map to
// MySQL duplicate-key violations (error 1062) on their respective unique
// columns.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned when an INSERT into users collides with the
// unique email index. The account service translates this into its
// duplicate-email error.
var ErrEmailExists = errors.New("email already exists")

// ErrKeyExists is returned when an INSERT into licenses collides with the
// unique license_key index. The license service retries key generation on
// this error.
var ErrKeyExists = errors.New("license key already exists")

// isDuplicate reports whether err looks like a MySQL duplicate-entry
// violation (error code 1062).
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
