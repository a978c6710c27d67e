// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package session

import (
	"strings"

	"github.com/juju/errors"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

const (
	// ErrBusy is returned when a verification code arrives while another
	// session mutation is still in flight.
	ErrBusy = errors.ConstError("another session operation is in progress")

	// ErrNotAwaitingCode is returned when a verification code is submitted
	// but the remote account has not asked for one.
	ErrNotAwaitingCode = errors.ConstError("verification code not requested")

	// ErrCodeRejected is returned when the remote account rejected the
	// verification code. The session keeps waiting for another code.
	ErrCodeRejected = errors.ConstError("verification code rejected")
)

var errInvalidCodeFormat = errors.NewNotValid(nil, "verification code must be exactly 6 digits")

// ValidateCode checks that code is exactly CodeLength ASCII digits.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return errInvalidCodeFormat
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return errInvalidCodeFormat
		}
	}
	return nil
}

// NormalizeCode strips every character that is not an ASCII digit, so that
// operator input such as "123-456" or "123 456" becomes "123456".
func NormalizeCode(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}
