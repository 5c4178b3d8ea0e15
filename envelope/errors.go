// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package envelope

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Verification failures. Each incoming envelope is rejected with exactly one
// of these; protocol violations are never retried.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrBadNonceType       = errors.New("invalid nonce type")
	ErrBadSignatureFormat = errors.New("invalid signature format")
	ErrSignatureInvalid   = errors.New("signature verification failed")
	ErrMalformedJSON      = errors.New("invalid JSON")
)

// StaleError is returned when the envelope nonce is older than AllowedDelta.
type StaleError struct {
	Age time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("request too stale (%.1fs old)", e.Age.Seconds())
}

// IsStale reports whether err is a staleness rejection.
func IsStale(err error) bool {
	var stale *StaleError
	return errors.As(err, &stale)
}
