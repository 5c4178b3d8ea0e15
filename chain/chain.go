// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain is the narrow capability the validator assumes of the ledger:
// reading the subnet metagraph and rate-limit state, and committing a weight
// vector. Everything else about the ledger is out of scope.
package chain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/hone"
)

// ErrTooSoon is returned by weight commits rejected by the ledger's rate
// limit.
var ErrTooSoon = errors.New("too soon to commit weights")

// ErrNotConnected is returned by reads before Connect succeeded.
var ErrNotConnected = errors.New("not connected to ledger")

// RejectError is a terminal rejection of a weight commit by the ledger.
// The caller must not retry within the same cycle.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("weight commit rejected by chain: %s", e.Reason)
}

// Client is the ledger capability consumed by the validator core.
//
// Reads are retried internally with bounded backoff and surface the error
// after exhaustion; they never block the control loop indefinitely. Commits
// wait for finalization: a nil return means the ledger confirmed inclusion.
type Client interface {
	// Connect establishes or re-establishes a session. Idempotent.
	Connect() error
	Close()

	// MyUID returns the validator's own UID on the subnet, resolved from its
	// hotkey at connect time.
	MyUID() (uint64, error)

	CurrentBlock() (uint64, error)

	// ListWorkers returns all non-validator participants with endpoints.
	ListWorkers() ([]*hone.Worker, error)

	// SubnetSize returns the total number of UIDs on the subnet, validators
	// included. The committed weight vector has exactly this length.
	SubnetSize() (int, error)

	BlocksSinceLastCommit(uid uint64) (uint64, error)
	MinCommitInterval() (uint64, error)
	CommitRevealEnabled() (bool, error)

	// CommitWeights submits the quantized tick vector for all uids.
	CommitWeights(uids []uint64, ticks []uint64, myUID uint64) error

	// CommitWeightsReveal submits normalized float weights through the
	// ledger's commit-reveal path.
	CommitWeightsReveal(uids []uint64, weights []float64, myUID uint64) error
}
