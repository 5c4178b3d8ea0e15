// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package hone holds the core types and protocol constants shared across the
// validator.
package hone

import "time"

const (
	// HTTP paths exposed by workers.
	QueryPath     = "/query"
	CheckTaskPath = "/check-task"
	HealthPath    = "/health"

	// BodySignatureHeader carries the hex encoded signature of the request body.
	BodySignatureHeader = "Body-Signature"

	// BlockTime is the target block interval of the ledger.
	BlockTime = 12 * time.Second

	// U16Max is the tick budget a weight vector is quantized to.
	U16Max = 65535

	MaxGridSize = 30
	MinGridSize = 1

	DefaultNetuid     = 5
	DefaultWorkerPort = 8091

	DefaultBurnUID    = 251
	DefaultBurnWeight = 0.99

	// ProtocolVersion is the signed envelope protocol version.
	ProtocolVersion = 1
)
