// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package hone

import (
	"encoding/json"
	"fmt"
	"time"
)

// Worker is a remote puzzle solver registered on the ledger. The ledger is
// authoritative; rows are refreshed on every scan and never deleted here.
type Worker struct {
	UID             uint64
	Hotkey          string
	Host            string
	Port            uint16
	Stake           float64
	LastUpdateBlock uint64
}

// Endpoint returns the base URL of the worker's HTTP service.
func (w *Worker) Endpoint() string {
	port := w.Port
	if port == 0 {
		port = DefaultWorkerPort
	}
	return fmt.Sprintf("http://%s:%d", w.Host, port)
}

// Metrics is the four-dimensional score of a single answer.
type Metrics struct {
	ExactMatch         float64 `json:"exact_match"`
	PartialCorrectness float64 `json:"partial_correctness"`
	GridSimilarity     float64 `json:"grid_similarity"`
	EfficiencyScore    float64 `json:"efficiency_score"`
}

// QueryOutcome is the result of one (worker, problem) attempt. Created exactly
// once when the attempt completes, fails or times out.
type QueryOutcome struct {
	Block               uint64
	UID                 uint64
	ProblemID           string
	Success             bool
	ResponseTime        float64 // seconds
	Metrics             Metrics
	BaseTask            int
	ChainLength         int
	TransformationChain []string
	NumTrainExamples    int
	ErrorReason         string
	RawResponse         json.RawMessage
	Timestamp           time.Time
}

// ScoreRecord is the per-commit snapshot of a worker's aggregated score.
type ScoreRecord struct {
	UID            uint64
	Score          float64
	ExactMatchRate float64
	PartialAvg     float64
	EfficiencyAvg  float64
	Timestamp      time.Time
}
