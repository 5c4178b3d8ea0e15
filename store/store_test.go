// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hone-subnet/hone/hone"
)

func newTestStore(t *testing.T) *Store {
	s, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func outcome(uid, block uint64, success bool, exact float64) *hone.QueryOutcome {
	return &hone.QueryOutcome{
		Block:     block,
		UID:       uid,
		ProblemID: "p-" + time.Now().Format("150405.000000000"),
		Success:   success,
		Metrics: hone.Metrics{
			ExactMatch:         exact,
			PartialCorrectness: 0.5,
			GridSimilarity:     0.6,
			EfficiencyScore:    0.8,
		},
		ResponseTime: 1.5,
		Timestamp:    time.Now(),
	}
}

func TestNew_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hone.db")
	s, err := New(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())
}

func TestUpsertWorker_Idempotent(t *testing.T) {
	s := newTestStore(t)
	w := &hone.Worker{UID: 3, Hotkey: "hk", Host: "10.0.0.1", Port: 8091, Stake: 50}

	require.NoError(t, s.UpsertWorker(w))
	w.Stake = 75
	require.NoError(t, s.UpsertWorker(w))

	workers, err := s.Workers()
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, 75.0, workers[0].Stake)
}

func TestRecordOutcome_DuplicateIgnored(t *testing.T) {
	s := newTestStore(t)
	o := outcome(1, 100, true, 1)
	o.ProblemID = "fixed"

	require.NoError(t, s.RecordOutcome(o))
	require.NoError(t, s.RecordOutcome(o))

	outcomes, err := s.RecentOutcomes(1000, 1000)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestRecentOutcomes_WindowBounds(t *testing.T) {
	s := newTestStore(t)
	for _, block := range []uint64{50, 100, 150, 200} {
		require.NoError(t, s.RecordOutcome(outcome(1, block, true, 1)))
	}

	// window [80, 200]
	outcomes, err := s.RecentOutcomes(120, 200)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, uint64(100), outcomes[0].Block)
	assert.Equal(t, uint64(200), outcomes[2].Block)

	// widening the window never loses rows
	wider, err := s.RecentOutcomes(200, 200)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(wider), len(outcomes))
}

func TestRecentOutcomes_RoundTripFields(t *testing.T) {
	s := newTestStore(t)
	o := outcome(7, 42, true, 1)
	o.TransformationChain = []string{"rotate90", "transpose"}
	o.NumTrainExamples = 3
	o.ChainLength = 2
	o.RawResponse = []byte(`{"status":"completed"}`)
	require.NoError(t, s.RecordOutcome(o))

	outcomes, err := s.RecentOutcomes(100, 100)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	got := outcomes[0]
	assert.Equal(t, o.TransformationChain, got.TransformationChain)
	assert.Equal(t, o.Metrics, got.Metrics)
	assert.Equal(t, o.RawResponse, got.RawResponse)
	assert.Equal(t, 3, got.NumTrainExamples)
}

func TestStatsFor(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordOutcome(outcome(1, 100, true, 1)))
	require.NoError(t, s.RecordOutcome(outcome(1, 101, true, 0)))
	require.NoError(t, s.RecordOutcome(outcome(1, 102, false, 0)))
	require.NoError(t, s.RecordOutcome(outcome(2, 100, true, 1)))

	stats, err := s.StatsFor(1, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 1, stats.ExactMatches)
	assert.Equal(t, 2, stats.SuccessfulResponses)
	assert.InDelta(t, 1.0, stats.PartialSum, 1e-9)
	assert.InDelta(t, 1.2, stats.SimilaritySum, 1e-9)
	assert.InDelta(t, 1.6, stats.EfficiencySum, 1e-9)
}

func TestSaveScores_And_Latest(t *testing.T) {
	s := newTestStore(t)
	records := map[uint64]*hone.ScoreRecord{
		2: {UID: 2, Score: 0.7, ExactMatchRate: 0.5},
		1: {UID: 1, Score: 0.9, ExactMatchRate: 1.0},
	}
	require.NoError(t, s.SaveScores(records))

	latest, err := s.LatestScores()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(1), latest[0].UID)
	assert.Equal(t, 0.9, latest[0].Score)
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordOutcome(outcome(1, 100, true, 1)))
	require.NoError(t, s.SaveScores(map[uint64]*hone.ScoreRecord{1: {UID: 1, Score: 1}}))

	// everything just written is inside any sane retention
	removed, err := s.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// zero retention sweeps rows older than "now"
	time.Sleep(1100 * time.Millisecond)
	removed, err = s.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
