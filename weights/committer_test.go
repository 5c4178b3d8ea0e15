// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hone-subnet/hone/chain"
	"github.com/hone-subnet/hone/hone"
)

func scoresFor(uids ...uint64) map[uint64]*hone.ScoreRecord {
	out := make(map[uint64]*hone.ScoreRecord, len(uids))
	for _, uid := range uids {
		out[uid] = &hone.ScoreRecord{UID: uid, Score: 1}
	}
	return out
}

func TestCommit_HappyCycle(t *testing.T) {
	client := chain.NewMockClient(4, 8091)
	require.NoError(t, client.Connect())
	client.SetMinCommitInterval(0)

	c := NewCommitter(client, Options{Burn: 0.99, BurnUID: 0})
	require.NoError(t, c.Commit(scoresFor(1, 2, 3)))

	hist := client.History()
	require.Len(t, hist, 1)
	assert.Equal(t, []uint64{0, 1, 2, 3}, hist[0].UIDs)

	var sum uint64
	for _, tk := range hist[0].Ticks {
		sum += tk
	}
	assert.Equal(t, uint64(hone.U16Max), sum)
	assert.InDelta(t, 64879, float64(hist[0].Ticks[0]), 2)
	assert.Equal(t, uint64(218), hist[0].Ticks[1])
}

func TestCommit_GatedBelowInterval(t *testing.T) {
	client := chain.NewMockClient(4, 8091)
	require.NoError(t, client.Connect())
	client.SetMinCommitInterval(0)

	c := NewCommitter(client, Options{Burn: 0.99, BurnUID: 0})
	require.NoError(t, c.Commit(scoresFor(1)))

	// a second commit right away falls inside the interval and is skipped
	client.SetMinCommitInterval(1000)
	require.NoError(t, c.Commit(scoresFor(1)))
	assert.Len(t, client.History(), 1)
}

func TestCommit_GateBoundary(t *testing.T) {
	client := chain.NewMockClient(4, 8091)
	require.NoError(t, client.Connect())
	client.SetMinCommitInterval(0)

	c := NewCommitter(client, Options{Burn: 0.99, BurnUID: 0})
	require.NoError(t, c.Commit(scoresFor(1)))

	// exactly at the interval the commit proceeds
	client.SetMinCommitInterval(3)
	for range 3 {
		client.CurrentBlock()
	}
	require.NoError(t, c.Commit(scoresFor(1)))
	assert.Len(t, client.History(), 2)

	// one block short it is skipped
	client.SetMinCommitInterval(4)
	for range 3 {
		client.CurrentBlock()
	}
	require.NoError(t, c.Commit(scoresFor(1)))
	assert.Len(t, client.History(), 2)
}

func TestCommit_RevealPath(t *testing.T) {
	client := chain.NewMockClient(4, 8091)
	require.NoError(t, client.Connect())
	client.SetMinCommitInterval(0)
	client.SetCommitReveal(true)

	c := NewCommitter(client, Options{Burn: 0.99, BurnUID: 0})
	require.NoError(t, c.Commit(scoresFor(1, 2, 3)))

	hist := client.History()
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Reveal)
	require.Len(t, hist[0].Floats, 4)

	sum := 0.0
	for _, f := range hist[0].Floats {
		sum += f
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestCommit_EmptyScoresBurns(t *testing.T) {
	client := chain.NewMockClient(4, 8091)
	require.NoError(t, client.Connect())
	client.SetMinCommitInterval(0)

	c := NewCommitter(client, Options{Burn: 0.99, BurnUID: 0})
	require.NoError(t, c.Commit(nil))

	hist := client.History()
	require.Len(t, hist, 1)
	assert.Equal(t, uint64(hone.U16Max), hist[0].Ticks[0])
}
