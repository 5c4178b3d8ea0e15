// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package weights

import (
	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/chain"
	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
)

var logger = log.WithContext("pkg", "weights")

var metricCommits = metrics.LazyLoadCounterVec("commit_total", []string{"result"})

// Options configure the burn-share policy.
type Options struct {
	Burn    float64
	BurnUID uint64
}

// DefaultOptions returns the bootstrap burn policy.
func DefaultOptions() Options {
	return Options{
		Burn:    hone.DefaultBurnWeight,
		BurnUID: hone.DefaultBurnUID,
	}
}

// Committer converts score maps to on-chain weight commits, rate limited by
// the ledger's own commit interval. The same chain session serves the whole
// commit including the reveal branch.
type Committer struct {
	client chain.Client
	opts   Options
}

func NewCommitter(client chain.Client, opts Options) *Committer {
	return &Committer{client: client, opts: opts}
}

// Commit allocates, quantizes and submits weights for the given scores.
// A commit attempted before the ledger's minimum interval has elapsed is
// skipped silently; that is the expected steady-state case.
func (c *Committer) Commit(scores map[uint64]*hone.ScoreRecord) error {
	myUID, err := c.client.MyUID()
	if err != nil {
		return errors.Wrap(err, "resolve own uid")
	}

	since, err := c.client.BlocksSinceLastCommit(myUID)
	if err != nil {
		return errors.Wrap(err, "read blocks since last commit")
	}
	minInterval, err := c.client.MinCommitInterval()
	if err != nil {
		return errors.Wrap(err, "read commit interval")
	}
	if since < minInterval {
		metricCommits().AddWithLabel(1, map[string]string{"result": "skipped"})
		logger.Debug("weight commit gated", "since", since, "minInterval", minInterval)
		return nil
	}

	n, err := c.client.SubnetSize()
	if err != nil {
		return errors.Wrap(err, "read subnet size")
	}

	flat := make(map[uint64]float64, len(scores))
	for uid, r := range scores {
		flat[uid] = r.Score
	}
	w, err := Allocate(flat, n, c.opts.Burn, c.opts.BurnUID)
	if err != nil {
		return errors.Wrap(err, "allocate weights")
	}
	ticks := Quantize(w)

	uids := make([]uint64, n)
	for i := range uids {
		uids[i] = uint64(i)
	}

	reveal, err := c.client.CommitRevealEnabled()
	if err != nil {
		return errors.Wrap(err, "read commit-reveal flag")
	}
	if reveal {
		err = c.client.CommitWeightsReveal(uids, TicksToFloats(ticks), myUID)
	} else {
		err = c.client.CommitWeights(uids, ticks, myUID)
	}
	if err != nil {
		if errors.Is(err, chain.ErrTooSoon) {
			metricCommits().AddWithLabel(1, map[string]string{"result": "skipped"})
			logger.Debug("weight commit rejected as too soon")
			return nil
		}
		metricCommits().AddWithLabel(1, map[string]string{"result": "error"})
		return errors.Wrap(err, "commit weights")
	}

	metricCommits().AddWithLabel(1, map[string]string{"result": "ok"})
	logger.Info("weights committed", "workers", len(scores), "subnetSize", n, "reveal", reveal)
	return nil
}
