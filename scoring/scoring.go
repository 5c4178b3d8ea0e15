// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package scoring folds a window of query outcomes into one composite score
// per worker. The composite blends accuracy, partial correctness, structural
// similarity and speed, with speed only counting for workers that are at
// least close to correct.
package scoring

import (
	"time"

	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/store"
)

var logger = log.WithContext("pkg", "scoring")

const nearCorrectBar = 0.9

const (
	weightExact      = 0.4
	weightPartial    = 0.3
	weightSimilarity = 0.2
	weightEfficiency = 0.1
)

// Scorer computes composite scores from the result store.
type Scorer struct {
	store        *store.Store
	minResponses int
}

// New creates a scorer. Workers with fewer than minResponses outcomes in the
// window are left out of the result entirely.
func New(s *store.Store, minResponses int) *Scorer {
	if minResponses < 1 {
		minResponses = 1
	}
	return &Scorer{store: s, minResponses: minResponses}
}

type aggregate struct {
	count               int
	exactMatches        int
	successfulResponses int
	partialSum          float64
	similaritySum       float64
	efficiencySum       float64
}

// Calculate scores every worker seen in the window of windowBlocks ending at
// currentBlock.
func (sc *Scorer) Calculate(windowBlocks, currentBlock uint64) (map[uint64]*hone.ScoreRecord, error) {
	outcomes, err := sc.store.RecentOutcomes(windowBlocks, currentBlock)
	if err != nil {
		return nil, err
	}

	aggs := make(map[uint64]*aggregate)
	for _, o := range outcomes {
		agg := aggs[o.UID]
		if agg == nil {
			agg = &aggregate{}
			aggs[o.UID] = agg
		}
		agg.count++
		if !o.Success {
			continue
		}
		agg.successfulResponses++
		if o.Metrics.ExactMatch >= 1 {
			agg.exactMatches++
		}
		agg.partialSum += o.Metrics.PartialCorrectness
		agg.similaritySum += o.Metrics.GridSimilarity
		agg.efficiencySum += o.Metrics.EfficiencyScore
	}

	now := time.Now().UTC()
	records := make(map[uint64]*hone.ScoreRecord, len(aggs))
	for uid, agg := range aggs {
		if agg.count < sc.minResponses {
			continue
		}
		er := float64(agg.exactMatches) / float64(agg.count)
		var pa, sa, ea float64
		if agg.successfulResponses > 0 {
			n := float64(agg.successfulResponses)
			pa = agg.partialSum / n
			sa = agg.similaritySum / n
			ea = agg.efficiencySum / n
		}

		records[uid] = &hone.ScoreRecord{
			UID:            uid,
			Score:          composite(er, pa, sa, ea),
			ExactMatchRate: er,
			PartialAvg:     pa,
			EfficiencyAvg:  ea,
			Timestamp:      now,
		}
	}

	logger.Debug("scores calculated",
		"workers", len(records), "outcomes", len(outcomes),
		"window", windowBlocks, "block", currentBlock)
	return records, nil
}

// composite applies the three scoring regimes in order.
func composite(er, pa, sa, ea float64) float64 {
	switch {
	case er == 0 && pa < nearCorrectBar && sa < nearCorrectBar:
		// solves nothing and is not close: speed earns nothing
		return 0
	case er == 0 && (pa < nearCorrectBar || sa < nearCorrectBar):
		// close on structure but never exact: drop the efficiency term and
		// renormalize the remaining weights
		return (weightExact*er + weightPartial*pa + weightSimilarity*sa) /
			(weightExact + weightPartial + weightSimilarity)
	default:
		return weightExact*er + weightPartial*pa + weightSimilarity*sa + weightEfficiency*ea
	}
}
