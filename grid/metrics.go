// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package grid

// maxResponseTime is the response time at which efficiency bottoms out, in
// seconds.
const maxResponseTime = 30.0

// partial correctness component weights
const (
	shapeWeight = 0.3
	gridWeight  = 0.5
	colorWeight = 0.2
)

// Similarity returns the fraction of cells where predicted and expected
// agree. Grids of different shapes (or empty grids) score 0.
func Similarity(predicted, expected Grid) float64 {
	if len(predicted) == 0 || len(expected) == 0 {
		return 0.0
	}
	if len(predicted) != len(expected) || len(predicted[0]) != len(expected[0]) {
		return 0.0
	}
	total := len(predicted) * len(predicted[0])
	if total == 0 {
		return 0.0
	}
	matching := 0
	for i := range predicted {
		for j := range predicted[i] {
			if j < len(expected[i]) && predicted[i][j] == expected[i][j] {
				matching++
			}
		}
	}
	return float64(matching) / float64(total)
}

// PartialCorrectness scores structural closeness on [0, 1]:
// 0.3 for matching shape, 0.5 x cell similarity when shapes match, and
// 0.2 x the fraction of expected colors present in the prediction.
func PartialCorrectness(predicted, expected Grid) float64 {
	if len(predicted) == 0 || len(expected) == 0 {
		return 0.0
	}

	score := 0.0

	shapeMatch := len(predicted) == len(expected) && len(predicted[0]) == len(expected[0])
	if shapeMatch {
		score += shapeWeight
		score += gridWeight * Similarity(predicted, expected)
	}

	expColors := expected.Colors()
	if len(expColors) > 0 {
		predColors := predicted.Colors()
		overlap := 0
		for c := range predColors {
			if expColors[c] {
				overlap++
			}
		}
		score += colorWeight * float64(overlap) / float64(len(expColors))
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// Efficiency maps a response time in seconds onto [0, 1], hitting zero at 30s.
func Efficiency(responseTime float64) float64 {
	if responseTime >= maxResponseTime {
		return 0.0
	}
	return 1.0 - responseTime/maxResponseTime
}
