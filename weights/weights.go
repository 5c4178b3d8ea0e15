// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package weights turns composite scores into the weight vector committed on
// chain. A configurable burn share is diverted to a sink uid, the remainder
// is split pro rata, and the float vector is quantized to integer ticks that
// sum exactly to the u16 range.
package weights

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/hone"
)

// Allocate builds the normalized float weight vector of length n.
//
// With no usable scores (empty map, zero sum, or any negative score) the
// whole weight goes to burnUID. Otherwise scores share 1-burn pro rata and
// burnUID receives the burn fraction on top of any score share it may have.
func Allocate(scores map[uint64]float64, n int, burn float64, burnUID uint64) ([]float64, error) {
	if n <= 0 {
		return nil, errors.New("subnet size must be positive")
	}
	if burnUID >= uint64(n) {
		return nil, errors.Errorf("burn uid %d outside subnet of size %d", burnUID, n)
	}
	if burn < 0 || burn > 1 {
		return nil, errors.Errorf("burn fraction %v outside [0,1]", burn)
	}

	w := make([]float64, n)

	total := 0.0
	usable := len(scores) > 0
	for uid, s := range scores {
		if s < 0 || uid >= uint64(n) {
			usable = false
			break
		}
		total += s
	}
	if !usable || total == 0 {
		w[burnUID] = 1.0
		return w, nil
	}

	remaining := 1 - burn
	for uid, s := range scores {
		w[uid] = s / total * remaining
	}
	w[burnUID] += burn

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		for i := range w {
			w[i] /= sum
		}
	}
	return w, nil
}

// Quantize converts a float weight vector to integer ticks summing exactly
// to 65535. Rounding drift lands on the current largest holder.
func Quantize(w []float64) []uint64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return make([]uint64, len(w))
	}

	scale := float64(hone.U16Max) / sum
	ticks := make([]uint64, len(w))
	var tickSum uint64
	argmax := 0
	for i, v := range w {
		t := math.Round(v * scale)
		if t < 0 {
			t = 0
		}
		ticks[i] = uint64(t)
		tickSum += ticks[i]
		if ticks[i] > ticks[argmax] {
			argmax = i
		}
	}

	drift := int64(hone.U16Max) - int64(tickSum)
	ticks[argmax] = uint64(int64(ticks[argmax]) + drift)
	return ticks
}

// TicksToFloats reconverts a tick vector to floats summing to 1.0, as the
// commit-reveal submission path expects.
func TicksToFloats(ticks []uint64) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = float64(t) / float64(hone.U16Max)
	}
	return out
}
