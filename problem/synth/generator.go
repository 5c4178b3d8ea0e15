// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package synth is a small built-in puzzle generator: it composes chains of
// elementary grid transformations (rotations, flips, palette rotations) and
// derives train/test pairs by applying the same chain to random input grids.
// It exists so the validator runs out of the box; any richer generator can be
// plugged in through the problem.Generator interface.
package synth

import (
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/grid"
	"github.com/hone-subnet/hone/problem"
)

type transform struct {
	name  string
	apply func(grid.Grid) grid.Grid
}

var transforms = []transform{
	{"rotate90", rotate90},
	{"rotate180", rotate180},
	{"flip_horizontal", flipHorizontal},
	{"flip_vertical", flipVertical},
	{"transpose", transpose},
	{"shift_palette", shiftPalette},
}

// Generator synthesizes problems from a seeded random source.
// Safe for use from a single goroutine at a time; the cycle runner is the
// only caller.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand

	minSize int
	maxSize int
}

// New creates a generator from a fixed seed. The same seed yields the same
// problem sequence.
func New(seed uint64) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		minSize: 3,
		maxSize: 10,
	}
}

// Generate produces one puzzle with numTrain solved examples and a single
// held-back test pair, all derived from one transformation chain.
func (g *Generator) Generate(numTrain, chainLength int) (*problem.Problem, error) {
	if numTrain < 1 {
		return nil, errors.New("numTrain must be positive")
	}
	if chainLength < 1 {
		return nil, errors.New("chainLength must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	baseTask := g.rng.IntN(len(transforms))
	chain := make([]transform, 0, chainLength)
	chain = append(chain, transforms[baseTask])
	for len(chain) < chainLength {
		chain = append(chain, transforms[g.rng.IntN(len(transforms))])
	}
	names := make([]string, len(chain))
	for i, tr := range chain {
		names[i] = tr.name
	}

	applyChain := func(in grid.Grid) grid.Grid {
		out := in.Clone()
		for _, tr := range chain {
			out = tr.apply(out)
		}
		return out
	}

	examples := make([]problem.Example, numTrain)
	for i := range examples {
		in := g.randomGrid()
		examples[i] = problem.Example{Input: in, Output: applyChain(in)}
	}

	testInput := g.randomGrid()
	p := &problem.Problem{
		ID:            problem.ComputeID(testInput, names),
		TrainExamples: examples,
		TestInput:     testInput,
		TestOutput:    applyChain(testInput),
		NumTrain:      numTrain,
		Meta: problem.Meta{
			BaseTask:            baseTask,
			ChainLength:         chainLength,
			TransformationChain: names,
		},
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "generated problem")
	}
	return p, nil
}

func (g *Generator) randomGrid() grid.Grid {
	rows := g.minSize + g.rng.IntN(g.maxSize-g.minSize+1)
	cols := g.minSize + g.rng.IntN(g.maxSize-g.minSize+1)
	out := make(grid.Grid, rows)
	// at least two distinct colors so palette transforms are observable
	colors := []int{g.rng.IntN(10), g.rng.IntN(10)}
	for colors[1] == colors[0] {
		colors[1] = g.rng.IntN(10)
	}
	for i := range out {
		out[i] = make([]int, cols)
		for j := range out[i] {
			if g.rng.IntN(4) == 0 {
				out[i][j] = colors[g.rng.IntN(2)]
			}
		}
	}
	return out
}

func rotate90(in grid.Grid) grid.Grid {
	rows, cols := in.Shape()
	out := make(grid.Grid, cols)
	for i := range out {
		out[i] = make([]int, rows)
		for j := range out[i] {
			out[i][j] = in[rows-1-j][i]
		}
	}
	return out
}

func rotate180(in grid.Grid) grid.Grid {
	return rotate90(rotate90(in))
}

func flipHorizontal(in grid.Grid) grid.Grid {
	out := in.Clone()
	for _, row := range out {
		for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
	return out
}

func flipVertical(in grid.Grid) grid.Grid {
	out := in.Clone()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func transpose(in grid.Grid) grid.Grid {
	rows, cols := in.Shape()
	out := make(grid.Grid, cols)
	for i := range out {
		out[i] = make([]int, rows)
		for j := range out[i] {
			out[i][j] = in[j][i]
		}
	}
	return out
}

func shiftPalette(in grid.Grid) grid.Grid {
	out := in.Clone()
	for _, row := range out {
		for i, cell := range row {
			if cell != 0 {
				row[i] = cell%9 + 1
			}
		}
	}
	return out
}
