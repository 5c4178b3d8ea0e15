// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package problem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hone-subnet/hone/grid"
)

func validProblem() *Problem {
	in := grid.Grid{{1, 2}, {3, 4}}
	out := grid.Grid{{4, 3}, {2, 1}}
	return &Problem{
		ID:            ComputeID(in, []string{"rotate180"}),
		TrainExamples: []Example{{Input: in, Output: out}},
		TestInput:     in,
		TestOutput:    out,
		NumTrain:      1,
		Meta:          Meta{BaseTask: 0, ChainLength: 1, TransformationChain: []string{"rotate180"}},
	}
}

func TestComputeID_Stable(t *testing.T) {
	in := grid.Grid{{1, 2}, {3, 4}}
	id := ComputeID(in, []string{"rotate90", "transpose"})

	assert.Len(t, id, 16)
	assert.Equal(t, id, ComputeID(in, []string{"rotate90", "transpose"}))
	assert.NotEqual(t, id, ComputeID(in, []string{"transpose", "rotate90"}))
	assert.NotEqual(t, id, ComputeID(grid.Grid{{1, 2}, {3, 5}}, []string{"rotate90", "transpose"}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validProblem().Validate())

	p := validProblem()
	p.TrainExamples = nil
	assert.Error(t, p.Validate())

	p = validProblem()
	p.TestInput = grid.Grid{}
	assert.Error(t, p.Validate())

	p = validProblem()
	p.TestOutput = grid.Grid{{1, 2}, {3}}
	assert.Error(t, p.Validate())

	p = validProblem()
	p.ID = ""
	assert.Error(t, p.Validate())
}
