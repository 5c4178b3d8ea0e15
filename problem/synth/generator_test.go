// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hone-subnet/hone/grid"
)

func TestGenerate(t *testing.T) {
	gen := New(1)

	p, err := gen.Generate(3, 4)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Len(t, p.TrainExamples, 3)
	assert.Equal(t, 3, p.NumTrain)
	assert.Equal(t, 4, p.Meta.ChainLength)
	assert.Len(t, p.Meta.TransformationChain, 4)
	assert.Len(t, p.ID, 16)
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := New(42).Generate(2, 3)
	require.NoError(t, err)
	b, err := New(42).Generate(2, 3)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.TestOutput, b.TestOutput)
	assert.Equal(t, a.Meta.TransformationChain, b.Meta.TransformationChain)
}

func TestGenerate_BadArgs(t *testing.T) {
	gen := New(1)
	_, err := gen.Generate(0, 3)
	assert.Error(t, err)
	_, err = gen.Generate(3, 0)
	assert.Error(t, err)
}

func TestTransforms(t *testing.T) {
	in := grid.Grid{{1, 2, 3}, {4, 5, 6}}

	assert.Equal(t, grid.Grid{{4, 1}, {5, 2}, {6, 3}}, rotate90(in))
	assert.Equal(t, grid.Grid{{6, 5, 4}, {3, 2, 1}}, rotate180(in))
	assert.Equal(t, grid.Grid{{3, 2, 1}, {6, 5, 4}}, flipHorizontal(in))
	assert.Equal(t, grid.Grid{{4, 5, 6}, {1, 2, 3}}, flipVertical(in))
	assert.Equal(t, grid.Grid{{1, 4}, {2, 5}, {3, 6}}, transpose(in))
	assert.Equal(t, grid.Grid{{2, 3, 4}, {5, 6, 7}}, shiftPalette(in))
	assert.Equal(t, grid.Grid{{0, 1}}, shiftPalette(grid.Grid{{0, 9}}))
}

func TestTransforms_PreserveValidity(t *testing.T) {
	gen := New(7)
	for range 20 {
		p, err := gen.Generate(2, 5)
		require.NoError(t, err)
		assert.NoError(t, p.TestOutput.Validate())
		for _, ex := range p.TrainExamples {
			assert.NoError(t, ex.Output.Validate())
		}
	}
}
