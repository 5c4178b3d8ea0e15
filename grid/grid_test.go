// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		g       Grid
		wantErr bool
	}{
		{"valid", Grid{{0, 1}, {2, 3}}, false},
		{"single cell", Grid{{5}}, false},
		{"empty", Grid{}, true},
		{"empty row", Grid{{}}, true},
		{"ragged", Grid{{1, 2}, {3}}, true},
		{"color too big", Grid{{10}}, true},
		{"negative color", Grid{{-1}}, true},
		{"too tall", make(Grid, 31), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.g.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_TooWide(t *testing.T) {
	row := make([]int, 31)
	assert.Error(t, Grid{row}.Validate())
}

func TestEqual(t *testing.T) {
	a := Grid{{1, 2}, {3, 4}}
	assert.True(t, a.Equal(Grid{{1, 2}, {3, 4}}))
	assert.False(t, a.Equal(Grid{{1, 2}, {3, 5}}))
	assert.False(t, a.Equal(Grid{{1, 2}}))
	assert.False(t, Grid{}.Equal(Grid{}))
}

func TestSimilarity(t *testing.T) {
	a := Grid{{1, 2}, {3, 4}}

	assert.Equal(t, 1.0, Similarity(a, a))
	assert.Equal(t, 0.75, Similarity(Grid{{1, 2}, {3, 0}}, a))
	assert.Equal(t, 0.0, Similarity(Grid{{1, 2, 3}}, a), "shape mismatch")
	assert.Equal(t, 0.0, Similarity(Grid{}, a), "empty predicted")
	assert.Equal(t, 0.0, Similarity(a, Grid{}), "empty expected")
}

func TestPartialCorrectness_Exact(t *testing.T) {
	a := Grid{{1, 2}, {3, 4}}
	assert.InDelta(t, 1.0, PartialCorrectness(a, a), 1e-9)
}

func TestPartialCorrectness_ShapeMismatch(t *testing.T) {
	// Expected 3x3 with colors {1}, predicted 3x4 of zeros: only the color
	// component can contribute and the overlap is empty.
	expected := Grid{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	predicted := Grid{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}

	assert.False(t, predicted.Equal(expected))
	assert.Equal(t, 0.0, Similarity(predicted, expected))
	assert.InDelta(t, 0.0, PartialCorrectness(predicted, expected), 1e-9)

	// same shapes but zero-filled prediction against {0,1} palette: color
	// overlap is 1 of 2 expected colors
	expected = Grid{{0, 1}, {1, 0}}
	predicted = Grid{{9, 9, 9}, {9, 9, 9}} // wrong shape, wrong colors
	assert.InDelta(t, 0.0, PartialCorrectness(predicted, expected), 1e-9)

	predicted = Grid{{0, 0, 0}} // wrong shape, half the palette
	assert.InDelta(t, 0.2*0.5, PartialCorrectness(predicted, expected), 1e-9)
}

func TestPartialCorrectness_SameShapePartial(t *testing.T) {
	expected := Grid{{1, 2}, {3, 4}}
	predicted := Grid{{1, 2}, {3, 0}}

	// shape 0.3 + grid 0.5*0.75 + colors 0.2*(3/4)
	want := 0.3 + 0.5*0.75 + 0.2*0.75
	assert.InDelta(t, want, PartialCorrectness(predicted, expected), 1e-9)
}

func TestEfficiency(t *testing.T) {
	assert.Equal(t, 1.0, Efficiency(0))
	assert.InDelta(t, 0.5, Efficiency(15), 1e-9)
	assert.Equal(t, 0.0, Efficiency(30))
	assert.Equal(t, 0.0, Efficiency(100))
}

func TestColors(t *testing.T) {
	colors := Grid{{0, 1}, {1, 9}}.Colors()
	assert.Len(t, colors, 3)
	assert.True(t, colors[0] && colors[1] && colors[9])
}
