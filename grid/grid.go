// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package grid defines the rectangular color grids puzzles are made of and
// the metrics used to score a predicted grid against the expected one.
package grid

import (
	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/hone"
)

// Grid is a rectangular 2-D array of color cells, each in [0, 9].
type Grid [][]int

// Validate checks that the grid is non-empty, rectangular, within the
// protocol size bounds and that every cell is a valid color.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return errors.New("grid has no rows")
	}
	if len(g) > hone.MaxGridSize {
		return errors.Errorf("grid height %d exceeds %d", len(g), hone.MaxGridSize)
	}
	width := len(g[0])
	if width < hone.MinGridSize {
		return errors.New("grid has no columns")
	}
	if width > hone.MaxGridSize {
		return errors.Errorf("grid width %d exceeds %d", width, hone.MaxGridSize)
	}
	for i, row := range g {
		if len(row) != width {
			return errors.Errorf("ragged row %d: %d cells, want %d", i, len(row), width)
		}
		for j, cell := range row {
			if cell < 0 || cell > 9 {
				return errors.Errorf("cell (%d,%d) out of range: %d", i, j, cell)
			}
		}
	}
	return nil
}

// Shape returns (rows, cols). A nil grid is (0, 0).
func (g Grid) Shape() (int, int) {
	if len(g) == 0 {
		return 0, 0
	}
	return len(g), len(g[0])
}

// Equal reports whether both grids have identical shape and cells.
func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for i, row := range g {
		if len(row) != len(other[i]) {
			return false
		}
		for j, cell := range row {
			if cell != other[i][j] {
				return false
			}
		}
	}
	return len(g) > 0
}

// Colors returns the set of colors present in the grid.
func (g Grid) Colors() map[int]bool {
	colors := make(map[int]bool)
	for _, row := range g {
		for _, cell := range row {
			colors[cell] = true
		}
	}
	return colors
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]int(nil), row...)
	}
	return out
}
