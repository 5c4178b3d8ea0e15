// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package problem defines the self-contained grid-transformation puzzles
// dispatched to workers, and the generator interface that produces them.
package problem

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/grid"
)

// Example is one solved training pair shown to workers.
type Example struct {
	Input  grid.Grid `json:"input"`
	Output grid.Grid `json:"output"`
}

// Meta describes how a problem was synthesized.
type Meta struct {
	BaseTask            int      `json:"base_task"`
	ChainLength         int      `json:"chain_length"`
	TransformationChain []string `json:"transformation_chain"`
}

// Problem is a content-addressed puzzle. TestOutput is the ground truth; it
// never leaves the validator.
type Problem struct {
	ID            string
	TrainExamples []Example
	TestInput     grid.Grid
	TestOutput    grid.Grid
	NumTrain      int
	Meta          Meta
}

// ComputeID derives the stable content address of a problem from its test
// input and transformation chain: the first 16 hex characters of the sha256
// of their JSON forms.
func ComputeID(testInput grid.Grid, chain []string) string {
	inputJSON, _ := json.Marshal(testInput)
	chainJSON, _ := json.Marshal(chain)
	sum := sha256.Sum256(append(inputJSON, chainJSON...))
	return hex.EncodeToString(sum[:])[:16]
}

// Validate rejects ill-formed problems before they reach the dispatcher.
func (p *Problem) Validate() error {
	if len(p.TrainExamples) == 0 {
		return errors.New("problem has no training examples")
	}
	for i, ex := range p.TrainExamples {
		if err := ex.Input.Validate(); err != nil {
			return errors.Wrapf(err, "train example %d input", i)
		}
		if err := ex.Output.Validate(); err != nil {
			return errors.Wrapf(err, "train example %d output", i)
		}
	}
	if err := p.TestInput.Validate(); err != nil {
		return errors.Wrap(err, "test input")
	}
	if err := p.TestOutput.Validate(); err != nil {
		return errors.Wrap(err, "test output")
	}
	if p.ID == "" {
		return errors.New("problem has no id")
	}
	return nil
}

// Generator produces self-contained puzzles. Implementations must be pure
// with respect to their own seed state: a generated problem carries
// everything needed to score answers.
type Generator interface {
	Generate(numTrain, chainLength int) (*Problem, error)
}
