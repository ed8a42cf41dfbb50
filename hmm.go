// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"strconv"

	"github.com/james-bowman/sparse"
	"github.com/parazodiac/Indus/internal/errs"
)

// posteriorFloor is the minimum posterior probability worth keeping
// in the sparse output matrix (spec.md §4.1).
const posteriorFloor = 1e-4

// betaInit and the 0.1 terminal factor below are a deliberate
// asymmetric calibration carried over from the legacy implementation
// this engine reproduces bit-for-bit; see DESIGN.md Open Questions.
const betaInit = float32(0.1)
const terminalFactor = float32(0.1)

// HmmEngine runs scaled forward-backward over an ObservationStream
// against a fixed ProbModel.
type HmmEngine struct {
	Model *ProbModel
}

// PosteriorMatrix is a sparse (T x S) matrix of posterior
// probabilities, entries below posteriorFloor dropped.
type PosteriorMatrix struct {
	*SparseMatrix
}

// Run executes one cell's forward-backward pass and returns its
// sparse posterior matrix. Fails only if the model is malformed or
// the stream is empty.
func (e *HmmEngine) Run(stream *ObservationStream) (*PosteriorMatrix, error) {
	m := e.Model
	if m == nil || m.S < 1 || m.A < 1 {
		return nil, errs.ShapeMismatch("malformed ProbModel")
	}
	t := stream.T
	if t == 0 {
		return nil, errs.ShapeMismatch("empty observation stream")
	}
	s := m.S

	emitLik := func(state int, o []float32) float32 {
		lik := float32(1.0)
		for a := 0; a < m.A; a++ {
			if o[a] >= m.Thresh[a] {
				lik *= m.Emit[state][a]
			} else {
				lik *= 1 - m.Emit[state][a]
			}
		}
		return lik
	}

	// Forward pass, scaled.
	fprob := make([][]float32, t)
	alpha := make([]float32, s)
	for state := 0; state < s; state++ {
		alpha[state] = m.Init[state] * emitLik(state, stream.Obs[0])
	}
	fprob[0] = normalizeRow(alpha)

	for ti := 1; ti < t; ti++ {
		next := make([]float32, s)
		prev := fprob[ti-1]
		for state := 0; state < s; state++ {
			var acc float32
			for from := 0; from < s; from++ {
				acc += prev[from] * m.Trans[from][state]
			}
			next[state] = acc * emitLik(state, stream.Obs[ti])
		}
		fprob[ti] = normalizeRow(next)
	}

	var lastSum float32
	for _, p := range fprob[t-1] {
		lastSum += p
	}
	norm := terminalFactor * lastSum
	if norm == 0 {
		norm = 1
	}

	dok := sparse.NewDOK(t, s)

	// Backward pass, emitting posteriors as it goes.
	beta := make([]float32, s)
	for i := range beta {
		beta[i] = betaInit
	}
	emitPosterior(dok, t-1, fprob[t-1], beta, norm)

	for ti := t - 1; ti >= 1; ti-- {
		eVals := make([]float32, s)
		for state := 0; state < s; state++ {
			eVals[state] = emitLik(state, stream.Obs[ti])
		}
		nextBeta := make([]float32, s)
		for state := 0; state < s; state++ {
			var acc float32
			for to := 0; to < s; to++ {
				acc += m.Trans[state][to] * eVals[to] * beta[to]
			}
			nextBeta[state] = acc
		}
		nextBeta = normalizeRow(nextBeta)
		emitPosterior(dok, ti-1, fprob[ti-1], nextBeta, norm)
		beta = nextBeta
	}

	windowNames := make([]string, t)
	for i := range windowNames {
		windowNames[i] = strconv.Itoa(i)
	}
	stateNames := make([]string, s)
	for i := range stateNames {
		stateNames[i] = strconv.Itoa(i)
	}
	sm, err := NewSparseMatrix(dok, windowNames, stateNames)
	if err != nil {
		return nil, err
	}
	return &PosteriorMatrix{sm}, nil
}

// normalizeRow divides row by its sum in place and returns it,
// treating a zero sum as a pass-through (no division, equivalent to
// emitting nothing downstream).
func normalizeRow(row []float32) []float32 {
	var sum float32
	for _, v := range row {
		sum += v
	}
	if sum == 0 {
		return row
	}
	for i := range row {
		row[i] /= sum
	}
	return row
}

func emitPosterior(dok *sparse.DOK, index int, fprobRow, beta []float32, norm float32) {
	s := len(fprobRow)
	p := make([]float32, s)
	var sum float32
	for state := 0; state < s; state++ {
		p[state] = fprobRow[state] * beta[state] / norm
		sum += p[state]
	}
	if sum == 0 {
		return
	}
	for state := 0; state < s; state++ {
		v := p[state] / sum
		if v > posteriorFloor {
			dok.Set(index, state, float64(v))
		}
	}
}
