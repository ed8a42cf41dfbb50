// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parazodiac/Indus/internal/errs"
)

// initProbFloor is added to every ProbModel.Init entry at load time so
// a zero entry becomes strictly positive; for entries well above it the
// float32 sum is unchanged. Not a user-visible knob (spec treats it as
// a loader detail, see DESIGN.md Open Questions).
const initProbFloor = 1.15e-31

// ProbModel is the immutable parameter bundle driving HmmEngine: S
// latent states, A assays.
type ProbModel struct {
	S, A int

	Init  []float32   // len S
	Trans [][]float32 // S x S, Trans[from][to]
	Emit  [][]float32 // S x A, Emit[state][assay] = P(assay present | state)
	Thresh []float32  // len A
}

// LoadProbModel parses the HMM parameter file format from spec.md §6:
// a header line "S A", then probinit/transitionprobs/emissionprobs
// records in any order.
func LoadProbModel(r io.Reader) (*ProbModel, error) {
	const fname = "hmm-params"
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0

	nextLine := func() (string, bool) {
		for sc.Scan() {
			lineNo++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			return line, true
		}
		return "", false
	}

	header, ok := nextLine()
	if !ok {
		return nil, errs.InputParse(fname, lineNo, "missing header line")
	}
	hfields := strings.Fields(header)
	if len(hfields) != 2 {
		return nil, errs.InputParse(fname, lineNo, "header must be 'S A', got %q", header)
	}
	s, err := strconv.Atoi(hfields[0])
	if err != nil || s < 1 {
		return nil, errs.InputParse(fname, lineNo, "invalid state count %q", hfields[0])
	}
	a, err := strconv.Atoi(hfields[1])
	if err != nil || a < 1 {
		return nil, errs.InputParse(fname, lineNo, "invalid assay count %q", hfields[1])
	}

	m := &ProbModel{
		S:      s,
		A:      a,
		Init:   make([]float32, s),
		Trans:  make([][]float32, s),
		Emit:   make([][]float32, s),
		Thresh: make([]float32, a),
	}
	for i := range m.Trans {
		m.Trans[i] = make([]float32, s)
	}
	for i := range m.Emit {
		m.Emit[i] = make([]float32, a)
	}

	var initCount, transCount, emitCount int
	threshSeen := make([]bool, a)

	for {
		line, ok := nextLine()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "probinit":
			if len(fields) != 3 {
				return nil, errs.InputParse(fname, lineNo, "probinit wants 2 fields, got %d", len(fields)-1)
			}
			st, err := parse1based(fields[1], s)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "probinit state: %v", err)
			}
			p, err := strconv.ParseFloat(fields[2], 32)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "probinit prob: %v", err)
			}
			m.Init[st] = float32(p) + initProbFloor
			initCount++
		case "transitionprobs":
			if len(fields) != 4 {
				return nil, errs.InputParse(fname, lineNo, "transitionprobs wants 3 fields, got %d", len(fields)-1)
			}
			from, err := parse1based(fields[1], s)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "transitionprobs from: %v", err)
			}
			to, err := parse1based(fields[2], s)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "transitionprobs to: %v", err)
			}
			p, err := strconv.ParseFloat(fields[3], 32)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "transitionprobs prob: %v", err)
			}
			m.Trans[from][to] = float32(p)
			transCount++
		case "emissionprobs":
			if len(fields) != 6 {
				return nil, errs.InputParse(fname, lineNo, "emissionprobs wants 5 fields, got %d", len(fields)-1)
			}
			st, err := parse1based(fields[1], s)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "emissionprobs state: %v", err)
			}
			assay, err := strconv.Atoi(fields[2])
			if err != nil || assay < 0 || assay >= a {
				return nil, errs.InputParse(fname, lineNo, "emissionprobs assay out of range: %q", fields[2])
			}
			isPresence, err := strconv.Atoi(fields[4])
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "emissionprobs is_presence: %v", err)
			}
			p, err := strconv.ParseFloat(fields[5], 32)
			if err != nil {
				return nil, errs.InputParse(fname, lineNo, "emissionprobs prob: %v", err)
			}
			if isPresence != 1 {
				continue
			}
			m.Emit[st][assay] = float32(p)
			if !threshSeen[assay] {
				threshSeen[assay] = true
			}
			emitCount++
		default:
			return nil, errs.InputParse(fname, lineNo, "unknown record kind %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO(fname, err)
	}

	if initCount != s {
		return nil, errs.ShapeMismatch("expected %d probinit lines, got %d", s, initCount)
	}
	if transCount != s*s {
		return nil, errs.ShapeMismatch("expected %d transitionprobs lines, got %d", s*s, transCount)
	}
	if emitCount != s*a {
		return nil, errs.ShapeMismatch("expected %d emissionprobs(is_presence=1) lines, got %d", s*a, emitCount)
	}

	// Per-assay presence threshold is not read from this file; the
	// caller sets it from the pipeline's QC configuration via
	// SetThresholds. Default to the midpoint until then so a model
	// used directly in tests has a sane value.
	for i := range m.Thresh {
		m.Thresh[i] = 0.5
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// SetThresholds overrides the per-assay presence/absence cutoff used
// by HmmEngine's emission discretization.
func (m *ProbModel) SetThresholds(thresh []float32) error {
	if len(thresh) != m.A {
		return errs.ShapeMismatch("thresh has %d entries, model has %d assays", len(thresh), m.A)
	}
	copy(m.Thresh, thresh)
	return nil
}

func (m *ProbModel) validate() error {
	for _, p := range m.Init {
		if p < 0 || p != p {
			return errs.NumericInvariant("init probability out of range or NaN: %v", p)
		}
	}
	for _, row := range m.Trans {
		for _, p := range row {
			if p < 0 || p > 1 || p != p {
				return errs.NumericInvariant("transition probability out of range: %v", p)
			}
		}
	}
	for _, row := range m.Emit {
		for _, p := range row {
			if p < 0 || p > 1 || p != p {
				return errs.NumericInvariant("emission probability out of range: %v", p)
			}
		}
	}
	return nil
}

func parse1based(field string, n int) (int, error) {
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", field)
	}
	idx := v - 1
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("index %d out of range [1,%d]", v, n)
	}
	return idx, nil
}
