// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/parazodiac/Indus/internal/errs"
)

// state is a (secondary, pivot) pair addressed in a region's local
// index space, per spec.md §4.4.
type state struct {
	sec, pivot int
}

// encodeState packs a region-local (sec,pivot) pair into the same
// row-major offset Gamma itself uses: sec*numPivots + pivot (scenario
// S2).
func encodeState(sec, pivot, numPivots int) int { return sec*numPivots + pivot }

// decodeState is the inverse of encodeState.
func decodeState(code, numSecs, numPivots int) (sec, pivot int) {
	return code / numPivots, code % numPivots
}

// GammaMatrix is the dense |secFeatures| x |pivotFeatures| count
// matrix a single Gibbs run produces for one region.
type GammaMatrix struct {
	NumSecs, NumPivots int
	Counts             []uint32 // row-major, len NumSecs*NumPivots
}

func newGammaMatrix(numSecs, numPivots int) *GammaMatrix {
	return &GammaMatrix{NumSecs: numSecs, NumPivots: numPivots, Counts: make([]uint32, numSecs*numPivots)}
}

func (g *GammaMatrix) at(sec, pivot int) uint32 { return g.Counts[encodeState(sec, pivot, g.NumPivots)] }
func (g *GammaMatrix) inc(sec, pivot int) {
	g.Counts[encodeState(sec, pivot, g.NumPivots)]++
}

// Dense returns g as a gonum dense matrix of float64 counts, useful
// for scenario-style convergence checks in tests.
func (g *GammaMatrix) Dense() *mat.Dense {
	d := mat.NewDense(g.NumSecs, g.NumPivots, nil)
	for s := 0; s < g.NumSecs; s++ {
		for p := 0; p < g.NumPivots; p++ {
			d.Set(s, p, float64(g.at(s, p)))
		}
	}
	return d
}

// chooseFeature implements spec.md §4.4's choose_feature: pick one of
// candidates weighted by mat[c][candidates[i]], using u as the
// pre-drawn uniform variate. Falls back to uniform-over-candidates
// when every candidate has zero weight, and short-circuits when there
// is exactly one candidate.
func chooseFeature(mat [][]float64, candidates []int, u float64, c int, rng *rand.Rand) int {
	if len(candidates) == 1 {
		return candidates[0]
	}
	row := mat[c]
	var norm float64
	weights := make([]float64, len(candidates))
	for i, cand := range candidates {
		weights[i] = row[cand]
		norm += weights[i]
	}
	if norm == 0 {
		return candidates[rng.Intn(len(candidates))]
	}
	var cum float64
	for i, w := range weights {
		cum += w / norm
		if cum > u {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// GibbsEngine draws Gibbs samples over a region's (secondary,pivot)
// state space using sparse matrix evidence and optional cross-assay
// cell anchors.
type GibbsEngine struct {
	Experiment *MultiModalExperiment
	Graph      *LinkGraph
}

// GibbsRegion names one independently-quantifiable region by its
// global pivot-feature indices.
type GibbsRegion struct {
	PivotFeatures []int // global pivot feature indices, P
}

// Run draws N Gibbs samples over region and returns the resulting
// Gamma matrix. If cellSubset is nil, every common cell participates.
// seed derives the region's RNG deterministically (spec.md §9); the
// same seed and inputs always produce the same Gamma (scenario
// "GibbsEngine determinism").
func (e *GibbsEngine) Run(region GibbsRegion, n int, cellSubset []int, seed uint64) (*GammaMatrix, []int, error) {
	p := region.PivotFeatures
	if len(p) == 0 {
		return nil, nil, errs.ShapeMismatch("region has no pivot features")
	}
	s := e.Graph.HitsFromPivots(p)
	if len(s) == 0 {
		return nil, nil, errs.ShapeMismatch("region's pivot features have no secondary neighbors")
	}

	secPos := indexOf(s)
	pivotPos := indexOf(p)

	cells := cellSubset
	if cells == nil {
		cells = make([]int, len(e.Experiment.CommonCells))
		for i := range cells {
			cells[i] = i
		}
	}
	cellLocal := indexOf(cells)

	secMat := denseRows(e.Experiment.Secondary(), cells, s)
	pivotMat := denseRows(e.Experiment.Pivot(), cells, p)

	src := rand.New(rand.NewSource(seed))
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}

	st := state{sec: src.Intn(len(s)), pivot: src.Intn(len(p))}
	gamma := newGammaMatrix(len(s), len(p))

	for i := 0; i < n; i++ {
		c := src.Intn(len(cells))

		secCandidates := localPositions(e.Graph.FromSecs(p[st.pivot]), secPos)
		if len(secCandidates) == 0 {
			secCandidates = []int{st.sec}
		}
		st.sec = chooseFeature(secMat, secCandidates, u.Rand(), c, src)

		pivotCellLocal := c
		if e.Graph.Anchors != nil {
			if hops := anchorHops(e.Graph, cells[c]); len(hops) > 0 {
				u.Rand() // consume u' per spec.md §4.4 step 3
				target := hops[src.Intn(len(hops))]
				if lc, ok := cellLocal[target]; ok {
					pivotCellLocal = lc
				}
			}
		}

		pivotCandidates := localPositions(e.Graph.ToPivots(s[st.sec]), pivotPos)
		if len(pivotCandidates) == 0 {
			pivotCandidates = []int{st.pivot}
		}
		st.pivot = chooseFeature(pivotMat, pivotCandidates, u.Rand(), pivotCellLocal, src)

		gamma.inc(st.sec, st.pivot)
	}
	return gamma, s, nil
}

// anchorHops returns the common-cell indices anchored to cell via
// e.Graph.Anchors, searching both directions since Anchors is stored
// pivot_cell_idx -> []sec_cell_idx but the hop can originate from
// either side of the pairing.
func anchorHops(g *LinkGraph, cell int) []int {
	if hops, ok := g.Anchors[cell]; ok {
		return hops
	}
	var out []int
	for pivotCell, secCells := range g.Anchors {
		for _, sc := range secCells {
			if sc == cell {
				out = append(out, pivotCell)
			}
		}
	}
	return out
}

func indexOf(vals []int) map[int]int {
	m := make(map[int]int, len(vals))
	for i, v := range vals {
		m[v] = i
	}
	return m
}

// localPositions maps each global index in globals through pos
// (global -> local), dropping any global index absent from pos.
func localPositions(globals []int, pos map[int]int) []int {
	out := make([]int, 0, len(globals))
	for _, g := range globals {
		if lp, ok := pos[g]; ok {
			out = append(out, lp)
		}
	}
	sort.Ints(out)
	return out
}

// denseRows materializes cells x features by point-querying m,
// absent entries defaulting to 0 (spec.md §4.4 "Dense submatrices").
func denseRows(m *SparseMatrix, cells, features []int) [][]float64 {
	out := make([][]float64, len(cells))
	for i, cell := range cells {
		row := make([]float64, len(features))
		for j, feat := range features {
			row[j] = m.Get(cell, feat)
		}
		out[i] = row
	}
	return out
}
