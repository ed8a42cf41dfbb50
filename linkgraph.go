// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/parazodiac/Indus/internal/errs"
)

// LinkGraph is the bipartite graph between secondary and pivot
// feature indices. Adjacency lists are held sorted and deduplicated,
// and HitsFromPivots/HitsToPivots return sorted, deduplicated unions, in
// the same adjacency-map style katalvlaran/lvlath's graph/core package
// uses for its undirected adjacency lists.
type LinkGraph struct {
	toPivot   map[int][]int // sec -> [pivot...]
	fromPivot map[int][]int // pivot -> [sec...]

	Microclusters map[string][]int // label -> [cell_idx...]
	Anchors       map[int][]int    // pivot_cell_idx -> [sec_cell_idx...]
}

func newLinkGraph() *LinkGraph {
	return &LinkGraph{
		toPivot:   make(map[int][]int),
		fromPivot: make(map[int][]int),
	}
}

func (g *LinkGraph) addEdge(sec, pivot int) {
	g.toPivot[sec] = insertSorted(g.toPivot[sec], pivot)
	g.fromPivot[pivot] = insertSorted(g.fromPivot[pivot], sec)
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// ToPivots returns the sorted adjacency list of sec (a copy is not
// made; callers must not mutate it).
func (g *LinkGraph) ToPivots(sec int) []int { return g.toPivot[sec] }

// FromSecs returns the sorted adjacency list of pivot.
func (g *LinkGraph) FromSecs(pivot int) []int { return g.fromPivot[pivot] }

// HitsFromPivots returns the sorted, deduplicated union of
// fromPivot[q] for q in pivots.
func (g *LinkGraph) HitsFromPivots(pivots []int) []int {
	return sortedUnion(pivots, g.fromPivot)
}

// HitsToPivots returns the sorted, deduplicated union of toPivot[q]
// for q in secs.
func (g *LinkGraph) HitsToPivots(secs []int) []int {
	return sortedUnion(secs, g.toPivot)
}

func sortedUnion(keys []int, adj map[int][]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, k := range keys {
		for _, v := range adj[k] {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}

// ExtractIQRs partitions every pivot feature with a non-empty
// adjacency list into independently quantifiable regions: maximal
// sets of pivot features mutually reachable through alternating
// pivot->sec->pivot hops. Each region is sorted, and regions are
// returned ordered by their smallest pivot index, so a region's
// position in the result is the same on every run. A pivot with no incident edges never
// appears in fromPivot's key set and so is simply excluded from the
// output, per spec.md §3 ("a pivot has no incident edges" => it never
// participates in a region at all, since loaders reject dangling
// references at load time instead).
func (g *LinkGraph) ExtractIQRs() [][]int {
	unassigned := make(map[int]bool, len(g.fromPivot))
	for p := range g.fromPivot {
		unassigned[p] = true
	}

	var regions [][]int
	for len(unassigned) > 0 {
		var seed int
		for p := range unassigned {
			seed = p
			break
		}
		pivots := []int{seed}
		prevSecsLen := -1
		for {
			secs := g.HitsFromPivots(pivots)
			nextPivots := g.HitsToPivots(secs)
			stable := len(nextPivots) == len(pivots) && len(secs) == prevSecsLen
			prevSecsLen = len(secs)
			pivots = nextPivots
			if stable {
				break
			}
		}
		sort.Ints(pivots)
		regions = append(regions, pivots)
		for _, p := range pivots {
			delete(unassigned, p)
		}
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i][0] < regions[j][0] })
	return regions
}

// LoadLinkGraph reads a headerless TSV of (sec_feature_name,
// pivot_feature_name) pairs and resolves them against the secondary
// and pivot feature dictionaries, aborting on any unknown name.
func LoadLinkGraph(r io.Reader, secIndex, pivotIndex map[string]int) (*LinkGraph, error) {
	const fname = "links"
	g := newLinkGraph()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, errs.ShapeMismatch("links line %d: want 2 columns, got %d", lineNo, len(fields))
		}
		sec, ok := secIndex[fields[0]]
		if !ok {
			return nil, errs.UnknownIdentifier(fname, lineNo, "unknown secondary feature %q", fields[0])
		}
		pivot, ok := pivotIndex[fields[1]]
		if !ok {
			return nil, errs.UnknownIdentifier(fname, lineNo, "unknown pivot feature %q", fields[1])
		}
		g.addEdge(sec, pivot)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO(fname, err)
	}
	return g, nil
}

// LoadMicroclusters reads a headerless TSV of (cell_name, label) and
// attaches the resulting label->[]cellIdx grouping to g.
func (g *LinkGraph) LoadMicroclusters(r io.Reader, cellIndex map[string]int) error {
	const fname = "microclusters"
	g.Microclusters = make(map[string][]int)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return errs.ShapeMismatch("microclusters line %d: want 2 columns, got %d", lineNo, len(fields))
		}
		cell, ok := cellIndex[fields[0]]
		if !ok {
			return errs.UnknownIdentifier(fname, lineNo, "unknown cell %q", fields[0])
		}
		g.Microclusters[fields[1]] = append(g.Microclusters[fields[1]], cell)
	}
	return sc.Err()
}

// SetAnchors installs the pivot-cell-index -> []secondary-cell-index
// map GibbsEngine uses to hop cells across assays.
func (g *LinkGraph) SetAnchors(anchors map[int][]int) { g.Anchors = anchors }
