// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import "github.com/parazodiac/Indus/internal/errs"

const (
	// SecondaryAssay and PivotAssay are the two distinguished
	// modality indices spec.md fixes: secondary is 0, pivot is 1.
	SecondaryAssay = 0
	PivotAssay     = 1
)

// MultiModalExperiment is an ordered collection of SparseMatrix, one
// per assay, sharing a common cell ordering. Index 0 is secondary,
// index 1 is pivot; any further assays are carried but not
// distinguished by the core engines.
type MultiModalExperiment struct {
	Assays      []*SparseMatrix
	CommonCells []string
}

// NewMultiModalExperiment validates spec.md's invariant that every
// assay shares the same cell count and cell-name ordering before
// admitting the experiment.
func NewMultiModalExperiment(assays []*SparseMatrix) (*MultiModalExperiment, error) {
	if len(assays) < 2 {
		return nil, errs.ShapeMismatch("experiment needs at least 2 assays (secondary, pivot), got %d", len(assays))
	}
	common := assays[0].RowNames()
	for i, a := range assays[1:] {
		names := a.RowNames()
		if len(names) != len(common) {
			return nil, errs.ShapeMismatch("assay %d has %d cells, assay 0 has %d", i+1, len(names), len(common))
		}
		for j := range names {
			if names[j] != common[j] {
				return nil, errs.ShapeMismatch("assay %d cell %d is %q, assay 0 has %q", i+1, j, names[j], common[j])
			}
		}
	}
	return &MultiModalExperiment{Assays: assays, CommonCells: common}, nil
}

func (e *MultiModalExperiment) Secondary() *SparseMatrix { return e.Assays[SecondaryAssay] }
func (e *MultiModalExperiment) Pivot() *SparseMatrix     { return e.Assays[PivotAssay] }

// ReindexToCommonCells reindexes a matrix whose row set is a superset
// of (or differently ordered from) commonCells onto exactly that
// ordering, dropping rows not present in commonCells. This resolves
// the invariant MultiModalExperiment requires when a matrix's own
// barcode file doesn't already match the shared common-cell file
// (original_source's unify.rs handles the same reconciliation).
func ReindexToCommonCells(m *SparseMatrix, commonCells []string) (*SparseMatrix, error) {
	pos := make(map[string]int, len(m.RowNames()))
	for i, name := range m.RowNames() {
		pos[name] = i
	}
	_, cols := m.Dims()
	dokRows := make([][]Pair, len(commonCells))
	for i, name := range commonCells {
		srcRow, ok := pos[name]
		if !ok {
			continue
		}
		dokRows[i] = m.RowPairs(srcRow)
	}
	out, err := newSparseFromRows(dokRows, cols, commonCells, m.ColNames())
	if err != nil {
		return nil, err
	}
	return out, nil
}
