// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/parazodiac/Indus/internal/errs"
)

// AnchorIndex maps an assay-native cell barcode to a weighted
// distribution over common-cell indices. A barcode absent from the
// index contributes to no common cell and is silently skipped by
// every reader (spec.md §3/§4.2, scenario S6).
type AnchorIndex struct {
	weights map[uint64]map[uint32]float32
}

func newAnchorIndex() *AnchorIndex {
	return &AnchorIndex{weights: make(map[uint64]map[uint32]float32)}
}

// Weight returns the weight assay cell `barcode` contributes to
// common cell `common`, and whether that pair is present at all.
func (a *AnchorIndex) Weight(barcode uint64, common uint32) (float32, bool) {
	m, ok := a.weights[barcode]
	if !ok {
		return 0, false
	}
	w, ok := m[common]
	return w, ok
}

// Has reports whether barcode contributes to any common cell.
func (a *AnchorIndex) Has(barcode uint64) bool {
	_, ok := a.weights[barcode]
	return ok
}

func (a *AnchorIndex) set(barcode uint64, common uint32, weight float32) {
	m, ok := a.weights[barcode]
	if !ok {
		m = make(map[uint32]float32)
		a.weights[barcode] = m
	}
	m[common] = weight
}

// LoadAnchorIndex parses an anchor TSV:
// common_cell_name<TAB>assay_barcode-<id><TAB>weight
// commonCellIndex resolves a common-cell name to its 0-based index;
// an unresolvable name is fatal (spec.md §6).
func LoadAnchorIndex(r io.Reader, commonCellIndex map[string]uint32) (*AnchorIndex, error) {
	const fname = "anchors"
	idx := newAnchorIndex()
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
		if len(fields) != 3 {
			return nil, errs.InputParse(fname, lineNo, "want 3 tab-separated fields, got %d", len(fields))
		}
		common, ok := commonCellIndex[fields[0]]
		if !ok {
			return nil, errs.UnknownIdentifier(fname, lineNo, "unknown common cell %q", fields[0])
		}
		barcode, err := PackBarcode(fields[1])
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad barcode %q: %v", fields[1], err)
		}
		weight, err := strconv.ParseFloat(fields[2], 32)
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad weight %q: %v", fields[2], err)
		}
		if weight <= 0 || weight > 1 {
			return nil, errs.NumericInvariant("weight out of (0,1] at line %d: %v", lineNo, weight)
		}
		idx.set(barcode, common, float32(weight))
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO(fname, err)
	}
	return idx, nil
}

// LoadCommonCells parses the plain-text common-cell file: one name
// per line, in order. Returns the ordered names and a name->index map
// for use by LoadAnchorIndex.
func LoadCommonCells(r io.Reader) ([]string, map[string]uint32, error) {
	names, err := readLines(r)
	if err != nil {
		return nil, nil, errs.IO("common-cells", err)
	}
	idx := make(map[string]uint32, len(names))
	for i, n := range names {
		idx[n] = uint32(i)
	}
	return names, idx, nil
}
