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

	"github.com/james-bowman/sparse"
	"github.com/parazodiac/Indus/internal/errs"
)

// SparseMatrix is an immutable, row/column-addressable sparse table
// of non-negative counts with named rows (cells) and columns
// (features). Backed by github.com/james-bowman/sparse: a CSR for
// row-major access and a lazily-built CSC for column-major access.
type SparseMatrix struct {
	rows, cols int
	rowNames   []string
	colNames   []string
	csr        *sparse.CSR
	csc        *sparse.CSC
}

// Pair is one (index, value) hit from a row or column iteration.
type Pair struct {
	Index int
	Value float64
}

// NewSparseMatrix builds a SparseMatrix from a DOK under construction
// plus row/column name slices, which must match the DOK's dimensions.
func NewSparseMatrix(dok *sparse.DOK, rowNames, colNames []string) (*SparseMatrix, error) {
	r, c := dok.Dims()
	if len(rowNames) != r {
		return nil, errs.ShapeMismatch("matrix has %d rows, got %d row names", r, len(rowNames))
	}
	if len(colNames) != c {
		return nil, errs.ShapeMismatch("matrix has %d cols, got %d col names", c, len(colNames))
	}
	return &SparseMatrix{
		rows:     r,
		cols:     c,
		rowNames: rowNames,
		colNames: colNames,
		csr:      dok.ToCSR(),
	}, nil
}

func (m *SparseMatrix) Dims() (int, int) { return m.rows, m.cols }

func (m *SparseMatrix) RowNames() []string { return m.rowNames }
func (m *SparseMatrix) ColNames() []string { return m.colNames }

// Get returns the value at (r,c), or 0 if absent. Panics if r or c is
// out of range, matching the teacher's own slice-indexing style.
func (m *SparseMatrix) Get(r, c int) float64 {
	return m.csr.At(r, c)
}

// Row invokes fn for every (col, value) pair present in row r, in
// column-ascending order.
func (m *SparseMatrix) Row(r int, fn func(c int, v float64)) {
	m.csr.DoRowNonZero(r, func(i, j int, v float64) { fn(j, v) })
}

// Col invokes fn for every (row, value) pair present in column c, in
// row-ascending order. Builds the CSC view on first use.
func (m *SparseMatrix) Col(c int, fn func(r int, v float64)) {
	if m.csc == nil {
		m.csc = m.csr.ToCSC()
	}
	m.csc.DoColNonZero(c, func(i, j int, v float64) { fn(i, v) })
}

// RowPairs is a convenience wrapper around Row returning a slice,
// useful in tests and in ObservationBuilder-adjacent code that wants
// a materialized view instead of a callback.
func (m *SparseMatrix) RowPairs(r int) []Pair {
	var out []Pair
	m.Row(r, func(c int, v float64) { out = append(out, Pair{c, v}) })
	return out
}

func (m *SparseMatrix) ColPairs(c int) []Pair {
	var out []Pair
	m.Col(c, func(r int, v float64) { out = append(out, Pair{r, v}) })
	return out
}

// LoadMatrixTriple reads a 10x-style matrix triple: a Matrix-Market
// coordinate file, a row-names (cell barcodes) file and a column-names
// (feature ids) file, one name per line, in file order. No pack
// library reads this exact container trio, so it's a hand-rolled
// reader in the same idiom as every other domain-format loader here.
func LoadMatrixTriple(matrixR, rowNamesR, colNamesR io.Reader) (*SparseMatrix, error) {
	rowNames, err := readLines(rowNamesR)
	if err != nil {
		return nil, errs.IO("row-names", err)
	}
	colNames, err := readLines(colNamesR)
	if err != nil {
		return nil, errs.IO("col-names", err)
	}

	const fname = "matrix"
	sc := bufio.NewScanner(matrixR)
	sc.Buffer(make([]byte, 64*1024), 1<<24)
	lineNo := 0
	nextLine := func() (string, bool) {
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if strings.HasPrefix(line, "%") || strings.TrimSpace(line) == "" {
				continue
			}
			return line, true
		}
		return "", false
	}

	dimLine, ok := nextLine()
	if !ok {
		return nil, errs.InputParse(fname, lineNo, "missing dimensions line")
	}
	dims := strings.Fields(dimLine)
	if len(dims) < 2 {
		return nil, errs.InputParse(fname, lineNo, "malformed dimensions line %q", dimLine)
	}
	nrows, err := strconv.Atoi(dims[0])
	if err != nil {
		return nil, errs.InputParse(fname, lineNo, "bad row count %q", dims[0])
	}
	ncols, err := strconv.Atoi(dims[1])
	if err != nil {
		return nil, errs.InputParse(fname, lineNo, "bad col count %q", dims[1])
	}
	if nrows != len(rowNames) {
		return nil, errs.ShapeMismatch("matrix declares %d rows, row-names file has %d", nrows, len(rowNames))
	}
	if ncols != len(colNames) {
		return nil, errs.ShapeMismatch("matrix declares %d cols, col-names file has %d", ncols, len(colNames))
	}

	dok := sparse.NewDOK(nrows, ncols)
	for {
		line, ok := nextLine()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errs.InputParse(fname, lineNo, "want 'row col value', got %q", line)
		}
		r, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad row index %q", fields[0])
		}
		c, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad col index %q", fields[1])
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad value %q", fields[2])
		}
		if v < 0 {
			return nil, errs.NumericInvariant("negative matrix entry at line %d: %v", lineNo, v)
		}
		if r < 1 || r > nrows || c < 1 || c > ncols {
			return nil, errs.InputParse(fname, lineNo, "index out of range: %d,%d", r, c)
		}
		dok.Set(r-1, c-1, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO(fname, err)
	}
	return NewSparseMatrix(dok, rowNames, colNames)
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// newSparseFromRows builds a SparseMatrix from already-materialized
// per-row (col,value) pairs, used by ReindexToCommonCells.
func newSparseFromRows(rows [][]Pair, cols int, rowNames, colNames []string) (*SparseMatrix, error) {
	dok := sparse.NewDOK(len(rows), cols)
	for r, pairs := range rows {
		for _, p := range pairs {
			dok.Set(r, p.Index, p.Value)
		}
	}
	return NewSparseMatrix(dok, rowNames, colNames)
}

// WriteMatrixMarket writes m in the same coordinate format LoadMatrixTriple
// reads, 1-based, dropping explicit zeros.
func WriteMatrixMarket(w io.Writer, m *SparseMatrix) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "%%MatrixMarket matrix coordinate real general"); err != nil {
		return err
	}
	nnz := 0
	for r := 0; r < m.rows; r++ {
		m.Row(r, func(int, float64) { nnz++ })
	}
	if _, err := fmt.Fprintf(bw, "%d %d %d\n", m.rows, m.cols, nnz); err != nil {
		return err
	}
	for r := 0; r < m.rows; r++ {
		var werr error
		m.Row(r, func(c int, v float64) {
			if werr == nil {
				_, werr = fmt.Fprintf(bw, "%d %d %v\n", r+1, c+1, v)
			}
		})
		if werr != nil {
			return werr
		}
	}
	return bw.Flush()
}
