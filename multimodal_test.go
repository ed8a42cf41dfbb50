// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"github.com/james-bowman/sparse"
	"gopkg.in/check.v1"
)

type multimodalSuite struct{}

var _ = check.Suite(&multimodalSuite{})

func oneColMatrix(c *check.C, rowNames []string, colName string, vals []float64) *SparseMatrix {
	dok := sparse.NewDOK(len(rowNames), 1)
	for i, v := range vals {
		if v != 0 {
			dok.Set(i, 0, v)
		}
	}
	m, err := NewSparseMatrix(dok, rowNames, []string{colName})
	c.Assert(err, check.IsNil)
	return m
}

func (s *multimodalSuite) TestNewMultiModalExperimentRejectsMismatchedCells(c *check.C) {
	a := oneColMatrix(c, []string{"x", "y"}, "f0", []float64{1, 2})
	b := oneColMatrix(c, []string{"x", "z"}, "f0", []float64{1, 2})
	_, err := NewMultiModalExperiment([]*SparseMatrix{a, b})
	c.Check(err, check.NotNil)
}

func (s *multimodalSuite) TestNewMultiModalExperimentAccepts(c *check.C) {
	a := oneColMatrix(c, []string{"x", "y"}, "sec0", []float64{1, 2})
	b := oneColMatrix(c, []string{"x", "y"}, "pivot0", []float64{3, 4})
	e, err := NewMultiModalExperiment([]*SparseMatrix{a, b})
	c.Assert(err, check.IsNil)
	c.Check(e.CommonCells, check.DeepEquals, []string{"x", "y"})
	c.Check(e.Secondary(), check.Equals, a)
	c.Check(e.Pivot(), check.Equals, b)
}

func (s *multimodalSuite) TestReindexToCommonCellsDropsExtras(c *check.C) {
	m := oneColMatrix(c, []string{"x", "y", "z"}, "f0", []float64{1, 2, 3})
	out, err := ReindexToCommonCells(m, []string{"z", "x"})
	c.Assert(err, check.IsNil)
	c.Check(out.RowNames(), check.DeepEquals, []string{"z", "x"})
	c.Check(out.Get(0, 0), check.Equals, 3.0)
	c.Check(out.Get(1, 0), check.Equals, 1.0)
}

func (s *multimodalSuite) TestReindexToCommonCellsMissingRowIsZero(c *check.C) {
	m := oneColMatrix(c, []string{"x"}, "f0", []float64{1})
	out, err := ReindexToCommonCells(m, []string{"x", "absent"})
	c.Assert(err, check.IsNil)
	rows, _ := out.Dims()
	c.Check(rows, check.Equals, 2)
	c.Check(out.Get(1, 0), check.Equals, 0.0)
}
