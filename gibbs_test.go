// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"github.com/james-bowman/sparse"
	"gopkg.in/check.v1"
)

type gibbsSuite struct{}

var _ = check.Suite(&gibbsSuite{})

// TestStateCodec pins scenario S2: decoding offset 45 with 9 secondary
// and 20 pivot features yields (sec=2, pivot=5), and encoding that
// pair with the same pivot count recovers 45.
func (s *gibbsSuite) TestStateCodec(c *check.C) {
	sec, pivot := decodeState(45, 9, 20)
	c.Check(sec, check.Equals, 2)
	c.Check(pivot, check.Equals, 5)
	c.Check(encodeState(2, 5, 20), check.Equals, 45)
}

func (s *gibbsSuite) TestChooseFeatureSingleCandidate(c *check.C) {
	mat := [][]float64{{0, 0, 0}}
	c.Check(chooseFeature(mat, []int{1}, 0.9, 0, nil), check.Equals, 1)
}

func (s *gibbsSuite) TestChooseFeatureWeighted(c *check.C) {
	mat := [][]float64{{1, 3}}
	// cumulative mass: candidate 0 -> 0.25, candidate 1 -> 1.0
	c.Check(chooseFeature(mat, []int{0, 1}, 0.1, 0, nil), check.Equals, 0)
	c.Check(chooseFeature(mat, []int{0, 1}, 0.5, 0, nil), check.Equals, 1)
}

func (s *gibbsSuite) TestGammaMatrixEncoding(c *check.C) {
	g := newGammaMatrix(3, 4)
	g.inc(2, 1)
	g.inc(2, 1)
	c.Check(g.at(2, 1), check.Equals, uint32(2))
	c.Check(g.Counts[encodeState(2, 1, 4)], check.Equals, uint32(2))
}

// buildGibbsFixture wires a 2-cell, 2-feature secondary/pivot pair
// with a single linked region, for exercising GibbsEngine.Run.
func buildGibbsFixture(c *check.C) (*GibbsEngine, GibbsRegion) {
	secDok := sparse.NewDOK(2, 2)
	secDok.Set(0, 0, 5)
	secDok.Set(1, 0, 1)
	secM, err := NewSparseMatrix(secDok, []string{"cellA", "cellB"}, []string{"secFeat0", "secFeat1"})
	c.Assert(err, check.IsNil)

	pivotDok := sparse.NewDOK(2, 2)
	pivotDok.Set(0, 0, 4)
	pivotDok.Set(1, 0, 1)
	pivotM, err := NewSparseMatrix(pivotDok, []string{"cellA", "cellB"}, []string{"pivotFeat0", "pivotFeat1"})
	c.Assert(err, check.IsNil)

	experiment, err := NewMultiModalExperiment([]*SparseMatrix{secM, pivotM})
	c.Assert(err, check.IsNil)

	g := newLinkGraph()
	g.addEdge(0, 0)

	return &GibbsEngine{Experiment: experiment, Graph: g}, GibbsRegion{PivotFeatures: []int{0}}
}

func (s *gibbsSuite) TestGibbsEngineDeterministic(c *check.C) {
	engine, region := buildGibbsFixture(c)
	g1, secs1, err := engine.Run(region, 200, nil, 42)
	c.Assert(err, check.IsNil)
	g2, secs2, err := engine.Run(region, 200, nil, 42)
	c.Assert(err, check.IsNil)
	c.Check(secs1, check.DeepEquals, secs2)
	c.Check(g1.Counts, check.DeepEquals, g2.Counts)

	var total uint32
	for _, v := range g1.Counts {
		total += v
	}
	c.Check(total, check.Equals, uint32(200))
}

func (s *gibbsSuite) TestGibbsEngineShapeMismatch(c *check.C) {
	engine, _ := buildGibbsFixture(c)
	_, _, err := engine.Run(GibbsRegion{}, 10, nil, 1)
	c.Check(err, check.NotNil)
}
