// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import "gopkg.in/check.v1"

type observationSuite struct{}

var _ = check.Suite(&observationSuite{})

func (s *observationSuite) TestBuildObservationStreamSumsPerWindow(c *check.C) {
	anchors := newAnchorIndex()
	bc, err := PackBarcode("AAAAAAAAAAAAAAAA-1")
	c.Assert(err, check.IsNil)
	anchors.set(bc, 0, 1.0)

	store := newIntervalStore()
	ci := &chromIntervals{}
	ci.add(5, 15, bc)
	ci.add(95, 105, bc)
	ci.freeze()
	store.chroms["chr1"] = ci

	stream := BuildObservationStream([]*IntervalStore{store}, []*AnchorIndex{anchors}, "chr1", 150, 50, 0)
	c.Check(stream.T, check.Equals, 4) // 150/50 + 1
	c.Check(stream.Obs[0][0], check.Equals, float32(1)) // window [0,50) overlaps [5,15)
	c.Check(stream.Obs[1][0], check.Equals, float32(1)) // window [50,100) overlaps [95,105)
	c.Check(stream.Obs[2][0], check.Equals, float32(1)) // window [100,150) overlaps [95,105)
}

// TestBuildObservationStreamNonMultipleLength pins T = ceil(L/W)+1 for a
// contig length that is not an exact multiple of the window size, where
// floor and ceiling division disagree.
func (s *observationSuite) TestBuildObservationStreamNonMultipleLength(c *check.C) {
	anchors := newAnchorIndex()
	bc, err := PackBarcode("AAAAAAAAAAAAAAAA-1")
	c.Assert(err, check.IsNil)
	anchors.set(bc, 0, 1.0)

	store := newIntervalStore()
	ci := &chromIntervals{}
	ci.add(160, 169, bc)
	ci.freeze()
	store.chroms["chr1"] = ci

	stream := BuildObservationStream([]*IntervalStore{store}, []*AnchorIndex{anchors}, "chr1", 170, 50, 0)
	c.Check(stream.T, check.Equals, 5) // ceil(170/50)+1 == 4+1, not floor(170/50)+1 == 3+1
	c.Check(stream.Obs[3][0], check.Equals, float32(1)) // window [150,200) overlaps [160,169)
}
