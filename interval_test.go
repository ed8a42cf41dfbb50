// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import "gopkg.in/check.v1"

type intervalSuite struct{}

var _ = check.Suite(&intervalSuite{})

func (s *intervalSuite) TestQueryFindsAllOverlaps(c *check.C) {
	ci := &chromIntervals{}
	ci.add(0, 10, 1)
	ci.add(5, 15, 2)
	ci.add(20, 30, 3)
	ci.add(9, 11, 4)
	ci.freeze()

	hits := ci.query(8, 12, nil)
	barcodes := map[uint64]bool{}
	for _, h := range hits {
		barcodes[h.barcode] = true
	}
	c.Check(barcodes, check.DeepEquals, map[uint64]bool{1: true, 2: true, 4: true})
}

func (s *intervalSuite) TestQueryEmptyRange(c *check.C) {
	ci := &chromIntervals{}
	ci.add(0, 10, 1)
	ci.freeze()
	c.Check(ci.query(100, 200, nil), check.HasLen, 0)
}

func (s *intervalSuite) TestQueryPanicsBeforeFreeze(c *check.C) {
	ci := &chromIntervals{}
	ci.add(0, 10, 1)
	c.Check(func() { ci.query(0, 5, nil) }, check.PanicMatches, "bug: chromIntervals.query called before freeze")
}
