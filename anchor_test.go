// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"strings"

	"gopkg.in/check.v1"
)

type anchorSuite struct{}

var _ = check.Suite(&anchorSuite{})

func (s *anchorSuite) TestLoadCommonCells(c *check.C) {
	names, idx, err := LoadCommonCells(strings.NewReader("cellA\ncellB\ncellC\n"))
	c.Assert(err, check.IsNil)
	c.Check(names, check.DeepEquals, []string{"cellA", "cellB", "cellC"})
	c.Check(idx["cellB"], check.Equals, uint32(1))
}

func (s *anchorSuite) TestLoadAnchorIndex(c *check.C) {
	_, idx, err := LoadCommonCells(strings.NewReader("cellA\ncellB\n"))
	c.Assert(err, check.IsNil)

	body := "cellA\tAAAAAAAAAAAAAAAA-1\t0.8\ncellB\tAAAAAAAAAAAAAAAA-2\t1.0\n"
	anchors, err := LoadAnchorIndex(strings.NewReader(body), idx)
	c.Assert(err, check.IsNil)

	bc, err := PackBarcode("AAAAAAAAAAAAAAAA-1")
	c.Assert(err, check.IsNil)
	w, ok := anchors.Weight(bc, 0)
	c.Check(ok, check.Equals, true)
	c.Check(w, check.Equals, float32(0.8))
	c.Check(anchors.Has(bc), check.Equals, true)

	unknownBc, _ := PackBarcode("TTTTTTTTTTTTTTTT-9")
	c.Check(anchors.Has(unknownBc), check.Equals, false)
}

func (s *anchorSuite) TestLoadAnchorIndexRejectsBadWeight(c *check.C) {
	_, idx, _ := LoadCommonCells(strings.NewReader("cellA\n"))
	_, err := LoadAnchorIndex(strings.NewReader("cellA\tAAAAAAAAAAAAAAAA-1\t1.5\n"), idx)
	c.Check(err, check.NotNil)
}

func (s *anchorSuite) TestLoadAnchorIndexRejectsUnknownCell(c *check.C) {
	_, idx, _ := LoadCommonCells(strings.NewReader("cellA\n"))
	_, err := LoadAnchorIndex(strings.NewReader("cellZ\tAAAAAAAAAAAAAAAA-1\t0.5\n"), idx)
	c.Check(err, check.NotNil)
}
