// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"strings"

	"gopkg.in/check.v1"
)

type fragmentSuite struct{}

var _ = check.Suite(&fragmentSuite{})

func (s *fragmentSuite) TestPackBarcodeRoundTrip(c *check.C) {
	b1, err := PackBarcode("AAAAAAAAAAAAAAAA-3")
	c.Assert(err, check.IsNil)
	b2, err := PackBarcode("AAAAAAAAAAAAAAAA-3")
	c.Assert(err, check.IsNil)
	c.Check(b1, check.Equals, b2)

	b3, err := PackBarcode("AAAAAAAAAAAAAAAC-3")
	c.Assert(err, check.IsNil)
	c.Check(b3, check.Not(check.Equals), b1)

	b4, err := PackBarcode("AAAAAAAAAAAAAAAA-4")
	c.Assert(err, check.IsNil)
	c.Check(b4, check.Not(check.Equals), b1)
}

func (s *fragmentSuite) TestPackBarcodeRejectsBadInput(c *check.C) {
	_, err := PackBarcode("ACGT-1")
	c.Check(err, check.NotNil)
	_, err = PackBarcode("AAAAAAAAAAAAAAAN-1")
	c.Check(err, check.NotNil)
	_, err = PackBarcode("AAAAAAAAAAAAAAAA-999")
	c.Check(err, check.NotNil)
	_, err = PackBarcode("noSuffixHere")
	c.Check(err, check.NotNil)
}

func (s *fragmentSuite) TestLoadFragmentsDiscardsUnanchoredBarcodes(c *check.C) {
	anchors := newAnchorIndex()
	known, err := PackBarcode("AAAAAAAAAAAAAAAA-1")
	c.Assert(err, check.IsNil)
	anchors.set(known, 0, 1.0)

	body := strings.Join([]string{
		"chr1\t100\t200\tAAAAAAAAAAAAAAAA-1",
		"chr1\t150\t250\tCCCCCCCCCCCCCCCC-1", // unknown barcode, discarded
	}, "\n") + "\n"

	store, err := LoadFragments(strings.NewReader(body), false, anchors)
	c.Assert(err, check.IsNil)
	c.Check(store.Discards(), check.Equals, 1)
	c.Check(store.Counts()["chr1"], check.Equals, 1)
}

func (s *fragmentSuite) TestQueryWeightedSumsOverlaps(c *check.C) {
	anchors := newAnchorIndex()
	bc, err := PackBarcode("AAAAAAAAAAAAAAAA-1")
	c.Assert(err, check.IsNil)
	anchors.set(bc, 0, 0.5)

	body := "chr1\t100\t200\tAAAAAAAAAAAAAAAA-1\nchr1\t180\t260\tAAAAAAAAAAAAAAAA-1\n"
	store, err := LoadFragments(strings.NewReader(body), false, anchors)
	c.Assert(err, check.IsNil)

	total := store.QueryWeighted("chr1", 150, 250, anchors, 0)
	c.Check(total, check.Equals, float32(1.0)) // both intervals overlap [150,250)
}

func (s *fragmentSuite) TestQueryWeightedUnknownContig(c *check.C) {
	anchors := newAnchorIndex()
	store, err := LoadFragments(strings.NewReader(""), false, anchors)
	c.Assert(err, check.IsNil)
	c.Check(store.QueryWeighted("chrZ", 0, 10, anchors, 0), check.Equals, float32(0))
}
