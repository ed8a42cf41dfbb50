// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"strings"

	"gopkg.in/check.v1"
)

type modelSuite struct{}

var _ = check.Suite(&modelSuite{})

const validModelFile = `2 1
probinit 1 0.9
probinit 2 0.1
transitionprobs 1 1 0.8
transitionprobs 1 2 0.2
transitionprobs 2 1 0.3
transitionprobs 2 2 0.7
emissionprobs 1 0 0 0 0.9
emissionprobs 1 0 1 1 0.1
emissionprobs 2 0 0 0 0.2
emissionprobs 2 0 1 1 0.8
`

func (s *modelSuite) TestLoadProbModel(c *check.C) {
	m, err := LoadProbModel(strings.NewReader(validModelFile))
	c.Assert(err, check.IsNil)
	c.Check(m.S, check.Equals, 2)
	c.Check(m.A, check.Equals, 1)
	c.Check(m.Init[0], check.Equals, float32(0.9)) // 1.15e-31 floor is below float32 resolution at 0.9
	c.Check(m.Trans[0][1], check.Equals, float32(0.2))
	c.Check(m.Emit[0][0], check.Equals, float32(0.1)) // only the is_presence=1 line is kept
	c.Check(m.Thresh[0], check.Equals, float32(0.5))
}

func (s *modelSuite) TestLoadProbModelShapeMismatch(c *check.C) {
	_, err := LoadProbModel(strings.NewReader("2 1\nprobinit 1 0.9\n"))
	c.Check(err, check.NotNil)
}

func (s *modelSuite) TestSetThresholds(c *check.C) {
	m, err := LoadProbModel(strings.NewReader(validModelFile))
	c.Assert(err, check.IsNil)
	c.Assert(m.SetThresholds([]float32{0.3}), check.IsNil)
	c.Check(m.Thresh[0], check.Equals, float32(0.3))
	c.Check(m.SetThresholds([]float32{0.1, 0.2}), check.NotNil)
}
