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

// ContigTable holds the (name, length) pairs the forward-backward
// path needs to size each chromosome's ObservationStream. Per the
// REDESIGN FLAG on implicit genome-build assumptions, this always
// comes from an explicit flag-supplied file rather than a hardcoded
// reference build.
type ContigTable struct {
	order  []string
	length map[string]int
}

// Names returns the contigs in file order.
func (c *ContigTable) Names() []string { return c.order }

// Len returns a contig's length and whether it is known.
func (c *ContigTable) Len(contig string) (int, bool) {
	l, ok := c.length[contig]
	return l, ok
}

// LoadContigTable parses a headerless TSV of (contig_name, length).
func LoadContigTable(r io.Reader) (*ContigTable, error) {
	const fname = "contigs"
	t := &ContigTable{length: make(map[string]int)}
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
		if len(fields) != 2 {
			return nil, errs.InputParse(fname, lineNo, "want 2 tab-separated fields, got %d", len(fields))
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil || length <= 0 {
			return nil, errs.InputParse(fname, lineNo, "bad contig length %q", fields[1])
		}
		if _, dup := t.length[fields[0]]; dup {
			return nil, errs.InputParse(fname, lineNo, "duplicate contig %q", fields[0])
		}
		t.order = append(t.order, fields[0])
		t.length[fields[0]] = length
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO(fname, err)
	}
	return t, nil
}
