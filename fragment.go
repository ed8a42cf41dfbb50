// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/parazodiac/Indus/internal/errs"
)

// baseCode maps A/C/G/T (upper or lower case) to its 2-bit code.
var baseCode = [256]int8{}

func init() {
	for i := range baseCode {
		baseCode[i] = -1
	}
	baseCode['A'], baseCode['a'] = 0, 0
	baseCode['C'], baseCode['c'] = 1, 1
	baseCode['G'], baseCode['g'] = 2, 2
	baseCode['T'], baseCode['t'] = 3, 3
}

// PackBarcode encodes a "<16-base DNA>-<small integer>" fragment
// barcode field into a single uint64: the 16 bases packed 2 bits each
// MSB-first into the low 32 bits, with the integer suffix OR'd into
// the next byte up (bits 32-39), per spec.md §6.
func PackBarcode(field string) (uint64, error) {
	dash := strings.LastIndexByte(field, '-')
	if dash < 0 {
		return 0, errs.InputParse("barcode", 0, "missing '-<suffix>' in %q", field)
	}
	seq, suffixStr := field[:dash], field[dash+1:]
	if len(seq) != 16 {
		return 0, errs.InputParse("barcode", 0, "expected 16-base prefix, got %d bases in %q", len(seq), field)
	}
	suffix, err := strconv.Atoi(suffixStr)
	if err != nil || suffix < 0 || suffix > 255 {
		return 0, errs.InputParse("barcode", 0, "suffix must be a byte-sized integer, got %q", suffixStr)
	}
	var packed uint64
	for i := 0; i < 16; i++ {
		code := baseCode[seq[i]]
		if code < 0 {
			return 0, errs.InputParse("barcode", 0, "non-ACGT base %q in %q", string(seq[i]), field)
		}
		packed = (packed << 2) | uint64(code)
	}
	packed |= uint64(suffix) << 32
	return packed, nil
}

// FragmentRecord is one half-open genomic interval tagged with the
// cell that produced it, per spec.md §3.
type FragmentRecord struct {
	Contig  string
	Start   int
	End     int
	Barcode uint64
}

// IntervalStore is a per-assay, per-chromosome index of cell-tagged
// half-open intervals, queryable for weighted overlap hits once an
// AnchorIndex resolves each interval's barcode to a contribution for
// one common cell.
type IntervalStore struct {
	chroms   map[string]*chromIntervals
	counts   map[string]int
	discards int
}

func newIntervalStore() *IntervalStore {
	return &IntervalStore{chroms: make(map[string]*chromIntervals), counts: make(map[string]int)}
}

// Counts returns the number of retained fragment records per
// chromosome, for RunSummary's QC report.
func (s *IntervalStore) Counts() map[string]int { return s.counts }

// Discards reports how many fragment records were dropped because
// their barcode had no entry in the supplied AnchorIndex.
func (s *IntervalStore) Discards() int { return s.discards }

// LoadFragments reads bgzipped-or-plain TSV fragment records
// (contig, start, end, barcode, ...) and builds an IntervalStore,
// discarding any record whose barcode is absent from anchors
// entirely (spec.md §4.2 edge behaviour). gz selects whether r is
// pgzip-compressed; pgzip gives the same parallel-friendly streaming
// decompression the teacher's own gob/slice loaders use for bgzip-like
// inputs.
func LoadFragments(r io.Reader, gz bool, anchors *AnchorIndex) (*IntervalStore, error) {
	const fname = "fragments"
	var rdr io.Reader = r
	if gz {
		zr, err := pgzip.NewReader(bufio.NewReaderSize(r, 1<<20))
		if err != nil {
			return nil, errs.IO(fname, err)
		}
		defer zr.Close()
		rdr = zr
	}

	store := newIntervalStore()
	sc := bufio.NewScanner(rdr)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, errs.InputParse(fname, lineNo, "want at least 4 tab-separated fields, got %d", len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad start %q", fields[1])
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "bad end %q", fields[2])
		}
		if start >= end {
			return nil, errs.InputParse(fname, lineNo, "interval not start<end: %d,%d", start, end)
		}
		barcode, err := PackBarcode(fields[3])
		if err != nil {
			return nil, errs.InputParse(fname, lineNo, "%v", err)
		}
		if anchors != nil && !anchors.Has(barcode) {
			store.discards++
			continue
		}
		ci, ok := store.chroms[fields[0]]
		if !ok {
			ci = &chromIntervals{}
			store.chroms[fields[0]] = ci
		}
		ci.add(start, end, barcode)
		store.counts[fields[0]]++
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO(fname, err)
	}
	for _, ci := range store.chroms {
		ci.freeze()
	}
	return store, nil
}

// WeightedHit is one interval overlapping a query window, resolved to
// the weight it contributes toward a specific common cell.
type WeightedHit struct {
	Weight float32
}

// QueryWeighted returns the sum of anchor-resolved weights every
// interval in contig overlapping [start,end) contributes to common
// cell c. A record whose barcode has no entry for c (but is present
// in the index for some other common cell) contributes zero, per
// spec.md §3's AnchorIndex semantics.
func (s *IntervalStore) QueryWeighted(contig string, start, end int, anchors *AnchorIndex, c uint32) float32 {
	ci, ok := s.chroms[contig]
	if !ok {
		return 0
	}
	var buf [64]fragmentInterval
	hits := ci.query(start, end, buf[:0])
	var total float32
	for _, h := range hits {
		if w, ok := anchors.Weight(h.barcode, c); ok {
			total += w
		}
	}
	return total
}
