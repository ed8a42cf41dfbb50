// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// RunSummary is the small QC report emitted at the end of a pipeline
// run: per-assay, per-chromosome retained fragment counts alongside
// the shape of the work actually performed.
type RunSummary struct {
	mu sync.Mutex

	AssayFragmentCounts []map[string]int // AssayFragmentCounts[assay][contig] = count
	AssayDiscards       []int            // fragment records dropped for lacking an anchor, per assay

	CellsProcessed int
	RegionsSampled int
	EntriesWritten int
}

// NewRunSummary seeds per-assay counters from the IntervalStores a
// pipeline run loaded.
func NewRunSummary(stores []*IntervalStore) *RunSummary {
	s := &RunSummary{
		AssayFragmentCounts: make([]map[string]int, len(stores)),
		AssayDiscards:       make([]int, len(stores)),
	}
	for i, st := range stores {
		s.AssayFragmentCounts[i] = st.Counts()
		s.AssayDiscards[i] = st.Discards()
	}
	return s
}

func (s *RunSummary) addCell()              { s.mu.Lock(); s.CellsProcessed++; s.mu.Unlock() }
func (s *RunSummary) addRegion()            { s.mu.Lock(); s.RegionsSampled++; s.mu.Unlock() }
func (s *RunSummary) addEntries(n int)      { s.mu.Lock(); s.EntriesWritten += n; s.mu.Unlock() }

// Log writes the summary to log at info level, one line per assay
// plus the totals, the way the teacher's own exporters log a run's
// final tally.
func (s *RunSummary) Log(log *logrus.Logger) {
	for a, counts := range s.AssayFragmentCounts {
		var contigs []string
		for c := range counts {
			contigs = append(contigs, c)
		}
		sort.Strings(contigs)
		total := 0
		for _, c := range contigs {
			total += counts[c]
		}
		log.WithFields(logrus.Fields{
			"assay":    a,
			"contigs":  len(contigs),
			"records":  total,
			"discards": s.AssayDiscards[a],
		}).Info("fragment QC summary")
	}
	log.WithFields(logrus.Fields{
		"cellsProcessed": s.CellsProcessed,
		"regionsSampled": s.RegionsSampled,
		"entriesWritten": s.EntriesWritten,
	}).Info("run summary")
}

// Pipeline fans a forward-backward or Gibbs run out across a bounded
// worker pool: the producer starts one goroutine per job through
// throttle.Go, which blocks once Workers jobs are running (there is no
// separate job queue), and a single writer goroutine drains a bounded
// completion channel, writing results in the order they arrive.
// throttle supplies both the worker bound and first-error capture.
type Pipeline struct {
	Workers int
}

func (p *Pipeline) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}

type fbJob struct {
	Contig string
	Length int
	Cell   uint32
}

type fbResult struct {
	Contig string
	Cell   uint32
	Post   *PosteriorMatrix
}

// RunForwardBackward drives HmmEngine across every (contig, cell) pair
// and writes each cell's posterior block to out in Matrix Market
// format, one block per job, prefixed by a "%%indus contig cell"
// marker line so a downstream reader can split the stream back out.
func (p *Pipeline) RunForwardBackward(engine *HmmEngine, contigs *ContigTable, stores []*IntervalStore, anchors []*AnchorIndex, w int, cells []uint32, out io.Writer) (*RunSummary, error) {
	summary := NewRunSummary(stores)
	thr := &throttle{Max: p.workers()}
	results := make(chan fbResult, p.workers()*2)
	writeErrCh := make(chan error, 1)

	go func() {
		var writeErr error
		for res := range results {
			summary.addCell()
			if writeErr != nil {
				continue
			}
			if _, err := fmt.Fprintf(out, "%%%%indus %s %d\n", res.Contig, res.Cell); err != nil {
				writeErr = err
				continue
			}
			if err := WriteMatrixMarket(out, res.Post.SparseMatrix); err != nil {
				writeErr = err
				continue
			}
			nnz, _ := countNonZero(res.Post.SparseMatrix)
			summary.addEntries(nnz)
		}
		writeErrCh <- writeErr
	}()

loop:
	for _, contig := range contigs.Names() {
		length, _ := contigs.Len(contig)
		for _, cell := range cells {
			contig, length, cell := contig, length, cell
			err := thr.Go(func() error {
				stream := BuildObservationStream(stores, anchors, contig, length, w, cell)
				post, err := engine.Run(stream)
				if err != nil {
					return err
				}
				results <- fbResult{Contig: contig, Cell: cell, Post: post}
				return nil
			})
			if err != nil {
				break loop
			}
		}
	}
	runErr := thr.Wait()
	close(results)
	writeErr := <-writeErrCh
	if runErr != nil {
		return summary, runErr
	}
	return summary, writeErr
}

// regionSeed derives a region's RNG seed deterministically from the
// run seed and the region's index, so re-running a pipeline with the
// same inputs reproduces every region's Gamma exactly (spec.md §9).
func regionSeed(runSeed uint64, regionKey int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], runSeed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(regionKey))
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

func countNonZero(m *SparseMatrix) (int, error) {
	rows, _ := m.Dims()
	n := 0
	for r := 0; r < rows; r++ {
		m.Row(r, func(int, float64) { n++ })
	}
	return n, nil
}

type gibbsJob struct {
	RegionID int
	Region   GibbsRegion
}

type gibbsResult struct {
	RegionID int
	Gamma    *GammaMatrix
	Secs     []int
}

// RunGibbs drives GibbsEngine across every region and writes
// (sec_name, pivot_name, count, region_id) rows to out. region_id is
// the region's index in regions, so it does not depend on worker
// completion order; the order in which regions' rows appear in out
// does.
func (p *Pipeline) RunGibbs(engine *GibbsEngine, regions []GibbsRegion, n int, cellSubset []int, seed uint64, secNames, pivotNames []string, out io.Writer) (*RunSummary, error) {
	summary := NewRunSummary(nil)
	thr := &throttle{Max: p.workers()}
	results := make(chan gibbsResult, p.workers()*2)
	writeErrCh := make(chan error, 1)

	go func() {
		var writeErr error
		for res := range results {
			summary.addRegion()
			if writeErr != nil {
				continue
			}
			g := res.Gamma
			for s := 0; s < g.NumSecs; s++ {
				for pv := 0; pv < g.NumPivots; pv++ {
					cnt := g.at(s, pv)
					if cnt == 0 {
						continue
					}
					if _, err := fmt.Fprintf(out, "%s\t%s\t%d\t%d\n", secNames[res.Secs[s]], pivotNames[regions[res.RegionID].PivotFeatures[pv]], cnt, res.RegionID); err != nil {
						writeErr = err
						break
					}
					summary.addEntries(1)
				}
			}
		}
		writeErrCh <- writeErr
	}()

loop:
	for i, region := range regions {
		i, region := i, region
		regionSeed := regionSeed(seed, i)
		err := thr.Go(func() error {
			gamma, secs, err := engine.Run(region, n, cellSubset, regionSeed)
			if err != nil {
				return err
			}
			results <- gibbsResult{RegionID: i, Gamma: gamma, Secs: secs}
			return nil
		})
		if err != nil {
			break loop
		}
	}
	runErr := thr.Wait()
	close(results)
	writeErr := <-writeErrCh
	if runErr != nil {
		return summary, runErr
	}
	return summary, writeErr
}

// RunGibbsMicroclustered drives one Gibbs run per region per
// microcluster group, restricting each run's cell subset to the
// group's cells and re-seeding the RNG per (region, cluster) pair —
// the re-seed choice spec.md §9 leaves open, decided in DESIGN.md.
// Output rows gain a trailing microcluster label column.
func (p *Pipeline) RunGibbsMicroclustered(engine *GibbsEngine, regions []GibbsRegion, n int, microclusters map[string][]int, seed uint64, secNames, pivotNames []string, out io.Writer) (*RunSummary, error) {
	summary := NewRunSummary(nil)

	labels := make([]string, 0, len(microclusters))
	for label := range microclusters {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		cells := microclusters[label]
		var buf strings.Builder
		clusterSummary, err := p.RunGibbs(engine, regions, n, cells, clusterSeed(seed, label), secNames, pivotNames, &buf)
		if err != nil {
			return summary, err
		}
		summary.CellsProcessed += clusterSummary.CellsProcessed
		summary.RegionsSampled += clusterSummary.RegionsSampled
		for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
			if line == "" {
				continue
			}
			if _, err := fmt.Fprintf(out, "%s\t%s\n", line, label); err != nil {
				return summary, err
			}
			summary.addEntries(1)
		}
	}
	return summary, nil
}

// clusterSeed derives a microcluster's RNG seed from the run seed and
// its label, independently of regionSeed's region-index hashing.
func clusterSeed(runSeed uint64, label string) uint64 {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], runSeed)
	h.Write(buf[:])
	h.Write([]byte(label))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}
