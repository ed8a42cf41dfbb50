// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/parazodiac/Indus/internal/errs"
	"github.com/sirupsen/logrus"
)

// gammaCmd runs GibbsEngine across every independently quantifiable
// region of a link graph and writes the resulting counts as
// (sec_name, pivot_name, count, region_id) TSV rows.
type gammaCmd struct{}

func (cmd *gammaCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	log := logrus.StandardLogger()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	flags.SetOutput(stderr)
	secMatrix := flags.String("secondary-matrix", "", "secondary assay matrix `file`")
	secBarcodes := flags.String("secondary-barcodes", "", "secondary assay cell barcodes `file`")
	secFeatures := flags.String("secondary-features", "", "secondary assay feature names `file`")
	pivotMatrix := flags.String("pivot-matrix", "", "pivot assay matrix `file`")
	pivotBarcodes := flags.String("pivot-barcodes", "", "pivot assay cell barcodes `file`")
	pivotFeatures := flags.String("pivot-features", "", "pivot assay feature names `file`")
	links := flags.String("links", "", "secondary/pivot feature link `file`")
	microclustersPath := flags.String("microclusters", "", "optional cell microcluster label `file`; drives one Gibbs run per group")
	anchorsPath := flags.String("anchors", "", "optional cross-assay cell anchor `file`")
	samples := flags.Int("samples", 10000, "number of Gibbs samples per region")
	seed := flags.Int("seed", 1, "base RNG seed")
	workers := flags.Int("workers", 4, "number of concurrent regions to process")
	output := flags.String("output-file", "", "output `file` (default: stdout)")
	pprofAddr := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port` while running")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *secMatrix == "" || *pivotMatrix == "" || *links == "" {
		fmt.Fprintln(stderr, "gamma: -secondary-matrix, -pivot-matrix and -links are required")
		return 2
	}
	if *pprofAddr != "" {
		go http.ListenAndServe(*pprofAddr, nil)
	}

	sec, err := loadTriple(*secMatrix, *secBarcodes, *secFeatures)
	if err != nil {
		log.Error(err)
		return 1
	}
	pivot, err := loadTriple(*pivotMatrix, *pivotBarcodes, *pivotFeatures)
	if err != nil {
		log.Error(err)
		return 1
	}

	experiment, err := NewMultiModalExperiment([]*SparseMatrix{sec, pivot})
	if err != nil {
		log.Error(err)
		return 1
	}

	secIndex := make(map[string]int, len(sec.ColNames()))
	for i, n := range sec.ColNames() {
		secIndex[n] = i
	}
	pivotIndex := make(map[string]int, len(pivot.ColNames()))
	for i, n := range pivot.ColNames() {
		pivotIndex[n] = i
	}

	linksF, err := os.Open(*links)
	if err != nil {
		log.Error(err)
		return 1
	}
	graph, err := LoadLinkGraph(linksF, secIndex, pivotIndex)
	linksF.Close()
	if err != nil {
		log.Error(err)
		return 1
	}

	if *microclustersPath != "" {
		cellIndex := make(map[string]int, len(experiment.CommonCells))
		for i, n := range experiment.CommonCells {
			cellIndex[n] = i
		}
		mcF, err := os.Open(*microclustersPath)
		if err != nil {
			log.Error(err)
			return 1
		}
		err = graph.LoadMicroclusters(mcF, cellIndex)
		mcF.Close()
		if err != nil {
			log.Error(err)
			return 1
		}
	}

	if *anchorsPath != "" {
		anchorsF, err := os.Open(*anchorsPath)
		if err != nil {
			log.Error(err)
			return 1
		}
		anchors, err := loadCellAnchors(anchorsF, experiment.CommonCells)
		anchorsF.Close()
		if err != nil {
			log.Error(err)
			return 1
		}
		graph.SetAnchors(anchors)
	}

	regions := graph.ExtractIQRs()
	jobs := make([]GibbsRegion, len(regions))
	for i, r := range regions {
		jobs[i] = GibbsRegion{PivotFeatures: r}
	}

	var out io.Writer = stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Error(err)
			return 1
		}
		defer f.Close()
		out = f
	}

	engine := &GibbsEngine{Experiment: experiment, Graph: graph}
	p := &Pipeline{Workers: *workers}

	var summary *RunSummary
	if len(graph.Microclusters) > 0 {
		summary, err = p.RunGibbsMicroclustered(engine, jobs, *samples, graph.Microclusters, uint64(*seed), sec.ColNames(), pivot.ColNames(), out)
	} else {
		summary, err = p.RunGibbs(engine, jobs, *samples, nil, uint64(*seed), sec.ColNames(), pivot.ColNames(), out)
	}
	if summary != nil {
		summary.Log(log)
	}
	if err != nil {
		log.Error(err)
		return 1
	}
	return 0
}

// loadCellAnchors reads a headerless TSV of (pivot_cell_name,
// secondary_cell_name) pairs and resolves both columns against the
// shared common-cell ordering, building the pivot_cell_idx ->
// []sec_cell_idx map LinkGraph.Anchors expects.
func loadCellAnchors(r io.Reader, commonCells []string) (map[int][]int, error) {
	cellIndex := make(map[string]int, len(commonCells))
	for i, n := range commonCells {
		cellIndex[n] = i
	}
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	const fname = "cell-anchors"
	out := make(map[int][]int)
	for lineNo, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, errs.InputParse(fname, lineNo+1, "want 2 tab-separated fields, got %d", len(fields))
		}
		pivotCell, ok := cellIndex[fields[0]]
		if !ok {
			return nil, errs.UnknownIdentifier(fname, lineNo+1, "unknown common cell %q", fields[0])
		}
		secCell, ok := cellIndex[fields[1]]
		if !ok {
			return nil, errs.UnknownIdentifier(fname, lineNo+1, "unknown common cell %q", fields[1])
		}
		out[pivotCell] = insertSorted(out[pivotCell], secCell)
	}
	return out, nil
}

func loadTriple(matrixPath, barcodesPath, featuresPath string) (*SparseMatrix, error) {
	mf, err := os.Open(matrixPath)
	if err != nil {
		return nil, err
	}
	defer mf.Close()
	bf, err := os.Open(barcodesPath)
	if err != nil {
		return nil, err
	}
	defer bf.Close()
	ff, err := os.Open(featuresPath)
	if err != nil {
		return nil, err
	}
	defer ff.Close()
	return LoadMatrixTriple(mf, bf, ff)
}
