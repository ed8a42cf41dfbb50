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
	"strconv"
	"strings"

	"github.com/parazodiac/Indus/internal/errs"
	"github.com/sirupsen/logrus"
)

// forwardBackwardCmd runs HmmEngine across every contig and common
// cell in a multi-assay experiment, writing one posterior block per
// (contig, cell) pair to stdout (or -output-file).
type forwardBackwardCmd struct{}

func (cmd *forwardBackwardCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	log := logrus.StandardLogger()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	flags.SetOutput(stderr)
	model := flags.String("model", "", "probability model `file`")
	commonCells := flags.String("common-cells", "", "common cell list `file`")
	contigs := flags.String("contigs", "", "contig length table `file`")
	window := flags.Int("window", 0, "window size in base pairs")
	workers := flags.Int("workers", 4, "number of concurrent cells to process")
	output := flags.String("output-file", "", "output `file` (default: stdout)")
	pprofAddr := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port` while running")
	var fragmentFiles, anchorFiles, thresh commaSeparated
	flags.Var(&fragmentFiles, "fragments", "comma-separated fragment file paths, one per assay, secondary first")
	flags.Var(&anchorFiles, "anchors", "comma-separated anchor index file paths, one per assay")
	flags.Var(&thresh, "thresh", "comma-separated per-assay presence/absence threshold, one per assay")
	gz := flags.Bool("gzip-fragments", true, "fragment files are pgzip-compressed")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *model == "" || *commonCells == "" || *contigs == "" || *window <= 0 || len(fragmentFiles) == 0 || len(anchorFiles) == 0 || len(thresh) == 0 {
		fmt.Fprintln(stderr, "forward-backward: -model, -common-cells, -contigs, -window, -fragments, -anchors and -thresh are required")
		return 2
	}
	if len(anchorFiles) != len(fragmentFiles) {
		fmt.Fprintln(stderr, "forward-backward: -anchors must name one file per -fragments entry")
		return 2
	}
	if *pprofAddr != "" {
		go http.ListenAndServe(*pprofAddr, nil)
	}

	modelF, err := os.Open(*model)
	if err != nil {
		log.Error(err)
		return 1
	}
	m, err := LoadProbModel(modelF)
	modelF.Close()
	if err != nil {
		log.Error(err)
		return 1
	}

	threshVals := make([]float32, len(thresh))
	for i, s := range thresh {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			log.Error(errs.InputParse("thresh", 0, "bad threshold %q: %v", s, err))
			return 1
		}
		threshVals[i] = float32(v)
	}
	if err := m.SetThresholds(threshVals); err != nil {
		log.Error(err)
		return 1
	}

	ccF, err := os.Open(*commonCells)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer ccF.Close()
	_, ccIndex, err := LoadCommonCells(ccF)
	if err != nil {
		log.Error(err)
		return 1
	}

	contigF, err := os.Open(*contigs)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer contigF.Close()
	contigTable, err := LoadContigTable(contigF)
	if err != nil {
		log.Error(err)
		return 1
	}

	var anchors []*AnchorIndex
	for _, path := range anchorFiles {
		f, err := os.Open(path)
		if err != nil {
			log.Error(err)
			return 1
		}
		idx, err := LoadAnchorIndex(f, ccIndex)
		f.Close()
		if err != nil {
			log.Error(err)
			return 1
		}
		anchors = append(anchors, idx)
	}

	var stores []*IntervalStore
	for i, path := range fragmentFiles {
		f, err := os.Open(path)
		if err != nil {
			log.Error(err)
			return 1
		}
		st, err := LoadFragments(f, *gz, anchors[i])
		f.Close()
		if err != nil {
			log.Error(err)
			return 1
		}
		stores = append(stores, st)
	}

	cells := make([]uint32, len(ccIndex))
	for _, idx := range ccIndex {
		cells[idx] = idx
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

	engine := &HmmEngine{Model: m}
	p := &Pipeline{Workers: *workers}
	summary, err := p.RunForwardBackward(engine, contigTable, stores, anchors, *window, cells, out)
	if summary != nil {
		summary.Log(log)
	}
	if err != nil {
		log.Error(err)
		return 1
	}
	return 0
}

// commaSeparated is a flag.Value splitting its argument on commas.
type commaSeparated []string

func (c *commaSeparated) String() string { return strings.Join(*c, ",") }
func (c *commaSeparated) Set(s string) error {
	*c = strings.Split(s, ",")
	return nil
}
