// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package indus

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// handler is the per-subcommand interface every indus subcommand
// implements, in the same RunCommand(prog, args, stdin, stdout,
// stderr) int shape the teacher dispatches on.
type handler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

type handlerFunc func(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int

func (f handlerFunc) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return f(prog, args, stdin, stdout, stderr)
}

var versionHandler = handlerFunc(func(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "%s %s\n", prog, version)
	return 0
})

var handlers = map[string]handler{
	"version":          versionHandler,
	"-version":         versionHandler,
	"--version":        versionHandler,
	"forward-backward": &forwardBackwardCmd{},
	"gamma":            &gammaCmd{},
}

// version is overridden at build time via -ldflags, following the
// teacher's own cmd/*/main.go convention.
var version = "dev"

func init() {
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(30)
	}
}

// multi dispatches args[0] to the matching handler in tbl, printing a
// usage error to stderr on an unknown or missing subcommand.
func multi(tbl map[string]handler, prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "usage: %s {%s} [options ...]\n", prog, strings.Join(sortedKeys(tbl), "|"))
		return 2
	}
	h, ok := tbl[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s: unrecognized subcommand %q\n", prog, args[0])
		return 2
	}
	return h.RunCommand(prog+" "+args[0], args[1:], stdin, stdout, stderr)
}

func sortedKeys(tbl map[string]handler) []string {
	out := make([]string, 0, len(tbl))
	for k := range tbl {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Main is the entry point cmd/indus/main.go calls into.
func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(multi(handlers, os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
