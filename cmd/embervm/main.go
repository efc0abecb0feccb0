// This file is part of embervm.
//
// Copyright 2024 The EmberVM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/emberlang/embervm/asm"
	"github.com/emberlang/embervm/bytecode"
	"github.com/emberlang/embervm/internal/diag"
	"github.com/emberlang/embervm/internal/gc"
	"github.com/emberlang/embervm/internal/strcache"
	"github.com/emberlang/embervm/internal/table"
	"github.com/emberlang/embervm/vm"
)

const internCacheCapacity = 4096
const rootTableCapacity = 64

func main() {
	app := cli.NewApp()
	app.Name = "embervm"
	app.Usage = "load and run precompiled EmberVM bytecode"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "image", Usage: "load the entry prototype from `FILE`"},
		cli.BoolFlag{Name: "asm", Usage: "treat -image as textual asm mnemonics instead of the binary wire format"},
		cli.StringFlag{Name: "args", Usage: "comma-separated initial resume arguments (ints, floats or bare strings)"},
		cli.BoolFlag{Name: "debug", Usage: "print a full diagnostic banner and traceback on a fatal error"},
		cli.BoolFlag{Name: "repl", Usage: "after running -image (if given), drop into a raw-mode asm REPL"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "embervm: %v\n", err)
		os.Exit(1)
	}
}

// session bundles the pieces a host needs to keep resuming prototypes
// against the same Machine: the GC/string-cache-backed Machine itself
// and the shared root environment every loaded closure is bound to.
type session struct {
	m   *vm.Machine
	env vm.Value
}

func newSession() (*session, error) {
	sc, err := strcache.New(internCacheCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "construct string cache")
	}
	m, err := vm.New(gc.New(), vm.WithStringCache(sc))
	if err != nil {
		return nil, errors.Wrap(err, "construct machine")
	}
	env, err := vm.NewTableValue(m.GC(), table.New(rootTableCapacity))
	if err != nil {
		return nil, errors.Wrap(err, "construct root environment table")
	}
	return &session{m: m, env: env}, nil
}

// runProto resumes a fresh Coroutine over proto with args, printing
// its results (or a fatal diagnostic) to stdout/stderr.
func (s *session) runProto(proto *vm.Prototype, args []vm.Value, debug bool) error {
	closure, err := vm.NewInterpretedClosure(s.m.GC(), proto, s.env)
	if err != nil {
		return errors.Wrap(err, "construct entry closure")
	}
	co, err := vm.NewCoroutine(s.m, closure)
	if err != nil {
		return errors.Wrap(err, "construct coroutine")
	}
	results, ok, err := s.m.Resume(co, args...)
	if err != nil {
		return errors.Wrap(err, "resume")
	}
	if !ok {
		if debug {
			s.m.ReportFatal(diag.New(os.Stderr), co, co.ThrownError())
			return nil // ReportFatal aborts the process; unreached in practice
		}
		return errors.Errorf("unhandled error: %s", co.ThrownError())
	}
	for i, r := range results {
		fmt.Printf("[%d] %s\n", i, r)
	}
	return nil
}

func run(c *cli.Context) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	args := parseArgs(c.String("args"))
	debug := c.Bool("debug")

	if path := c.String("image"); path != "" {
		proto, err := loadProto(path, c.Bool("asm"))
		if err != nil {
			return err
		}
		if err := s.runProto(proto, args, debug); err != nil {
			return err
		}
	}

	if c.Bool("repl") {
		return s.replLoop(debug)
	}
	return nil
}

func loadProto(path string, isAsm bool) (*vm.Prototype, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	if isAsm {
		proto, err := asm.Assemble(path, f)
		return proto, errors.Wrapf(err, "assemble %s", path)
	}
	proto, err := bytecode.Decode(f)
	return proto, errors.Wrapf(err, "decode %s", path)
}

// replLoop reads one line of asm text at a time (raw tty mode when
// available) and runs it as a standalone zero-argument prototype,
// mirroring the teacher's cmd/retro REPL shape but over EmberVM's
// register ISA instead of Retro source.
func (s *session) replLoop(debug bool) error {
	tearDown, rawErr := setRawIO()
	if rawErr == nil {
		defer tearDown()
	}

	in := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stdout, "embervm> ")
	for in.Scan() {
		line := in.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Fprint(os.Stdout, "embervm> ")
			continue
		}
		proto, err := asm.Assemble("<repl>", strings.NewReader(line))
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			fmt.Fprint(os.Stdout, "embervm> ")
			continue
		}
		if err := s.runProto(proto, nil, debug); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		fmt.Fprint(os.Stdout, "embervm> ")
	}
	return in.Err()
}

// parseArgs splits a comma-separated command-line flag into Values:
// each field parses as a Long, then a Double, and otherwise is taken
// as a bare (ephemeral) string Value.
func parseArgs(flag string) []vm.Value {
	if flag == "" {
		return nil
	}
	fields := strings.Split(flag, ",")
	out := make([]vm.Value, len(fields))
	for i, f := range fields {
		out[i] = parseArg(f)
	}
	return out
}

func parseArg(s string) vm.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return vm.Long(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return vm.Double(f)
	}
	return vm.String(s)
}
