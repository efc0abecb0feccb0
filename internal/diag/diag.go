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

// Package diag writes the fatal-abort diagnostic banner and coroutine
// backtraces (spec.md §4.5/§7). There is no structured logging
// framework anywhere in the retrieval pack for this class of tool —
// the teacher's only "logging" is direct fmt.Fprintf(os.Stderr, ...)
// calls (db47h/ngaro's vm/io.go) — so this package stays on plain
// fmt/io.Writer rather than reaching for a logging library.
package diag

import (
	"fmt"
	"io"
)

// Frame is one line of a coroutine backtrace: the function name,
// source file and line a CallState was executing at the time of the
// walk.
type Frame struct {
	FuncName string
	Source   string
	Line     int
}

// Writer wraps an io.Writer with the small set of diagnostic-line
// helpers the VM's fatal-abort path and traceback dump need.
type Writer struct {
	w io.Writer
}

// New wraps w as a diagnostic Writer.
func New(w io.Writer) *Writer { return &Writer{w: w} }

// Banner writes the fatal-abort header: the coerced string form of
// the error value that unwound past every protected-call marker
// (spec.md §7).
func (d *Writer) Banner(msg string) {
	fmt.Fprintf(d.w, "embervm: fatal error: %s\n", msg)
}

// Traceback writes one line per frame, innermost first, in the
// "function (source:line)" shape a host-side debugger or crash report
// expects.
func (d *Writer) Traceback(frames []Frame) {
	if len(frames) == 0 {
		return
	}
	fmt.Fprintln(d.w, "stack traceback:")
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		name := f.FuncName
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(d.w, "\t%s (%s:%d)\n", name, f.Source, f.Line)
	}
}
