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

package vm

import (
	"os"

	"github.com/emberlang/embervm/internal/diag"
	"github.com/pkg/errors"
)

// Option configures a Machine at construction time, the same
// functional-option idiom the teacher's vm.Option (vm/vm.go) uses for
// its Instance.
type Option func(*Machine) error

// WithGC overrides the collector passed to New. New checks only its
// gc argument for nil, before any option runs; WithGC(nil) is not
// rejected.
func WithGC(gc GC) Option {
	return func(m *Machine) error { m.gc = gc; return nil }
}

// WithStringCache overrides the Machine's string intern cache.
func WithStringCache(sc StringCache) Option {
	return func(m *Machine) error { m.strings = sc; return nil }
}

// Machine is the process-wide VM owner (spec.md §2.7): a GC handle, a
// static-string pool, a thread-local "current coroutine" stack, and a
// host-visible error slot written only through SetError (Resume does
// not write it).
type Machine struct {
	gc      GC
	strings StringCache

	// currentCoroutines is a thread-local stack in spirit: per spec.md
	// §5 it must never be touched from another OS thread, so it is
	// left unguarded by any mutex on purpose (a mutex here would
	// paper over a host violating that contract instead of surfacing
	// it).
	currentCoroutines []*Coroutine

	errSlot Value
}

// New constructs a Machine. A GC is required; pass internal/gc's
// DefaultGC for the common case.
func New(gc GC, opts ...Option) (*Machine, error) {
	if gc == nil {
		return nil, errors.New("vm.New: a GC implementation is required")
	}
	m := &Machine{gc: gc}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.Wrap(err, "vm.New: option failed")
		}
	}
	return m, nil
}

// GC returns the Machine's collector.
func (m *Machine) GC() GC { return m.gc }

// Strings returns the Machine's string intern cache, or nil if none
// was configured.
func (m *Machine) Strings() StringCache { return m.strings }

// Intern interns b through the configured StringCache, or falls back
// to an ephemeral (non-cached) string Value if none is configured.
func (m *Machine) Intern(b []byte) Value {
	if m.strings == nil {
		return Bytes(b)
	}
	return m.strings.Intern(b)
}

func (m *Machine) pushCurrentCoroutine(co *Coroutine) {
	m.currentCoroutines = append(m.currentCoroutines, co)
}

func (m *Machine) popCurrentCoroutine() {
	if len(m.currentCoroutines) == 0 {
		return
	}
	m.currentCoroutines = m.currentCoroutines[:len(m.currentCoroutines)-1]
}

// CurrentCoroutine returns the coroutine this Machine is currently
// resuming on the calling OS thread, or nil if none is active.
func (m *Machine) CurrentCoroutine() *Coroutine {
	if len(m.currentCoroutines) == 0 {
		return nil
	}
	return m.currentCoroutines[len(m.currentCoroutines)-1]
}

// SetError records v in the Machine's host-visible error slot
// (spec.md §6's ERRRUN/ERRMEM/YIELD host-observed codes).
func (m *Machine) SetError(v Value) { m.errSlot = v }

// Error returns the Machine's host-visible error slot.
func (m *Machine) Error() Value { return m.errSlot }

// Frame is one entry of a Traceback: a live CallState's debug
// descriptor at the moment of the walk (spec.md §7's "stack
// backtrace assembled via the frame-walk API").
type Frame = diag.Frame

// Traceback walks co's frame stack and returns one Frame per live
// CallState, innermost last, matching the source's coroutine.c frame
// walk and the teacher's own frame-introspection accessors
// (SPEC_FULL.md, Supplemented feature #1).
func (m *Machine) Traceback(co *Coroutine) []Frame {
	frames := co.Frames()
	out := make([]Frame, len(frames))
	for i, cs := range frames {
		out[i] = Frame{FuncName: cs.Debug.FuncName, Source: cs.Debug.Source, Line: cs.Debug.Line}
	}
	return out
}

// abortFunc terminates the process; overridden in tests so
// ReportFatal's diagnostic path is exercised without killing the test
// binary.
var abortFunc = func() { os.Exit(1) }

// ReportFatal writes the fatal-abort diagnostic banner and co's
// traceback to w, then aborts the process. A host that resumes a
// top-level coroutine and gets back an error with no further
// protected-call boundary of its own should call this — it is the Go
// rendering of spec.md §4.5's "An error raised with no handler marker
// is fatal: the VM writes a diagnostic and aborts the process."
// cmd/embervm's demo REPL is exactly such a host.
func (m *Machine) ReportFatal(w *diag.Writer, co *Coroutine, errValue Value) {
	w.Banner(errValue.String())
	if co != nil {
		w.Traceback(m.Traceback(co))
	}
	abortFunc()
}
