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

// Package-external test helpers shared by interpreter_test.go and
// coroutine_test.go, in the same spirit as the teacher's own
// vm_test.go setup/check pair (db47h/ngaro's vm/core_test.go), but
// built over asm.Assemble instead of hand-rolled Cell slices since
// this ISA is register-based rather than stack-based.
package vm_test

import (
	"strings"
	"testing"

	"github.com/emberlang/embervm/asm"
	"github.com/emberlang/embervm/internal/gc"
	"github.com/emberlang/embervm/vm"
)

// newTestMachine builds a bare Machine with the default GC and no
// string cache (every string in these tests is short-lived and
// exercises the Bytes/String ephemeral path instead of interning).
func newTestMachine(t *testing.T) *vm.Machine {
	t.Helper()
	m, err := vm.New(gc.New())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// assembleProto assembles asm text into a Prototype, failing the test
// on any parse error.
func assembleProto(t *testing.T, text string) *vm.Prototype {
	t.Helper()
	proto, err := asm.Assemble(t.Name(), strings.NewReader(text))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return proto
}

// runProto assembles text, wraps it as a top-level closure bound to a
// Nil environment, resumes a fresh coroutine over it with args, and
// returns the coroutine together with Resume's results.
func runProto(t *testing.T, m *vm.Machine, text string, args ...vm.Value) (*vm.Coroutine, []vm.Value, bool) {
	t.Helper()
	proto := assembleProto(t, text)
	cl, err := vm.NewInterpretedClosure(m.GC(), proto, vm.Nil())
	if err != nil {
		t.Fatal(err)
	}
	co, err := vm.NewCoroutine(m, cl)
	if err != nil {
		t.Fatal(err)
	}
	results, ok, err := m.Resume(co, args...)
	if err != nil {
		t.Fatal(err)
	}
	return co, results, ok
}
