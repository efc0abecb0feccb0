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
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/emberlang/embervm/internal/diag"
)

// fakeHandle/fakeGC are a minimal in-package GC stand-in so this
// file's tests don't need internal/gc, which itself imports vm and
// would make an internal (non "_test"-suffixed package) test file
// importing it a real import cycle.
type fakeHandle struct {
	id   string
	data interface{}
}

func (h *fakeHandle) Identity() string  { return h.id }
func (h *fakeHandle) Data() interface{} { return h.data }

type fakeGC struct{ n int }

func (g *fakeGC) RegisterDescriptor(d ObjectDescriptor) (ObjectDescriptor, error) { return d, nil }

func (g *fakeGC) NewObject(d ObjectDescriptor, payload interface{}, finalizer func()) (GCHandle, error) {
	g.n++
	return &fakeHandle{id: fmt.Sprintf("0x%x", g.n), data: payload}, nil
}

func (g *fakeGC) NewArray(d ObjectDescriptor, slots int, finalizer func()) (GCHandle, error) {
	g.n++
	return &fakeHandle{id: fmt.Sprintf("0x%x", g.n), data: make([]GCHandle, slots)}, nil
}

func (g *fakeGC) WriteField(obj GCHandle, fieldIndex int, ref GCHandle) {}
func (g *fakeGC) WriteArraySlot(arr GCHandle, index int, ref GCHandle)  {}
func (g *fakeGC) RootAdd(obj GCHandle) RootRef                         { return obj }
func (g *fakeGC) RootRemove(ref RootRef)                               {}

func TestMachineNewRequiresGC(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) must fail: a GC implementation is required")
	}
}

func TestMachineInternFallsBackWithoutStringCache(t *testing.T) {
	m, err := New(&fakeGC{})
	if err != nil {
		t.Fatal(err)
	}
	v := m.Intern([]byte("hi"))
	if v.Type() != TypeString || v.GoString() != "hi" {
		t.Errorf("Intern without a configured cache should still produce a usable string Value, got %v", v)
	}
}

func TestMachineCurrentCoroutineDuringResume(t *testing.T) {
	m, err := New(&fakeGC{})
	if err != nil {
		t.Fatal(err)
	}
	var observed *Coroutine
	entry, err := NewNativeClosure(m.gc, func(m *Machine, cs *CallState) (int, error) {
		observed = m.CurrentCoroutine()
		return 0, nil
	}, nil, nil, Nil())
	if err != nil {
		t.Fatal(err)
	}
	co, err := NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}
	if m.CurrentCoroutine() != nil {
		t.Error("CurrentCoroutine must be nil before any Resume")
	}
	if _, ok, err := m.Resume(co); err != nil || !ok {
		t.Fatalf("expected a clean run, got ok=%v err=%v", ok, err)
	}
	if observed != co {
		t.Error("CurrentCoroutine must observe co while its fiber is actually running")
	}
	if m.CurrentCoroutine() != nil {
		t.Error("CurrentCoroutine must be nil again once Resume returns")
	}
}

// TestMachineTraceback builds an interpreted entry prototype that
// CALLs a native closure, and has that closure snapshot
// Machine.Traceback while both frames are still live: the outer
// interpreted frame (with a Source/FuncName to check) and its own
// native frame.
func TestMachineTraceback(t *testing.T) {
	m, err := New(&fakeGC{})
	if err != nil {
		t.Fatal(err)
	}
	var frames []Frame
	cb, err := NewNativeClosure(m.gc, func(m *Machine, cs *CallState) (int, error) {
		frames = m.Traceback(cs.Coroutine())
		return 0, nil
	}, nil, nil, Nil())
	if err != nil {
		t.Fatal(err)
	}

	proto := &Prototype{
		Source:    "trace.asm",
		Name:      "f",
		Constants: []Value{cb.Self()},
		Instructions: []Instruction{
			EncodeInstruction(OpGetConstant, 0, 0, 0, 0),
			EncodeInstruction(OpCall, 0, 0, 0, 0), // call r0 with exactly 0 args, 0 results
			EncodeInstruction(OpReturn, 0, RegAlwaysNil, 0, 0),
		},
	}
	entry, err := NewInterpretedClosure(m.gc, proto, Nil())
	if err != nil {
		t.Fatal(err)
	}
	co, err := NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := m.Resume(co); err != nil || !ok {
		t.Fatalf("expected a clean run, got ok=%v err=%v", ok, err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 live frames at the point of the walk, got %d", len(frames))
	}
	if frames[0].Source != "trace.asm" || frames[0].FuncName != "f" {
		t.Errorf("unexpected outer frame: %+v", frames[0])
	}
}

func TestMachineReportFatalWritesBannerAndAborts(t *testing.T) {
	orig := abortFunc
	defer func() { abortFunc = orig }()
	var aborted bool
	abortFunc = func() { aborted = true }

	m, err := New(&fakeGC{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	m.ReportFatal(diag.New(&buf), nil, String("kaboom"))

	if !aborted {
		t.Error("ReportFatal must invoke the abort path")
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Errorf("expected the banner to mention the error value, got %q", buf.String())
	}
}
