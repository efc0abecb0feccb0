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

import "testing"

func assertEqualI(t *testing.T, name string, expected, got int) {
	t.Helper()
	if expected != got {
		t.Errorf("%s: expected %d, got %d", name, expected, got)
	}
}

func TestCallStatePushPop(t *testing.T) {
	cs := newCallState(nil, nil)
	if err := cs.Push(Long(1)); err != nil {
		t.Fatal(err)
	}
	if err := cs.Push(Long(2)); err != nil {
		t.Fatal(err)
	}
	assertEqualI(t, "SP after two pushes", 2, cs.SP())

	v, err := cs.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsLong(); n != 2 {
		t.Errorf("Pop: expected 2, got %d", n)
	}
	assertEqualI(t, "SP after one pop", 1, cs.SP())
}

func TestCallStatePopUnderflow(t *testing.T) {
	cs := newCallState(nil, nil)
	_, err := cs.Pop()
	if err == nil {
		t.Fatal("Pop on an empty stack should fail")
	}
	if _, ok := err.(*StackUnderflowError); !ok {
		t.Errorf("expected *StackUnderflowError, got %T", err)
	}
}

func TestCallStatePushOverflow(t *testing.T) {
	cs := newCallState(nil, nil)
	for i := 0; i < StackCapacity; i++ {
		if err := cs.Push(Long(int64(i))); err != nil {
			t.Fatalf("unexpected overflow at %d: %v", i, err)
		}
	}
	if err := cs.Push(Long(0)); err == nil {
		t.Fatal("Push past StackCapacity should overflow")
	} else if _, ok := err.(*StackOverflowError); !ok {
		t.Errorf("expected *StackOverflowError, got %T", err)
	}
}

func TestCallStateStackAtOutOfRange(t *testing.T) {
	cs := newCallState(nil, nil)
	cs.Push(Long(7))
	if _, err := cs.StackAt(1); err == nil {
		t.Fatal("StackAt(sp) should be out of range")
	}
	v, err := cs.StackAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsLong(); n != 7 {
		t.Errorf("StackAt(0): expected 7, got %d", n)
	}
}

func TestCallStateRegAlwaysNil(t *testing.T) {
	cs := newCallState(nil, nil)
	if !cs.Get(RegAlwaysNil).IsNil() {
		t.Error("RegAlwaysNil must read as Nil")
	}
	if err := cs.Set(RegAlwaysNil, Long(42)); err != nil {
		t.Errorf("writes to RegAlwaysNil must be silently accepted, got %v", err)
	}
	if !cs.Get(RegAlwaysNil).IsNil() {
		t.Error("a write to RegAlwaysNil must be dropped, not stored")
	}
}

func TestCallStateReservedRegisterWritesRejected(t *testing.T) {
	cs := newCallState(nil, nil)
	for _, reg := range []int{RegEnv, RegCurrent} {
		if err := cs.Set(reg, Long(1)); err == nil {
			t.Errorf("writing register %d should be rejected", reg)
		}
	}
}

func TestCallStateOrdinaryRegisterRoundTrip(t *testing.T) {
	cs := newCallState(nil, nil)
	if err := cs.Set(0, String("hi")); err != nil {
		t.Fatal(err)
	}
	if s := cs.Get(0).GoString(); s != "hi" {
		t.Errorf("expected %q, got %q", "hi", s)
	}
}
