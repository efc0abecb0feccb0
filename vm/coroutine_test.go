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

package vm_test

import (
	"errors"
	"testing"

	"github.com/emberlang/embervm/vm"
)

func nativeClosure(t *testing.T, m *vm.Machine, fn vm.NativeFunc) *vm.Closure {
	t.Helper()
	cl, err := vm.NewNativeClosure(m.GC(), fn, nil, nil, vm.Nil())
	if err != nil {
		t.Fatal(err)
	}
	return cl
}

// Scenario 5 (spec.md §8): a coroutine yields once, handing back
// Long(7), then on its next resume returns Long(9); the resumer
// observes both values and the final Dead state.
func TestCoroutineYieldThenReturnPingPong(t *testing.T) {
	m := newTestMachine(t)
	entry := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) {
		co := cs.Coroutine()
		if _, err := m.Yield(co, vm.Long(7)); err != nil {
			return 0, err
		}
		if err := cs.Push(vm.Long(9)); err != nil {
			return 0, err
		}
		return 1, nil
	})
	co, err := vm.NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}

	results, ok, err := m.Resume(co)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("yielding must not look like an error, got %v", co.ThrownError())
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 yielded value, got %d", len(results))
	}
	if n, _ := results[0].AsLong(); n != 7 {
		t.Errorf("expected the yielded Long(7), got %v", results[0])
	}
	if co.State() != vm.FiberSuspended {
		t.Errorf("coroutine should be Suspended after a yield, got %s", co.State())
	}

	results, ok, err = m.Resume(co)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("the final return must not look like an error, got %v", co.ThrownError())
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 returned value, got %d", len(results))
	}
	if n, _ := results[0].AsLong(); n != 9 {
		t.Errorf("expected the returned Long(9), got %v", results[0])
	}
	if co.State() != vm.FiberDead {
		t.Errorf("coroutine should be Dead once its entry returns, got %s", co.State())
	}

	if _, _, err := m.Resume(co); err == nil {
		t.Fatal("resuming a Dead coroutine must fail")
	}
}

func TestCoroutineResumeDeadFails(t *testing.T) {
	m := newTestMachine(t)
	entry := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) { return 0, nil })
	co, err := vm.NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := m.Resume(co); err != nil || !ok {
		t.Fatalf("expected a clean run, got ok=%v err=%v", ok, err)
	}
	if _, _, err := m.Resume(co); err == nil {
		t.Fatal("resuming a Dead coroutine a second time must fail")
	}
}

func TestCoroutineYieldOutsideRunningCoroutineFails(t *testing.T) {
	m := newTestMachine(t)
	entry := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) { return 0, nil })
	co, err := vm.NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}
	// co's fiber was never started, so it is not Running.
	if _, err := m.Yield(co); err == nil {
		t.Fatal("yielding a coroutine that isn't running must fail")
	}
}

func TestCoroutineDisallowYieldBlocksYield(t *testing.T) {
	m := newTestMachine(t)
	entry := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) { return 0, nil })
	co, err := vm.NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}
	prev := co.DisallowYield()
	defer co.AllowYield(prev)
	if _, err := m.Yield(co); err == nil {
		t.Fatal("yielding across a disallow-yield boundary must fail")
	}
}

// Scenario 4 (spec.md §8): a protected call whose body fails recovers
// cleanly — the handler observes the error, the frame depth is
// restored to what it was before the call, and the coroutine is still
// usable for a subsequent call.
func TestCoroutineProtectedCallRecoversAndRestoresDepth(t *testing.T) {
	m := newTestMachine(t)
	boom := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) {
		return 0, errors.New("boom")
	})
	ok := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) { return 0, nil })
	entry := nativeClosure(t, m, func(m *vm.Machine, cs *vm.CallState) (int, error) { return 0, nil })

	co, err := vm.NewCoroutine(m, entry)
	if err != nil {
		t.Fatal(err)
	}

	before := co.FrameDepth()
	if _, err := m.Call(co, boom.Self(), nil, -1); err == nil {
		t.Fatal("a call whose native body errors must report that error")
	}
	after := co.FrameDepth()
	if before != after {
		t.Errorf("frame depth must be restored after a failed call: before=%d after=%d", before, after)
	}

	if _, err := m.Call(co, ok.Self(), nil, -1); err != nil {
		t.Errorf("the coroutine must remain usable after recovering from a failed call: %v", err)
	}
}
