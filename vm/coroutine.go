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

import "sync"

// FrameStackCapacity bounds a coroutine's call-frame stack depth
// (spec.md §3: "depth >= 64").
const FrameStackCapacity = 64

// protectedMarker is one link of the implicit stack of protected-call
// boundaries a coroutine maintains (spec.md §4.5). It plays the role
// of the source's jmp_buf chain (co->errorHandler).
type protectedMarker struct {
	prev       *protectedMarker
	frameDepth int
}

// Coroutine is a stackful, cooperative task (spec.md §2.4): it owns a
// LIFO call-frame stack, an error-handler marker chain, a
// thrown-error slot, yield-related flags, and a Fiber.
type Coroutine struct {
	vm *Machine

	frameMu sync.Mutex
	frames  []*CallState

	errorHandler *protectedMarker

	thrownError Value
	hasError    bool

	isYieldable    bool
	isNativeThread bool

	fiber *Fiber

	// transferIn/transferOut carry values across a fiber switch: the
	// arguments passed to the triggering Resume, and the values the
	// coroutine hands back (a Yield's arguments, or the entry
	// closure's final RETURN values). Safe without extra locking
	// because the channel handshake in Fiber already establishes
	// happens-before between writer and reader (spec.md §5).
	transferIn  []Value
	transferOut []Value

	handle GCHandle
}

var coroutineDescriptor = ObjectDescriptor{
	Name:     "embervm.Coroutine",
	OwnerKey: descriptorOwnerKey,
	TypeKey:  coroutineTypeKey,
}

var coroutineTypeKey uintptr = 3

// NewCoroutine constructs a coroutine that will run entry's closure
// under an implicit top-level protected-call marker the moment it is
// first resumed, so any unhandled error ends up in thrownError/hasError
// instead of crashing the fiber's goroutine (spec.md §4.6).
func NewCoroutine(m *Machine, entry *Closure) (*Coroutine, error) {
	co := &Coroutine{vm: m, isYieldable: true}
	desc, err := m.gc.RegisterDescriptor(coroutineDescriptor)
	if err != nil {
		return nil, err
	}
	h, err := m.gc.NewObject(desc, co, nil)
	if err != nil {
		return nil, err
	}
	co.handle = h
	co.fiber = NewFiber(func() { co.topLevelEntry(entry) })
	return co, nil
}

// newNativeThreadCoroutine wraps the coroutine currently driving a native Go
// goroutine as a non-yieldable, native "thread" coroutine — the
// source's is_native_thread flag (spec.md §3).
func newNativeThreadCoroutine(m *Machine) *Coroutine {
	return &Coroutine{vm: m, isNativeThread: true}
}

// Self returns the coroutine wrapped as a Value.
func (co *Coroutine) Self() Value { return NewCoroutineValue(co.handle) }

// HasError reports whether the coroutine's fiber entry terminated via
// an unhandled error.
func (co *Coroutine) HasError() bool { return co.hasError }

// ThrownError returns the error Value stashed when the coroutine's
// entry terminated via an unhandled error.
func (co *Coroutine) ThrownError() Value { return co.thrownError }

// State returns the coroutine's Fiber's state.
func (co *Coroutine) State() FiberState { return co.fiber.State() }

func (co *Coroutine) topLevelEntry(entry *Closure) {
	co.ProtectedCall(func() error {
		cs := co.pushFrame(entry)
		for _, a := range co.transferIn {
			if err := cs.Push(a); err != nil {
				return err
			}
		}
		nret, err := runClosure(co.vm, cs)
		if err != nil {
			return err
		}
		co.transferOut = collectTop(cs, nret)
		return nil
	}, nil)
}

// collectTop copies the top n values of cs's operand stack, in push
// order, without popping them.
func collectTop(cs *CallState, n int) []Value {
	out := make([]Value, n)
	copy(out, cs.stack[cs.sp-n:cs.sp])
	return out
}

// pushFrame allocates and pushes a fresh CallState for closure onto
// the frame stack, guarded by frameMu per spec.md §5 (the frame-stack
// walk is externally observable to debug/trace tooling).
func (co *Coroutine) pushFrame(closure *Closure) *CallState {
	co.frameMu.Lock()
	defer co.frameMu.Unlock()
	if len(co.frames) >= FrameStackCapacity {
		raiseErr(&StackOverflowError{Capacity: FrameStackCapacity})
	}
	cs := newCallState(co, closure)
	co.frames = append(co.frames, cs)
	return cs
}

func (co *Coroutine) popFrame() {
	co.frameMu.Lock()
	defer co.frameMu.Unlock()
	if len(co.frames) == 0 {
		return
	}
	co.frames = co.frames[:len(co.frames)-1]
}

// FrameDepth returns the coroutine's current call-frame stack depth.
func (co *Coroutine) FrameDepth() int {
	co.frameMu.Lock()
	defer co.frameMu.Unlock()
	return len(co.frames)
}

// Current returns the innermost (top) CallState, or nil if the frame
// stack is empty.
func (co *Coroutine) Current() *CallState {
	co.frameMu.Lock()
	defer co.frameMu.Unlock()
	if len(co.frames) == 0 {
		return nil
	}
	return co.frames[len(co.frames)-1]
}

// Frames returns a snapshot of the coroutine's frame stack, innermost
// last, for backtraces (SPEC_FULL.md's Traceback).
func (co *Coroutine) Frames() []*CallState {
	co.frameMu.Lock()
	defer co.frameMu.Unlock()
	out := make([]*CallState, len(co.frames))
	copy(out, co.frames)
	return out
}

func (co *Coroutine) trimFramesTo(depth int) {
	co.frameMu.Lock()
	defer co.frameMu.Unlock()
	if depth < len(co.frames) {
		co.frames = co.frames[:depth]
	}
}

// ProtectedCall performs a bounded invocation (spec.md §4.5): body
// runs; if it raises, control transfers to this call's marker,
// handler (if any) runs with the raised Value, the frame stack is
// trimmed to this call's recorded depth, the previous marker is
// restored, and ProtectedCall returns false. If body completes, the
// previous marker is restored and ProtectedCall returns true. Nesting
// is unlimited — markers form an implicit stack via protectedMarker.prev.
func (co *Coroutine) ProtectedCall(body func() error, handler func(Value)) (ok bool) {
	prev := co.errorHandler
	marker := &protectedMarker{prev: prev, frameDepth: co.FrameDepth()}
	co.errorHandler = marker
	defer func() { co.errorHandler = prev }()

	err := runGuarded(body)
	if err != nil {
		v := errorToValue(err)
		if handler != nil {
			handler(v)
		}
		co.trimFramesTo(marker.frameDepth)
		co.thrownError = v
		co.hasError = true
		return false
	}
	co.hasError = false
	return true
}

// runGuarded recovers a *vmError panic raised by raise()/raiseErr()
// within body, converting it back into a Go error. Any other panic
// (a genuine programming error, not a VM-level raise) is not ours to
// swallow and propagates unchanged.
func runGuarded(body func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ve, ok := r.(*vmError); ok {
				err = ve
				return
			}
			panic(r)
		}
	}()
	return body()
}

func errorToValue(err error) Value {
	if ve, ok := err.(*vmError); ok {
		return ve.value
	}
	return String(err.Error())
}

// Resume switches into co's fiber, handing it args (spec.md §4.6):
// the entry closure's call arguments on the first resume, or the
// values a suspended Yield receives as its return on every later one.
// It fails, without changing co's Fiber state, if co is not Suspended,
// distinguishing Running from Dead in the returned error. The
// "current coroutine" bracket (pushCurrentCoroutine/pop) spans the
// blocking switch itself, so code running inside co's fiber observes
// co via Machine.CurrentCoroutine. On success, results holds the
// values co produced before suspending or completing — a Yield's
// argument list, or the entry closure's final RETURN values — and ok
// reports whether the coroutine is not in an error state.
func (m *Machine) Resume(co *Coroutine, args ...Value) (results []Value, ok bool, err error) {
	co.transferIn = args
	m.pushCurrentCoroutine(co)
	prev, transitioned := co.fiber.Resume()
	m.popCurrentCoroutine()
	if !transitioned {
		switch prev {
		case FiberRunning:
			return nil, false, &CoroutineStateError{Reason: "cannot resume a running coroutine"}
		case FiberDead:
			return nil, false, &CoroutineStateError{Reason: "cannot resume a dead coroutine"}
		default:
			return nil, false, &CoroutineStateError{Reason: "cannot resume coroutine"}
		}
	}
	return co.transferOut, !co.hasError, nil
}

// Yield suspends the currently-executing coroutine, handing results
// back to its resumer and returning control to it (spec.md §4.6). It
// requires a current coroutine that is not a native top-level thread
// and whose yieldable flag is set. On the next Resume, Yield returns
// the values that Resume call passed in.
func (m *Machine) Yield(co *Coroutine, results ...Value) ([]Value, error) {
	if co.isNativeThread {
		return nil, &CoroutineStateError{Reason: "cannot yield from a native thread"}
	}
	if !co.isYieldable {
		return nil, &CoroutineStateError{Reason: "attempt to yield across a disallow-yield boundary"}
	}
	co.transferOut = results
	if !co.fiber.Yield() {
		return nil, &CoroutineStateError{Reason: "cannot yield a coroutine that is not running"}
	}
	return co.transferIn, nil
}

// DisallowYield clears co's yieldable flag, returning the flag's
// prior value so callers can nest disallow/allow pairs correctly
// (SPEC_FULL.md, Supplemented feature #2).
func (co *Coroutine) DisallowYield() bool {
	prev := co.isYieldable
	co.isYieldable = false
	return prev
}

// AllowYield restores co's yieldable flag to prev (as returned by a
// prior DisallowYield).
func (co *Coroutine) AllowYield(prev bool) {
	co.isYieldable = prev
}
