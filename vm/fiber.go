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

import "sync/atomic"

// FiberState is one of a Fiber's three possible states (spec.md
// §4.6): Suspended -> Running on resume, Running -> Suspended on
// yield, Running -> Dead when the entry returns. Dead is terminal.
type FiberState int32

const (
	FiberSuspended FiberState = iota
	FiberRunning
	FiberDead
)

func (s FiberState) String() string {
	switch s {
	case FiberSuspended:
		return "suspended"
	case FiberRunning:
		return "running"
	case FiberDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Fiber is the low-level context-switch primitive spec.md §2.5/§4.6
// describe. The original implementation (original_source/src/fiber.c)
// saves and restores a ucontext_t on a dedicated stack via
// swapcontext; Go exposes no such primitive to library code without
// cgo, so Fiber renders the same cooperative, one-runnable-at-a-time
// handshake with a goroutine plus two unbuffered channels — the
// idiom the wider Go ecosystem's stackful-coroutine emulations use.
// Exactly one side (the resumer or the fiber body) is ever runnable
// at once: Resume blocks until the fiber yields or dies, and Yield
// blocks until the fiber is resumed again, so the "fiber" never
// behaves like an independent OS thread even though it is, underneath,
// its own goroutine (spec.md `# 9`'s Design Note).
type Fiber struct {
	state atomic.Int32

	resume chan struct{}
	yield  chan struct{}

	entry   func()
	started bool

	// panicValue captures a non-vmError panic from entry so Resume's
	// caller can re-panic it rather than silently swallowing a real
	// programming error.
	panicValue interface{}
}

// NewFiber creates a Fiber that will run entry on its first Resume.
func NewFiber(entry func()) *Fiber {
	f := &Fiber{
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		entry:  entry,
	}
	f.state.Store(int32(FiberSuspended))
	return f
}

// State returns the fiber's current state.
func (f *Fiber) State() FiberState { return FiberState(f.state.Load()) }

// Resume switches into the fiber if it is Suspended, blocking the
// caller until the fiber yields or its entry returns. It reports the
// fiber's state *before* this call and whether the transition was
// legal. A resume against anything but a Suspended fiber fails
// (spec.md §4.6) rather than behaving undefined.
func (f *Fiber) Resume() (prev FiberState, ok bool) {
	prev = f.State()
	if prev != FiberSuspended {
		return prev, false
	}
	f.state.Store(int32(FiberRunning))
	if !f.started {
		f.started = true
		go f.run()
	} else {
		f.resume <- struct{}{}
	}
	<-f.yield
	if f.panicValue != nil {
		pv := f.panicValue
		f.panicValue = nil
		panic(pv)
	}
	return prev, true
}

func (f *Fiber) run() {
	defer func() {
		if r := recover(); r != nil {
			f.panicValue = r
		}
		f.state.Store(int32(FiberDead))
		f.yield <- struct{}{}
	}()
	f.entry()
}

// Yield switches back to the fiber's resumer, blocking until Resume
// is called again. It fails if the fiber is not currently Running.
func (f *Fiber) Yield() bool {
	if f.State() != FiberRunning {
		return false
	}
	f.state.Store(int32(FiberSuspended))
	f.yield <- struct{}{}
	<-f.resume
	f.state.Store(int32(FiberRunning))
	return true
}
