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

// Prototype is the compiled body a non-native Closure instantiates:
// a flat instruction vector, the constant pool it indexes into, an
// optional per-instruction line map, and the source file name it came
// from. Concrete loading/decoding lives in package bytecode; vm only
// needs this shape.
type Prototype struct {
	Instructions []Instruction
	Constants    []Value
	Prototypes   []*Prototype // nested prototypes, indexed by LOAD_PROTOTYPE's B field
	LineMap      []int32      // -1 where no line is recorded
	Source       string
	Name         string
}

// Line returns the source line recorded for instruction index pc, or
// 0 if no line map was supplied.
func (p *Prototype) Line(pc int) int32 {
	if p.LineMap == nil || pc < 0 || pc >= len(p.LineMap) {
		return 0
	}
	if p.LineMap[pc] < 0 {
		return 0
	}
	return p.LineMap[pc]
}

// NativeFunc is a native (Go-implemented) closure body. It returns the
// number of results it pushed onto cs's operand stack, or an error
// to raise through the protected-call mechanism.
type NativeFunc func(m *Machine, cs *CallState) (nret int, err error)

// Closure is EmberVM's callable binding (spec.md §4.2): either
// interpreted (a Prototype plus a bound environment Value) or native
// (a Go function pointer plus opaque user data and an optional
// finalizer).
type Closure struct {
	handle GCHandle
	self   Value // precomputed self-Value, pushed without reallocation

	env Value

	isNative bool

	proto *Prototype

	native    NativeFunc
	udata     interface{}
	finalizer func(interface{})
}

// NewInterpretedClosure creates a closure bound to proto and the
// given environment, registering it with gc so it has a handle and a
// precomputed self-Value (spec.md §4.2).
func NewInterpretedClosure(gc GC, proto *Prototype, env Value) (*Closure, error) {
	c := &Closure{proto: proto, env: env}
	h, err := registerClosure(gc, c)
	if err != nil {
		return nil, err
	}
	c.handle = h
	c.self = NewClosureValue(h)
	return c, nil
}

// NewNativeClosure creates a closure bound to a Go function, with
// optional opaque user data and finalizer, matching
// closure_from_cfunction in original_source/src/closure.c.
func NewNativeClosure(gc GC, fn NativeFunc, udata interface{}, finalizer func(interface{}), env Value) (*Closure, error) {
	c := &Closure{isNative: true, native: fn, udata: udata, finalizer: finalizer, env: env}
	h, err := registerClosure(gc, c)
	if err != nil {
		return nil, err
	}
	c.handle = h
	c.self = NewClosureValue(h)
	return c, nil
}

var closureDescriptor = ObjectDescriptor{
	Name:     "embervm.Closure",
	OwnerKey: descriptorOwnerKey,
	TypeKey:  closureTypeKey,
}

// distinct, package-private keys used only to namespace descriptor
// registration; their values are irrelevant beyond identity.
var (
	descriptorOwnerKey uintptr = 1
	closureTypeKey     uintptr = 2
)

func registerClosure(gc GC, c *Closure) (GCHandle, error) {
	desc, err := gc.RegisterDescriptor(closureDescriptor)
	if err != nil {
		return nil, err
	}
	finalizer := func() {
		if c.finalizer != nil {
			c.finalizer(c.udata)
		}
	}
	return gc.NewObject(desc, c, finalizer)
}

// Self returns the closure's precomputed self-Value.
func (c *Closure) Self() Value { return c.self }

// Env returns the closure's bound environment Value.
func (c *Closure) Env() Value { return c.env }

// IsNative reports whether this closure wraps a native function
// rather than a Prototype.
func (c *Closure) IsNative() bool { return c.isNative }

// Prototype returns the closure's compiled body, or nil for a native
// closure.
func (c *Closure) Prototype() *Prototype { return c.proto }

// closureFromValue extracts the *Closure payload from a TypeClosure
// Value, or (nil, false) if v is not callable.
func closureFromValue(v Value) (*Closure, bool) {
	h, ok := v.Handle()
	if !ok {
		return nil, false
	}
	c, ok := h.Data().(*Closure)
	return c, ok
}
