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
	"math"
	"strconv"
	"strings"
)

// ValueType is the discriminant of a Value's tagged union.
type ValueType uint8

// Value variants, per spec.md §3.
const (
	TypeNil ValueType = iota
	TypeBool
	TypeLong
	TypeDouble
	TypeString
	TypeTable
	TypeClosure
	TypeFullUserdata
	TypeLightUserdata
	TypeGCUserdata
	TypeCoroutine

	// typeNotPresent is the internal sentinel for "absent" at the
	// engine boundary. It must never be observed in a register, stack
	// slot or table entry once execution begins (spec.md §3) and is
	// never exported.
	typeNotPresent
)

func (t ValueType) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "boolean"
	case TypeLong:
		return "number"
	case TypeDouble:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeClosure:
		return "function"
	case TypeFullUserdata, TypeGCUserdata:
		return "userdata"
	case TypeLightUserdata:
		return "userdata"
	case TypeCoroutine:
		return "thread"
	default:
		return "no value"
	}
}

// vstring is the heap payload of a TypeString Value: an owned or
// interned byte sequence plus a lazily computed, cached hash. Length
// excludes any trailing null; the sequence may contain embedded
// zeros (spec.md §3).
type vstring struct {
	b    []byte
	hash uint64 // 0 == unset
}

// Value is EmberVM's tagged scalar/heap-reference union (spec.md §3).
// It is small and copied by value, the same way the teacher's Cell is
// a thin scalar wrapper copied freely through the interpreter loop.
type Value struct {
	typ ValueType

	i  int64   // Long
	f  float64 // Double
	b  bool    // Bool

	s *vstring // String

	ref GCHandle // Table, Closure, Coroutine, FullUserdata, GCUserdata

	light uintptr // LightUserdata raw pointer value

	moduleID int // userdata module identifier
	typeID   int // userdata type identifier
}

// Nil returns the nil Value.
func Nil() Value { return Value{typ: TypeNil} }

// Bool wraps a bool as a Value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Long wraps an int64 as a Value.
func Long(n int64) Value { return Value{typ: TypeLong, i: n} }

// Double wraps a float64 as a Value.
func Double(f float64) Value { return Value{typ: TypeDouble, f: f} }

// String wraps a Go string as an ephemeral (non-interned) string
// Value. Use a StringCache (vm.Machine.Strings) to intern short, hot
// strings instead.
func String(s string) Value {
	return Value{typ: TypeString, s: &vstring{b: []byte(s)}}
}

// Bytes wraps a byte slice, which may contain embedded zeros, as an
// ephemeral string Value. The slice is copied.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: TypeString, s: &vstring{b: cp}}
}

// notPresent is the internal placeholder used by register files and
// operand stacks before a slot is ever written.
func notPresent() Value { return Value{typ: typeNotPresent} }

func newHeapValue(t ValueType, h GCHandle) Value {
	return Value{typ: t, ref: h}
}

// NewTable wraps a GCHandle pointing at a TableOps implementation as a
// Value.
func NewTable(h GCHandle) Value { return newHeapValue(TypeTable, h) }

// NewClosureValue wraps a GCHandle pointing at a *Closure as a Value.
// Closures use this instead of a bare constructor because the closure
// itself precomputes and caches this Value (spec.md §4.2).
func NewClosureValue(h GCHandle) Value { return newHeapValue(TypeClosure, h) }

// NewCoroutineValue wraps a GCHandle pointing at a *Coroutine as a Value.
func NewCoroutineValue(h GCHandle) Value { return newHeapValue(TypeCoroutine, h) }

// fullUserdataDescriptor tags a full-userdata byte buffer registered
// with the GC so it compares and hashes by heap identity, mirroring
// registerClosure's pattern for Closure/Coroutine/Table.
var fullUserdataDescriptor = ObjectDescriptor{
	Name:     "embervm.FullUserdata",
	OwnerKey: descriptorOwnerKey,
	TypeKey:  fullUserdataTypeKey,
}

var fullUserdataTypeKey uintptr = 5

// NewFullUserdata registers buf with gc and wraps it, tagged with a
// module and type id, as a TypeFullUserdata Value. Two Values built
// from distinct buffers are never equal even if their bytes match:
// spec.md §4.1 compares userdata by identity, the same as tables,
// closures and coroutines.
func NewFullUserdata(gc GC, moduleID, typeID int, buf []byte) (Value, error) {
	desc, err := gc.RegisterDescriptor(fullUserdataDescriptor)
	if err != nil {
		return Value{}, err
	}
	h, err := gc.NewObject(desc, buf, nil)
	if err != nil {
		return Value{}, err
	}
	v := newHeapValue(TypeFullUserdata, h)
	v.moduleID, v.typeID = moduleID, typeID
	return v, nil
}

// FullUserdataBytes returns the byte buffer backing a TypeFullUserdata
// Value, and whether v actually is one.
func (v Value) FullUserdataBytes() ([]byte, bool) {
	if v.typ != TypeFullUserdata {
		return nil, false
	}
	b, ok := v.ref.Data().([]byte)
	return b, ok
}

// NewLightUserdata wraps a raw, non-GC-owned pointer value.
func NewLightUserdata(moduleID, typeID int, ptr uintptr) Value {
	return Value{typ: TypeLightUserdata, moduleID: moduleID, typeID: typeID, light: ptr}
}

// NewGCUserdata wraps a GC-managed opaque heap object as a Value.
func NewGCUserdata(moduleID, typeID int, h GCHandle) Value {
	v := newHeapValue(TypeGCUserdata, h)
	v.moduleID, v.typeID = moduleID, typeID
	return v
}

// Type returns the Value's variant discriminant.
func (v Value) Type() ValueType { return v.typ }

// IsNil reports whether v is Nil.
func (v Value) IsNil() bool { return v.typ == TypeNil }

// IsPresent reports whether v is a real, user-visible value (i.e. not
// the internal "absent" sentinel).
func (v Value) IsPresent() bool { return v.typ != typeNotPresent }

// AsBool returns v's boolean payload and whether v is a TypeBool.
func (v Value) AsBool() (bool, bool) { return v.b, v.typ == TypeBool }

// AsLong returns v's integer payload and whether v is a TypeLong.
func (v Value) AsLong() (int64, bool) { return v.i, v.typ == TypeLong }

// AsDouble returns v's float payload and whether v is a TypeDouble.
func (v Value) AsDouble() (float64, bool) { return v.f, v.typ == TypeDouble }

// StringBytes returns the string payload's bytes (read-only by convention)
// and whether v is a TypeString.
func (v Value) StringBytes() ([]byte, bool) {
	if v.typ != TypeString {
		return nil, false
	}
	return v.s.b, true
}

// GoString returns v's string payload as a Go string, or "" if v is
// not a TypeString.
func (v Value) GoString() string {
	if v.typ != TypeString {
		return ""
	}
	return string(v.s.b)
}

// Handle returns the GCHandle backing a heap-referencing Value.
func (v Value) Handle() (GCHandle, bool) {
	switch v.typ {
	case TypeTable, TypeClosure, TypeCoroutine, TypeGCUserdata, TypeFullUserdata:
		return v.ref, true
	default:
		return nil, false
	}
}

// Truthy follows Lua-family truthiness: only Nil and false are falsy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNil:
		return false
	case TypeBool:
		return v.b
	default:
		return true
	}
}

// ToDouble implements spec.md §4.1's numeric coercion: Long, Double
// and any String whose full content parses as a C-style decimal
// coerce to float64; anything else, or a String with trailing
// non-numeric characters, fails.
func (v Value) ToDouble() (float64, bool) {
	switch v.typ {
	case TypeLong:
		return float64(v.i), true
	case TypeDouble:
		return v.f, true
	case TypeString:
		s := strings.TrimSpace(string(v.s.b))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders v per spec.md §4.1's stringification rules. Bool and
// Nil use interned literals; numbers use a canonical, round-trippable
// decimal form; heap references render a tag plus a stable-per-run
// identity token.
func (v Value) String() string {
	switch v.typ {
	case TypeNil:
		return "nil"
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeLong:
		return strconv.FormatInt(v.i, 10)
	case TypeDouble:
		return formatDouble(v.f)
	case TypeString:
		return string(v.s.b)
	case TypeTable:
		return "table: " + identityOf(v.ref)
	case TypeClosure:
		return "function: " + identityOf(v.ref)
	case TypeCoroutine:
		return "thread: " + identityOf(v.ref)
	case TypeFullUserdata:
		return "userdata: " + identityOf(v.ref)
	case TypeLightUserdata:
		return "userdata: 0x" + strconv.FormatUint(uint64(v.light), 16)
	case TypeGCUserdata:
		return "userdata: " + identityOf(v.ref)
	default:
		return "no value"
	}
}

func identityOf(h GCHandle) string {
	if h == nil {
		return "0x0"
	}
	return h.Identity()
}

// formatDouble produces a canonical decimal that round-trips via
// strconv.ParseFloat, per spec.md §8's testable property.
func formatDouble(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToStringValue is value.c's value_tostring lifted to Go: the
// stringification rules above, returned as a Value rather than a Go
// string, so interpreted code can push and manipulate it like any
// other operand (SPEC_FULL.md, Supplemented features #3).
func (v Value) ToStringValue() Value {
	if v.typ == TypeString {
		return v
	}
	return String(v.String())
}

// Hash implements spec.md §4.1: 0 for Nil, otherwise a 64-bit
// non-cryptographic hash over the discriminant-appropriate bytes.
// Equal values hash equal (the universal property spec.md §8 tests).
func (v Value) Hash() uint64 {
	switch v.typ {
	case TypeNil:
		return 0
	case TypeBool:
		if v.b {
			return 1
		}
		return 2
	case TypeLong:
		return hashUint64(uint64(v.i))
	case TypeDouble:
		// Cross-variant equality (Long == Double by mathematical
		// value) requires integral doubles to hash the same as the
		// equivalent Long.
		if iv, frac := math.Modf(v.f); frac == 0 && iv >= math.MinInt64 && iv <= math.MaxInt64 {
			return hashUint64(uint64(int64(iv)))
		}
		return hashUint64(math.Float64bits(v.f))
	case TypeString:
		return v.s.Hash()
	case TypeTable, TypeClosure, TypeCoroutine, TypeGCUserdata, TypeFullUserdata:
		return identityHash(v.ref)
	case TypeLightUserdata:
		return hashUint64(uint64(v.light))
	default:
		return 0
	}
}

func identityHash(h GCHandle) uint64 {
	if h == nil {
		return 0
	}
	return fnv1aString(h.Identity())
}

func hashUint64(n uint64) uint64 {
	// splitmix64 finalizer: cheap, well-distributed, non-cryptographic.
	n ^= n >> 30
	n *= 0xbf58476d1ce4e5b9
	n ^= n >> 27
	n *= 0x94d049bb133111eb
	n ^= n >> 31
	return n
}

func (s *vstring) Hash() uint64 {
	if s.hash != 0 {
		return s.hash
	}
	h := fnv1a(s.b)
	if h == 0 {
		h = 1 // keep 0 reserved for "unset"
	}
	s.hash = h
	return h
}

func fnv1a(b []byte) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	return h
}

func fnv1aString(s string) uint64 { return fnv1a([]byte(s)) }

// Equal implements spec.md §4.1's equality rule: same-variant
// structural equality; strings by length+bytes; tables/closures/
// userdata/coroutines by identity; numerics by exact value within
// their common variant; cross-variant comparisons are false except
// Long/Double, compared by mathematical value. Nil == Nil is true.
func (v Value) Equal(o Value) bool {
	if v.typ == o.typ {
		switch v.typ {
		case TypeNil:
			return true
		case TypeBool:
			return v.b == o.b
		case TypeLong:
			return v.i == o.i
		case TypeDouble:
			return v.f == o.f
		case TypeString:
			return len(v.s.b) == len(o.s.b) && string(v.s.b) == string(o.s.b)
		case TypeTable, TypeClosure, TypeCoroutine, TypeGCUserdata, TypeFullUserdata:
			return v.ref == o.ref
		case TypeLightUserdata:
			return v.moduleID == o.moduleID && v.typeID == o.typeID && v.light == o.light
		}
	}
	if (v.typ == TypeLong && o.typ == TypeDouble) || (v.typ == TypeDouble && o.typ == TypeLong) {
		n, f := v.i, o.f
		if v.typ == TypeDouble {
			n, f = o.i, v.f
		}
		// Exact comparison: f must be integral and inside int64's range,
		// so a Long never equals a Double it merely rounds to.
		return f >= -9223372036854775808.0 && f < 9223372036854775808.0 && f == math.Trunc(f) && int64(f) == n
	}
	return false
}

// Less implements spec.md §4.1's ordering: numeric-only, mixed
// numeric compares by double promotion. ok is false when the operands
// are not both numeric ("cannot compare", distinct from "false").
func (v Value) Less(o Value) (less bool, ok bool) {
	a, aok := v.ToNumericOnly()
	b, bok := o.ToNumericOnly()
	if !aok || !bok {
		return false, false
	}
	return a < b, true
}

// ToNumericOnly coerces strictly Long/Double (not String) to float64,
// for use by comparison opcodes which must distinguish "not a number"
// from "parses as one".
func (v Value) ToNumericOnly() (float64, bool) {
	switch v.typ {
	case TypeLong:
		return float64(v.i), true
	case TypeDouble:
		return v.f, true
	default:
		return 0, false
	}
}
