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

// Package table provides Table, the default vm.TableOps: the
// associative container spec.md §1 lists as an external collaborator
// ("hash-table container") that TABLE_GET/TABLE_SET call through.
package table

import (
	"fmt"
	"math"

	"github.com/dolthub/swiss"

	"github.com/emberlang/embervm/vm"
)

// Key is a comparable projection of a vm.Value suitable for use as a
// Go map key, normalized the same way vm.Value.Equal/vm.Value.Hash
// treat cross-variant numerics: an integral Double collapses onto the
// same Key as the equivalent Long, so "t[1] = x; t[1.0]" address the
// same slot.
type Key struct {
	typ vm.ValueType
	i   int64
	s   string
	b   bool
}

// KeyOf derives the canonical Key for v. It panics if v is a
// heap-referencing variant without a GCHandle, which cannot happen
// for a well-formed Value.
func KeyOf(v vm.Value) Key {
	switch v.Type() {
	case vm.TypeNil:
		return Key{typ: vm.TypeNil}
	case vm.TypeBool:
		bv, _ := v.AsBool()
		return Key{typ: vm.TypeBool, b: bv}
	case vm.TypeLong:
		n, _ := v.AsLong()
		return Key{typ: vm.TypeLong, i: n}
	case vm.TypeDouble:
		f, _ := v.AsDouble()
		if iv, frac := math.Modf(f); frac == 0 && iv >= math.MinInt64 && iv <= math.MaxInt64 {
			return Key{typ: vm.TypeLong, i: int64(iv)}
		}
		return Key{typ: vm.TypeDouble, i: int64(math.Float64bits(f))}
	case vm.TypeString:
		return Key{typ: vm.TypeString, s: v.GoString()}
	case vm.TypeLightUserdata:
		return Key{typ: vm.TypeLightUserdata, s: v.String()}
	default:
		h, ok := v.Handle()
		if !ok {
			panic(fmt.Sprintf("table: value of type %s has no identity", v.Type()))
		}
		return Key{typ: v.Type(), s: h.Identity()}
	}
}

// Table implements vm.TableOps over github.com/dolthub/swiss's
// open-addressing hash map. Each entry holds the canonical Key and the
// stored value; the original key Value is not kept (a Double key that
// normalized to a Long Key is not recoverable as a Double).
type Table struct {
	entries *swiss.Map[Key, entry]
}

type entry struct {
	key Key
	val vm.Value
}

// New constructs an empty Table with room for capacity entries before
// its first grow.
func New(capacity uint32) *Table {
	return &Table{entries: swiss.NewMap[Key, entry](capacity)}
}

// Lookup implements vm.TableOps.Lookup.
func (t *Table) Lookup(key vm.Value) (vm.Value, bool) {
	e, ok := t.entries.Get(KeyOf(key))
	if !ok {
		return vm.Value{}, false
	}
	return e.val, true
}

// Store implements vm.TableOps.Store. Storing Nil under a key removes
// it, matching the source's table semantics (assigning nil deletes).
func (t *Table) Store(key, val vm.Value) error {
	k := KeyOf(key)
	if val.IsNil() {
		t.entries.Delete(k)
		return nil
	}
	t.entries.Put(k, entry{key: k, val: val})
	return nil
}

// Len implements vm.TableOps.Len.
func (t *Table) Len() int { return t.entries.Count() }
