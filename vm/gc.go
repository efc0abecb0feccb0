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

// This file declares the collector contract spec.md §6 requires from
// an external collector: typed object/array allocation with a
// finalizer, field/array-slot write barriers, root add/remove by
// handle, and idempotent-per-VM descriptor registration. The core
// never assumes mark-sweep vs. reference counting; it only relies on
// these barriers being honored. A default, in-repo implementation
// lives in internal/gc.

// ObjectDescriptor identifies a heap object's shape to the collector:
// which byte/slot offsets hold references to other GC-managed
// objects, so a tracing collector can find them. Registration is
// idempotent per (OwnerKey, TypeKey) pair, mirroring the source's
// foxgc_api_descriptor_new/remove pattern.
type ObjectDescriptor struct {
	Name       string
	OwnerKey   uintptr
	TypeKey    uintptr
	RefOffsets []int
	Size       int
}

// RootRef is an opaque token returned by GC.RootAdd, passed back to
// GC.RootRemove to release that root.
type RootRef interface{}

// GCHandle is an opaque reference to a GC-managed heap object. Value's
// heap-referencing variants (Table, Closure, Coroutine, FullUserdata,
// GCUserdata) each wrap one.
type GCHandle interface {
	// Identity returns a token unique among currently live objects,
	// used for Value stringification ("table 0x…"). It need not be
	// stable across process runs.
	Identity() string
	// Data returns the Go payload stored in this object (e.g. the
	// *Closure, *Coroutine, or TableOps implementation it backs).
	Data() interface{}
}

// GC is the collector contract the core requires (spec.md §6).
type GC interface {
	// RegisterDescriptor registers (or looks up, if already
	// registered for the same OwnerKey/TypeKey) an ObjectDescriptor.
	RegisterDescriptor(desc ObjectDescriptor) (ObjectDescriptor, error)
	// NewObject allocates a single GC-managed object of the given
	// descriptor's shape. finalizer, if non-nil, runs when the object
	// is collected.
	NewObject(desc ObjectDescriptor, payload interface{}, finalizer func()) (GCHandle, error)
	// NewArray allocates a GC-managed, fixed-slot array able to hold
	// `slots` references.
	NewArray(desc ObjectDescriptor, slots int, finalizer func()) (GCHandle, error)
	// WriteField records that obj's field at fieldIndex now points at
	// ref (or nil, to clear it). This is the write barrier the
	// collector relies on to keep referenced objects reachable.
	WriteField(obj GCHandle, fieldIndex int, ref GCHandle)
	// WriteArraySlot is WriteField's array-slot analogue.
	WriteArraySlot(arr GCHandle, index int, ref GCHandle)
	// RootAdd pins obj as a GC root, returning a token to later
	// release it with RootRemove.
	RootAdd(obj GCHandle) RootRef
	// RootRemove releases a root previously returned by RootAdd.
	RootRemove(ref RootRef)
}

// TableOps is the contract a Table-variant Value's GCHandle.Data()
// must satisfy: the "hash-table container" spec.md §1 lists as an
// external collaborator. TABLE_GET/TABLE_SET call through it.
type TableOps interface {
	Lookup(key Value) (Value, bool)
	Store(key, val Value) error
	Len() int
}

// StringCache is the contract behind the VM's static string pool
// (spec.md §1's "string intern cache" collaborator).
type StringCache interface {
	// Intern returns a shared Value for the given bytes, allocating
	// and caching one on first use.
	Intern(b []byte) Value
}
