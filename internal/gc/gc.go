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

// Package gc provides DefaultGC, the reference implementation of
// vm.GC. EmberVM's core treats collection as an external contract
// (descriptor registration, object/array allocation, write barriers,
// root pinning) because the original engine manages its own heap;
// hosted in Go, the real reclamation work is Go's own runtime
// collector, so DefaultGC's job is bookkeeping and identity, not
// tracing.
package gc

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/emberlang/embervm/vm"
)

// handle is DefaultGC's vm.GCHandle: an identity token plus the Go
// payload the object was allocated with. Keeping it alive keeps the
// payload alive for Go's collector; there is no separate trace step.
type handle struct {
	id      string
	payload interface{}
	slots   []vm.GCHandle // for NewArray-allocated objects
}

func (h *handle) Identity() string    { return h.id }
func (h *handle) Data() interface{}   { return h.payload }
func (h *handle) Slot(i int) vm.GCHandle {
	if i < 0 || i >= len(h.slots) {
		return nil
	}
	return h.slots[i]
}

// DefaultGC implements vm.GC by registering descriptors idempotently
// per (OwnerKey, TypeKey), running finalizers via runtime.SetFinalizer
// equivalents expressed through Go's own GC (here: simply relying on
// handle no longer being reachable once its root is removed and no
// Value references it — see NewObject), and pinning roots in a
// sync.Map keyed by an opaque token.
type DefaultGC struct {
	mu          sync.Mutex
	descriptors map[descriptorKey]vm.ObjectDescriptor

	roots sync.Map // RootRef -> vm.GCHandle
}

type descriptorKey struct {
	owner uintptr
	typ   uintptr
}

// New constructs a DefaultGC ready for use by vm.New.
func New() *DefaultGC {
	return &DefaultGC{descriptors: make(map[descriptorKey]vm.ObjectDescriptor)}
}

// RegisterDescriptor registers desc, or returns the descriptor
// already registered for the same (OwnerKey, TypeKey) pair —
// registration is idempotent, mirroring foxgc_api_descriptor_new's
// "return existing if present" contract.
func (g *DefaultGC) RegisterDescriptor(desc vm.ObjectDescriptor) (vm.ObjectDescriptor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := descriptorKey{owner: desc.OwnerKey, typ: desc.TypeKey}
	if existing, ok := g.descriptors[key]; ok {
		return existing, nil
	}
	g.descriptors[key] = desc
	return desc, nil
}

// NewObject allocates a handle wrapping payload. finalizer, if
// non-nil, is attached via runtime.SetFinalizer so it runs once Go's
// collector determines the handle is unreachable — the closest Go
// analogue to the source's reference-counted finalization, without
// requiring the host to ever call a "free" entry point.
func (g *DefaultGC) NewObject(desc vm.ObjectDescriptor, payload interface{}, finalizer func()) (vm.GCHandle, error) {
	h := &handle{id: "0x" + uuid.New().String(), payload: payload}
	if finalizer != nil {
		attachFinalizer(h, finalizer)
	}
	return h, nil
}

// NewArray allocates a handle whose slots hold up to `slots` nested
// GCHandles (spec.md §6's array shape, e.g. a table's bucket array).
func (g *DefaultGC) NewArray(desc vm.ObjectDescriptor, slots int, finalizer func()) (vm.GCHandle, error) {
	if slots < 0 {
		return nil, errors.Errorf("gc: NewArray: negative slot count %d", slots)
	}
	h := &handle{id: "0x" + uuid.New().String(), slots: make([]vm.GCHandle, slots)}
	if finalizer != nil {
		attachFinalizer(h, finalizer)
	}
	return h, nil
}

// WriteField records that obj now references ref through its payload.
// DefaultGC does not maintain an explicit remembered set — Go's own
// collector already tracks this reference the moment the caller
// stores ref in obj's payload — so this is a no-op write barrier that
// exists purely to satisfy the vm.GC contract other collectors (e.g.
// a future off-heap arena GC) would need to implement for real.
func (g *DefaultGC) WriteField(obj vm.GCHandle, fieldIndex int, ref vm.GCHandle) {}

// WriteArraySlot records obj.slots[index] = ref, the one case
// DefaultGC does track explicitly (so Slot can answer queries used by
// diagnostics/traceback tooling).
func (g *DefaultGC) WriteArraySlot(arr vm.GCHandle, index int, ref vm.GCHandle) {
	h, ok := arr.(*handle)
	if !ok || index < 0 || index >= len(h.slots) {
		return
	}
	h.slots[index] = ref
}

// RootAdd pins obj against collection by keeping a live reference in
// g.roots, returning the map key as the release token.
func (g *DefaultGC) RootAdd(obj vm.GCHandle) vm.RootRef {
	token := "0x" + uuid.New().String()
	g.roots.Store(token, obj)
	return token
}

// RootRemove releases a root previously returned by RootAdd.
func (g *DefaultGC) RootRemove(ref vm.RootRef) {
	g.roots.Delete(ref)
}
