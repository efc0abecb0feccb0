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

// tableDescriptor tags a TableOps implementation registered with the
// GC so it can be wrapped as a TypeTable Value, mirroring
// registerClosure's pattern for Closure/Coroutine.
var tableDescriptor = ObjectDescriptor{
	Name:     "embervm.Table",
	OwnerKey: descriptorOwnerKey,
	TypeKey:  tableTypeKey,
}

var tableTypeKey uintptr = 4

// NewTableValue registers ops (typically a *table.Table) with gc and
// returns it wrapped as a TypeTable Value, the constructor TABLE_GET/
// TABLE_SET-bearing code needs to hand a fresh table to interpreted
// bytecode without reaching into vm's unexported GCHandle plumbing.
func NewTableValue(gc GC, ops TableOps) (Value, error) {
	desc, err := gc.RegisterDescriptor(tableDescriptor)
	if err != nil {
		return Value{}, err
	}
	h, err := gc.NewObject(desc, ops, nil)
	if err != nil {
		return Value{}, err
	}
	return NewTable(h), nil
}
