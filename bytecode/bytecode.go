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

// Package bytecode loads and saves vm.Prototype trees to and from a
// compact little-endian wire format — the concrete "bytecode loader"
// the core spec leaves as an external interface (spec.md §1).
package bytecode

// Magic and Version identify an EmberVM bytecode file. Version is
// bumped whenever the wire format changes incompatibly.
const (
	Magic   = "EMBV"
	Version = 1
)

// constant pool tags. Only the scalar variants a compiler can ever
// emit as a literal are representable — Table/Closure/Coroutine/
// GCUserdata constants don't exist; those are always built at
// runtime.
const (
	tagNil byte = iota
	tagBool
	tagLong
	tagDouble
	tagString
)
