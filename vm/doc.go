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

// Package vm implements the EmberVM execution core: a tagged value
// model, a register-and-stack bytecode interpreter, call frames,
// cooperative coroutines with stackful-feeling suspension, and the
// error-propagation model that unwinds through call frames to a
// protected boundary.
//
// The package does not implement a garbage collector, a hash-table
// container, a string intern cache, or a bytecode loader; it only
// requires the GC, TableOps and StringCache interfaces declared in gc.go.
// Default implementations of each live under the sibling internal/
// packages and the bytecode package.
package vm
