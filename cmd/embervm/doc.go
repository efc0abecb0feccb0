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

// Command embervm is a host-program demo for package vm: it decodes a
// precompiled vm.Prototype with bytecode.Decode (or, with -asm, assembles one from
// textual mnemonics via package asm), wires up a Machine with the
// default GC/string-cache/table implementations, resumes a Coroutine
// over the program's entry prototype, and prints the results or a
// fatal diagnostic. It never parses source text — only precompiled
// bytecode or the asm package's opcode-mnemonic text, matching
// spec.md's Non-goal against source-level parsing.
package main
