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

// Package asm provides a textual-mnemonic assembler for vm.Instruction
// words, used to author bytecode fixtures for tests and the
// cmd/embervm demo without hand-encoding 64-bit instruction words.
//
// Syntax:
//
// Each line holds zero or more labels, an optional mnemonic with its
// operands, and an optional comment. A label definition is written
// ":name" and may be used as a jump target anywhere it's in scope
// (forward references are fine — the assembler resolves direction and
// offset itself, choosing jmp_forward or jmp_backward so source never
// has to).
//
//	:loop   cmp r0, r1
//	        jmp.eq done
//	        add r2, r2, r0
//	        jmp loop
//	:done   return r2, 1
//
// Registers are written r0..r63, or by the reserved names env, self
// and discard (the three reserved register indices spec.md §4.3
// defines). Integer operands are plain decimal literals; the special
// token "all" may be used for either of call's count fields to mean
// "all remaining" (encoded as the B/C field's reserved value 1, per
// spec.md §4.4). return's count is a plain integer, encoded as is.
//
// A conditional suffix (".eq", ".lt", ".ne", ".ge" or ".always") may
// follow any mnemonic to set its cond byte; with no suffix the
// instruction always executes.
//
// Comments run from "--" to the end of the line.
//
// Directives:
//
//	.const NAME value
//
// defines a named integer constant usable anywhere a bare integer
// operand is expected.
//
//	.constpool long 42
//	.constpool double 3.5
//	.constpool string "hi"
//
// appends an entry to the prototype's constant pool, in declaration
// order — get_constant's index operand refers to that order, so
// fixtures typically declare their constant pool up front.
package asm
