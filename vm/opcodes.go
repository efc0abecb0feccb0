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

// Opcode is EmberVM's 8-bit instruction opcode (spec.md §4.3).
type Opcode uint8

// EmberVM opcodes, in the order spec.md §4.3's table lists them.
const (
	OpNop Opcode = iota
	OpMov
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpCmp
	OpJmpForward
	OpJmpBackward
	OpLoadPrototype
	OpGetConstant
	OpStackGetTop
	OpStackPush
	OpStackPop
	OpTableGet
	OpTableSet
	OpCall
	OpReturn
	OpExtra

	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpNop:           "nop",
	OpMov:           "mov",
	OpAdd:           "add",
	OpSub:           "sub",
	OpMul:           "mul",
	OpDiv:           "div",
	OpMod:           "mod",
	OpPow:           "pow",
	OpCmp:           "cmp",
	OpJmpForward:    "jmp_forward",
	OpJmpBackward:   "jmp_backward",
	OpLoadPrototype: "load_prototype",
	OpGetConstant:   "get_constant",
	OpStackGetTop:   "stack_gettop",
	OpStackPush:     "stack_push",
	OpStackPop:      "stack_pop",
	OpTableGet:      "table_get",
	OpTableSet:      "table_set",
	OpCall:          "call",
	OpReturn:        "return",
	OpExtra:         "extra",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "illegal"
}

// opcodeExtraWords is the number of trailing OpExtra continuation
// words each opcode consumes, keyed by opcode, mirroring the source's
// instructionFieldUsed table (original_source/src/interpreter.c).
// Every opcode in this ISA fits in its primary word; none currently
// need extra fields, but the table (and the decode loop in
// interpreter.go) keep the general EXTRA-chaining machinery spec.md
// §4.3 describes so it's there for opcodes a future ISA revision
// adds.
var opcodeExtraWords = [opcodeCount]int{}

func (op Opcode) extraWords() int {
	if int(op) >= len(opcodeExtraWords) {
		return 0
	}
	return opcodeExtraWords[op]
}

func (op Opcode) valid() bool { return op < opcodeCount }
