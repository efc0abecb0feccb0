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

package asm

import (
	"io"

	"github.com/emberlang/embervm/vm"
)

// operandKind describes what one operand of a mnemonic means, so the
// parser can validate and encode it uniformly.
type operandKind int

const (
	kindReg operandKind = iota
	kindImm
	kindLabel
	kindCount // a call count: "all" or a non-negative integer
)

type mnemonic struct {
	op       vm.Opcode
	operands []operandKind // field order is always A, B, C
}

var mnemonics = map[string]mnemonic{
	"nop":            {vm.OpNop, nil},
	"mov":            {vm.OpMov, []operandKind{kindReg, kindReg}},
	"add":            {vm.OpAdd, []operandKind{kindReg, kindReg, kindReg}},
	"sub":            {vm.OpSub, []operandKind{kindReg, kindReg, kindReg}},
	"mul":            {vm.OpMul, []operandKind{kindReg, kindReg, kindReg}},
	"div":            {vm.OpDiv, []operandKind{kindReg, kindReg, kindReg}},
	"mod":            {vm.OpMod, []operandKind{kindReg, kindReg, kindReg}},
	"pow":            {vm.OpPow, []operandKind{kindReg, kindReg, kindReg}},
	"cmp":            {vm.OpCmp, []operandKind{kindReg, kindReg}},
	"jmp":            {vm.OpJmpForward, []operandKind{kindLabel}}, // direction picked by the assembler
	"load_prototype": {vm.OpLoadPrototype, []operandKind{kindReg, kindImm}},
	"get_constant":   {vm.OpGetConstant, []operandKind{kindReg, kindImm}},
	"stack_gettop":   {vm.OpStackGetTop, []operandKind{kindReg}},
	"stack_push":     {vm.OpStackPush, []operandKind{kindReg}},
	"stack_pop":      {vm.OpStackPop, []operandKind{kindReg}},
	"table_get":      {vm.OpTableGet, []operandKind{kindReg, kindReg, kindReg}},
	"table_set":      {vm.OpTableSet, []operandKind{kindReg, kindReg, kindReg}},
	"call":           {vm.OpCall, []operandKind{kindReg, kindCount, kindCount}},
	"return":         {vm.OpReturn, []operandKind{kindReg, kindImm}},
}

// reserved register names, per spec.md §4.3's three reserved indices.
var namedRegisters = map[string]uint16{
	"discard": vm.RegAlwaysNil,
	"self":    vm.RegCurrent,
	"env":     vm.RegEnv,
}

// condSuffixes maps a mnemonic's optional ".xxx" suffix to a cond
// byte, built from condMask (high nibble) / condPattern (low nibble).
// flagEqual is bit 0, flagLess is bit 1 (vm/instruction.go).
var condSuffixes = map[string]uint8{
	"always": 0x00,
	"eq":     0x11, // mask=EQUAL, pattern=EQUAL
	"ne":     0x10, // mask=EQUAL, pattern=0
	"lt":     0x22, // mask=LESS, pattern=LESS
	"ge":     0x20, // mask=LESS, pattern=0
}

// Assemble compiles assembly text read from r into a Prototype. name
// is used only to tag parse-error positions (e.g. a source file name).
func Assemble(name string, r io.Reader) (*vm.Prototype, error) {
	p := newParser(name)
	if err := p.parse(r); err != nil {
		return nil, err
	}
	return &vm.Prototype{
		Source:       name,
		Instructions: p.instructions,
		Constants:    p.constants,
		LineMap:      p.lineMap,
	}, nil
}
