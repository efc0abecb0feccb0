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

package vm_test

import (
	"strings"
	"testing"

	"github.com/emberlang/embervm/internal/table"
	"github.com/emberlang/embervm/vm"
)

// Scenario 1 (spec.md §8): constants [Long 2, Long 3]; GET_CONSTANT
// R0,0; GET_CONSTANT R1,1; ADD R2,R0,R1; STACK_PUSH R2; RETURN R2,1.
// Resuming returns one value, Long(5).
func TestInterpreterArithmeticScenario(t *testing.T) {
	m := newTestMachine(t)
	_, results, ok := runProto(t, m, `
.constpool long 2
.constpool long 3
get_constant r0,0
get_constant r1,1
add r2,r0,r1
stack_push r2
return r2,1
`)
	if !ok {
		t.Fatal("expected a clean return")
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if n, isLong := results[0].AsLong(); !isLong || n != 5 {
		t.Errorf("expected Long(5), got %v", results[0])
	}
}

// Scenario 2 (spec.md §8): TABLE_GET against a key absent from the
// table yields Nil rather than erroring.
func TestInterpreterTableGetMissingKeyYieldsNil(t *testing.T) {
	m := newTestMachine(t)
	env, err := vm.NewTableValue(m.GC(), table.New(8))
	if err != nil {
		t.Fatal(err)
	}
	proto := assembleProto(t, `
.constpool string "missing-key"
get_constant r1,0
table_get r0,env,r1
return r0,1
`)
	cl, err := vm.NewInterpretedClosure(m.GC(), proto, env)
	if err != nil {
		t.Fatal(err)
	}
	co, err := vm.NewCoroutine(m, cl)
	if err != nil {
		t.Fatal(err)
	}
	results, ok, err := m.Resume(co)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected a clean return, got error %v", co.ThrownError())
	}
	if !results[0].IsNil() {
		t.Errorf("looking up a missing key should yield Nil, got %v", results[0])
	}
}

// TestInterpreterTableSetThenGet exercises TABLE_SET followed by a
// TABLE_GET of the same key returning the stored value, rounding out
// Scenario 2 with the positive case.
func TestInterpreterTableSetThenGet(t *testing.T) {
	m := newTestMachine(t)
	env, err := vm.NewTableValue(m.GC(), table.New(8))
	if err != nil {
		t.Fatal(err)
	}
	proto := assembleProto(t, `
.constpool string "k"
.constpool long 99
get_constant r1,0
get_constant r2,1
table_set env,r1,r2
table_get r0,env,r1
return r0,1
`)
	cl, err := vm.NewInterpretedClosure(m.GC(), proto, env)
	if err != nil {
		t.Fatal(err)
	}
	co, err := vm.NewCoroutine(m, cl)
	if err != nil {
		t.Fatal(err)
	}
	results, ok, err := m.Resume(co)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected a clean return, got error %v", co.ThrownError())
	}
	if n, isLong := results[0].AsLong(); !isLong || n != 99 {
		t.Errorf("expected Long(99), got %v", results[0])
	}
}

// Scenario 3 (spec.md §8): CMP compares cross-type Long/Double pairs
// by mathematical value; conditional MOVs observe the resulting flags.
func TestInterpreterCmpCrossTypeEqual(t *testing.T) {
	m := newTestMachine(t)
	_, results, ok := runProto(t, m, `
.constpool long 1
.constpool double 1
.constpool long 111
.constpool long 222
get_constant r0,0
get_constant r1,1
cmp r0,r1
get_constant r2,2
get_constant r3,3
mov.eq r4,r2
mov.ne r4,r3
return r4,1
`)
	if !ok {
		t.Fatal("expected a clean return")
	}
	if n, _ := results[0].AsLong(); n != 111 {
		t.Errorf("Long(1) and Double(1) should compare equal, got %v", results[0])
	}
}

func TestInterpreterCmpCrossTypeNotEqual(t *testing.T) {
	m := newTestMachine(t)
	_, results, ok := runProto(t, m, `
.constpool long 1
.constpool double 2
.constpool long 111
.constpool long 222
get_constant r0,0
get_constant r1,1
cmp r0,r1
get_constant r2,2
get_constant r3,3
mov.eq r4,r2
mov.ne r4,r3
return r4,1
`)
	if !ok {
		t.Fatal("expected a clean return")
	}
	if n, _ := results[0].AsLong(); n != 222 {
		t.Errorf("Long(1) and Double(2) should not compare equal, got %v", results[0])
	}
}

// Scenario 6 (spec.md §8): an illegal opcode raises IllegalInstructionError
// whose message includes the literal 16-hex-digit instruction word.
// There is no asm mnemonic for an invalid opcode, so the Prototype is
// built directly from vm.EncodeInstruction instead of through asm.
func TestInterpreterIllegalInstruction(t *testing.T) {
	m := newTestMachine(t)
	word := vm.EncodeInstruction(vm.Opcode(0xFE), 0, 0, 0, 0)
	proto := &vm.Prototype{Source: "illegal", Instructions: []vm.Instruction{word}}
	cl, err := vm.NewInterpretedClosure(m.GC(), proto, vm.Nil())
	if err != nil {
		t.Fatal(err)
	}
	co, err := vm.NewCoroutine(m, cl)
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := m.Resume(co)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("an unknown opcode must not return cleanly")
	}
	msg := co.ThrownError().String()
	if !strings.Contains(msg, "illegal instruction") {
		t.Errorf("expected an illegal-instruction message, got %q", msg)
	}
	if !strings.Contains(msg, "fe00000000000000") {
		t.Errorf("expected the 16-hex-digit instruction word in the message, got %q", msg)
	}
}
