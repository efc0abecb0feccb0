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

// runClosure is the fetch-decode-execute loop (spec.md §4.3), shaped
// after the teacher's (*Instance).Run switch-over-opcode loop
// (db47h/ngaro's vm/core.go) but operating over a register file and
// per-CallState operand stack instead of a single flat Forth stack.
// It returns the number of result values a RETURN pushed onto cs's
// own operand stack. An interpreted body fails by panicking a *vmError
// (via raise/raiseErr) — callers are expected to be running under a
// ProtectedCall; a native closure's own error is returned as err.
func runClosure(m *Machine, cs *CallState) (nret int, err error) {
	cl := cs.closure
	if cl.isNative {
		return cl.native(m, cs)
	}

	proto := cl.proto
	instrs := proto.Instructions

	for cs.pc < len(instrs) {
		cs.Debug.Line = int(proto.Line(cs.pc))
		word := instrs[cs.pc]
		op := word.Opcode()
		if !op.valid() {
			raiseErr(&IllegalInstructionError{Word: word, Why: "unknown opcode"})
		}

		width := 1 + op.extraWords()
		if !cs.flags.satisfies(word.Cond()) {
			cs.pc += width
			continue
		}

		switch op {
		case OpNop:
			cs.pc++

		case OpMov:
			writeReg(cs, int(word.A()), cs.Get(int(word.B())))
			cs.pc++

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
			execArith(cs, op, word)
			cs.pc++

		case OpCmp:
			execCmp(cs, word)
			cs.pc++

		case OpJmpForward:
			target := cs.pc + int(word.A())
			checkJump(proto, target)
			cs.pc = target

		case OpJmpBackward:
			target := cs.pc - int(word.A())
			checkJump(proto, target)
			cs.pc = target

		case OpLoadPrototype:
			execLoadPrototype(m, cs, proto, word)
			cs.pc++

		case OpGetConstant:
			execGetConstant(cs, proto, word)
			cs.pc++

		case OpStackGetTop:
			writeReg(cs, int(word.A()), Long(int64(cs.sp-1)))
			cs.pc++

		case OpStackPush:
			if err := cs.Push(cs.Get(int(word.A()))); err != nil {
				raiseErr(err)
			}
			cs.pc++

		case OpStackPop:
			v, err := cs.Pop()
			if err != nil {
				raiseErr(err)
			}
			writeReg(cs, int(word.A()), v)
			cs.pc++

		case OpTableGet:
			execTableGet(cs, word)
			cs.pc++

		case OpTableSet:
			execTableSet(cs, word)
			cs.pc++

		case OpCall:
			execCall(m, cs, word)
			cs.pc++

		case OpReturn:
			return execReturn(cs, word), nil

		case OpExtra:
			raiseErr(&IllegalInstructionError{Word: word, Why: "EXTRA fetched as a primary instruction"})
		}
	}
	return 0, nil
}

func writeReg(cs *CallState, idx int, v Value) {
	if err := cs.Set(idx, v); err != nil {
		raiseErr(err)
	}
}

func checkJump(proto *Prototype, target int) {
	if target < 0 || target >= len(proto.Instructions) {
		raiseErr(&JumpOutOfRangeError{Target: target, Length: len(proto.Instructions)})
	}
}

func execArith(cs *CallState, op Opcode, word Instruction) {
	b := cs.Get(int(word.B()))
	c := cs.Get(int(word.C()))
	var a arithOp
	switch op {
	case OpAdd:
		a = arithAdd
	case OpSub:
		a = arithSub
	case OpMul:
		a = arithMul
	case OpDiv:
		a = arithDiv
	case OpMod:
		a = arithMod
	case OpPow:
		a = arithPow
	}
	result, err := arith(a, b, c)
	if err != nil {
		raiseErr(err)
	}
	writeReg(cs, int(word.A()), result)
}

// execCmp sets EQUAL/LESS from R[A] vs R[B] (spec.md §4.3's CMP).
// Cross-type comparison follows Value.Equal/Value.Less: Long/Double
// compare by mathematical value; otherwise only equal variants can
// set EQUAL, and only numeric pairs can set LESS.
func execCmp(cs *CallState, word Instruction) {
	a := cs.Get(int(word.A()))
	b := cs.Get(int(word.B()))
	var flags condFlags
	if a.Equal(b) {
		flags |= flagEqual
	}
	if less, ok := a.Less(b); ok && less {
		flags |= flagLess
	}
	cs.flags = flags
}

func execLoadPrototype(m *Machine, cs *CallState, proto *Prototype, word Instruction) {
	idx := int(word.B())
	if idx < 0 || idx >= len(proto.Prototypes) {
		raiseErr(&IllegalInstructionError{Word: word, Why: "prototype index out of range"})
	}
	child, err := NewInterpretedClosure(m.gc, proto.Prototypes[idx], cs.Get(RegEnv))
	if err != nil {
		raiseErr(err)
	}
	writeReg(cs, int(word.A()), child.Self())
}

func execGetConstant(cs *CallState, proto *Prototype, word Instruction) {
	idx := int(word.B())
	if idx < 0 || idx >= len(proto.Constants) {
		raiseErr(&IllegalInstructionError{Word: word, Why: "constant index out of range"})
	}
	writeReg(cs, int(word.A()), proto.Constants[idx])
}

// execTableGet implements TABLE_GET: R[A] ← TABLE_LOOKUP(R[B], R[C]),
// absent key yields Nil (spec.md §4.3). No metamethod fallback is
// consulted (SPEC_FULL.md's Open Question resolution for __index).
func execTableGet(cs *CallState, word Instruction) {
	tbl := cs.Get(int(word.B()))
	key := cs.Get(int(word.C()))
	ops, ok := tableOpsFromValue(tbl)
	if !ok {
		raiseErr(&TypeError{Op: "index", Got: tbl.Type().String()})
	}
	v, found := ops.Lookup(key)
	if !found {
		v = Nil()
	}
	writeReg(cs, int(word.A()), v)
}

// execTableSet implements TABLE_SET: TABLE_STORE(R[A], R[B], R[C]).
func execTableSet(cs *CallState, word Instruction) {
	tbl := cs.Get(int(word.A()))
	key := cs.Get(int(word.B()))
	val := cs.Get(int(word.C()))
	ops, ok := tableOpsFromValue(tbl)
	if !ok {
		raiseErr(&TypeError{Op: "index", Got: tbl.Type().String()})
	}
	if err := ops.Store(key, val); err != nil {
		raiseErr(err)
	}
}

func tableOpsFromValue(v Value) (TableOps, bool) {
	h, ok := v.Handle()
	if !ok {
		return nil, false
	}
	ops, ok := h.Data().(TableOps)
	return ops, ok
}

// execReturn implements RETURN A,B: push R[A..A+B-1] onto cs's own
// operand stack and report how many values were produced, so the
// call protocol (below) can copy them back to the caller.
func execReturn(cs *CallState, word Instruction) int {
	a := int(word.A())
	b := int(word.B())
	for k := 0; k < b; k++ {
		if err := cs.Push(cs.Get(a + k)); err != nil {
			raiseErr(err)
		}
	}
	return b
}

// CALL's B and C fields encode "how many" with 1 reserved to mean
// "all remaining" (all args on the stack; variadic results) and any
// other value n meaning exactly n-1, per spec.md §4.3's C==1/B==1
// sentinel. A field of 0 decodes to a negative count, which callCount
// folds to 0 rather than treating it as the sentinel.
func execCall(m *Machine, cs *CallState, word Instruction) {
	fn := cs.Get(int(word.A()))
	call(m, cs.co, cs, fn, callCount(word.C()), callCount(word.B()))
}

// callCount decodes a CALL B/C field: 1 means "all remaining" (-1,
// call()'s own sentinel), anything else means exactly field-1,
// clamped at 0.
func callCount(field uint16) int {
	if field == 1 {
		return -1
	}
	n := int(field) - 1
	if n < 0 {
		n = 0
	}
	return n
}

// call performs the call protocol of spec.md §4.4, steps 1-7, raising
// (panicking a *vmError) on any failure rather than returning one —
// it is always invoked from code already running under some
// ProtectedCall boundary (either the CALL opcode inside runClosure,
// or Machine.Call's own guarded wrapper below).
func call(m *Machine, co *Coroutine, caller *CallState, fn Value, nargs, nret int) {
	cl, ok := closureFromValue(fn)
	if !ok {
		raiseErr(&TypeError{Op: "call", Got: fn.Type().String()})
	}

	// 2. Locate args: the top nargs slots of the caller, clamped.
	avail := caller.sp
	n := nargs
	if n < 0 || n > avail {
		n = avail
	}
	start := avail - n

	// 3. Prolog.
	callee := co.pushFrame(cl)

	// 4. Copy args from caller to callee, then pop them from caller.
	for k := 0; k < n; k++ {
		if err := callee.Push(caller.stack[start+k]); err != nil {
			raiseErr(err)
		}
	}
	for k := 0; k < n; k++ {
		if _, err := caller.Pop(); err != nil {
			raiseErr(err)
		}
	}

	// 5. Execute.
	produced, err := runClosure(m, callee)

	// 7. Epilog: pop the CallState (guarded internally by the frame
	// lock), restoring the parent's view of the frame stack.
	co.popFrame()

	if err != nil {
		raiseErr(err)
	}

	// 6. Copy nret results (or all, if nret == -1) back to the
	// caller's stack; missing positions receive Nil.
	want := nret
	if want < 0 {
		want = produced
	}
	resultsStart := callee.sp - produced
	for k := 0; k < want; k++ {
		if k < produced {
			if err := caller.Push(callee.stack[resultsStart+k]); err != nil {
				raiseErr(err)
			}
		} else {
			if err := caller.Push(Nil()); err != nil {
				raiseErr(err)
			}
		}
	}
}

// Call is the host-facing entry point for invoking a closure from
// outside any particular CallState (spec.md §4.4, exposed as an
// ordinary Go API rather than a panic/recover boundary): it runs the
// call protocol as a one-shot protected call and returns a normal Go
// error instead of propagating a panic.
func (m *Machine) Call(co *Coroutine, fn Value, args []Value, nret int) ([]Value, error) {
	caller := newCallState(co, nil)
	for _, a := range args {
		if err := caller.Push(a); err != nil {
			return nil, err
		}
	}
	depth := co.FrameDepth()
	var callErr error
	ok := co.ProtectedCall(func() error {
		call(m, co, caller, fn, len(args), nret)
		return nil
	}, func(v Value) { callErr = &vmError{value: v} })
	if !ok {
		co.trimFramesTo(depth)
		return nil, callErr
	}
	results := make([]Value, caller.sp)
	copy(results, caller.stack[:caller.sp])
	return results, nil
}
