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

import "math"

// arithOp identifies the binary arithmetic opcodes of spec.md §4.1.
type arithOp uint8

const (
	arithAdd arithOp = iota
	arithSub
	arithMul
	arithDiv
	arithMod
	arithPow
)

// arith implements spec.md §4.1: if both operands are Long, the
// result is Long under wrapping (two's-complement) integer semantics;
// otherwise both operands are coerced to Double and the result is
// Double. Exponentiation always produces Double. Division and modulo
// by an integer zero raise rather than silently producing Inf/NaN,
// since the source's integer division is otherwise undefined there.
func arith(op arithOp, a, b Value) (Value, error) {
	if op != arithPow {
		if la, aok := a.AsLong(); aok {
			if lb, bok := b.AsLong(); bok {
				return arithLong(op, la, lb)
			}
		}
	}
	da, aok := a.ToDouble()
	if !aok {
		return Value{}, &TypeError{Op: "perform arithmetic on", Got: a.Type().String()}
	}
	db, bok := b.ToDouble()
	if !bok {
		return Value{}, &TypeError{Op: "perform arithmetic on", Got: b.Type().String()}
	}
	return arithDouble(op, da, db)
}

func arithLong(op arithOp, a, b int64) (Value, error) {
	switch op {
	case arithAdd:
		return Long(a + b), nil
	case arithSub:
		return Long(a - b), nil
	case arithMul:
		return Long(a * b), nil
	case arithDiv:
		if b == 0 {
			return Value{}, &TypeError{Op: "divide by zero", Got: "number"}
		}
		return Long(a / b), nil
	case arithMod:
		if b == 0 {
			return Value{}, &TypeError{Op: "modulo by zero", Got: "number"}
		}
		return Long(a % b), nil
	default:
		return Value{}, &TypeError{Op: "perform arithmetic on", Got: "number"}
	}
}

func arithDouble(op arithOp, a, b float64) (Value, error) {
	switch op {
	case arithAdd:
		return Double(a + b), nil
	case arithSub:
		return Double(a - b), nil
	case arithMul:
		return Double(a * b), nil
	case arithDiv:
		return Double(a / b), nil
	case arithMod:
		// fmod convention: sign of the dividend, per spec.md §4.1.
		return Double(math.Mod(a, b)), nil
	case arithPow:
		return Double(math.Pow(a, b)), nil
	default:
		return Value{}, &TypeError{Op: "perform arithmetic on", Got: "number"}
	}
}
