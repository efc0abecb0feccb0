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

package bytecode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/emberlang/embervm/vm"
)

// Encode writes root and its nested prototype tree to w in EmberVM's
// wire format, the generalization of the teacher's vm/mem.go
// little-endian Save to a tree of instructions+constants+prototypes
// rather than one flat Forth image.
func Encode(w io.Writer, root *vm.Prototype) error {
	if _, err := io.WriteString(w, Magic); err != nil {
		return errors.Wrap(err, "bytecode: write magic")
	}
	if err := writeUint32(w, Version); err != nil {
		return errors.Wrap(err, "bytecode: write version")
	}
	return encodePrototype(w, root)
}

func encodePrototype(w io.Writer, p *vm.Prototype) error {
	if err := writeString(w, p.Source); err != nil {
		return errors.Wrap(err, "bytecode: write source")
	}
	if err := writeString(w, p.Name); err != nil {
		return errors.Wrap(err, "bytecode: write name")
	}

	if err := writeUint32(w, uint32(len(p.Instructions))); err != nil {
		return errors.Wrap(err, "bytecode: write instruction count")
	}
	for _, ins := range p.Instructions {
		if err := binary.Write(w, binary.LittleEndian, uint64(ins)); err != nil {
			return errors.Wrap(err, "bytecode: write instruction")
		}
	}

	if err := writeUint32(w, uint32(len(p.Constants))); err != nil {
		return errors.Wrap(err, "bytecode: write constant count")
	}
	for i, c := range p.Constants {
		if err := encodeConstant(w, c); err != nil {
			return errors.Wrapf(err, "bytecode: write constant %d", i)
		}
	}

	if err := writeUint32(w, uint32(len(p.LineMap))); err != nil {
		return errors.Wrap(err, "bytecode: write line map count")
	}
	for _, line := range p.LineMap {
		if err := binary.Write(w, binary.LittleEndian, line); err != nil {
			return errors.Wrap(err, "bytecode: write line")
		}
	}

	if err := writeUint32(w, uint32(len(p.Prototypes))); err != nil {
		return errors.Wrap(err, "bytecode: write nested prototype count")
	}
	for i, child := range p.Prototypes {
		if err := encodePrototype(w, child); err != nil {
			return errors.Wrapf(err, "bytecode: write nested prototype %d", i)
		}
	}
	return nil
}

func encodeConstant(w io.Writer, v vm.Value) error {
	switch v.Type() {
	case vm.TypeNil:
		_, err := w.Write([]byte{tagNil})
		return err
	case vm.TypeBool:
		b, _ := v.AsBool()
		tag := byte(0)
		if b {
			tag = 1
		}
		_, err := w.Write([]byte{tagBool, tag})
		return err
	case vm.TypeLong:
		n, _ := v.AsLong()
		if _, err := w.Write([]byte{tagLong}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint64(n))
	case vm.TypeDouble:
		f, _ := v.AsDouble()
		if _, err := w.Write([]byte{tagDouble}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, math.Float64bits(f))
	case vm.TypeString:
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		b, _ := v.StringBytes()
		return writeBytes(w, b)
	default:
		return errors.Errorf("bytecode: %s is not a representable constant", v.Type())
	}
}

func writeUint32(w io.Writer, n uint32) error {
	return binary.Write(w, binary.LittleEndian, n)
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}
