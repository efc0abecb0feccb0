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

// Decode reads a prototype tree previously written by Encode.
func Decode(r io.Reader) (*vm.Prototype, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.Wrap(err, "bytecode: read magic")
	}
	if string(magic) != Magic {
		return nil, errors.Errorf("bytecode: bad magic %q", magic)
	}
	version, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read version")
	}
	if version != Version {
		return nil, errors.Errorf("bytecode: unsupported version %d", version)
	}
	return decodePrototype(r)
}

func decodePrototype(r io.Reader) (*vm.Prototype, error) {
	p := &vm.Prototype{}

	source, err := readString(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read source")
	}
	p.Source = source

	name, err := readString(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read name")
	}
	p.Name = name

	nInstr, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read instruction count")
	}
	p.Instructions = make([]vm.Instruction, nInstr)
	for i := range p.Instructions {
		var w uint64
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return nil, errors.Wrapf(err, "bytecode: read instruction %d", i)
		}
		p.Instructions[i] = vm.Instruction(w)
	}

	nConst, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read constant count")
	}
	p.Constants = make([]vm.Value, nConst)
	for i := range p.Constants {
		v, err := decodeConstant(r)
		if err != nil {
			return nil, errors.Wrapf(err, "bytecode: read constant %d", i)
		}
		p.Constants[i] = v
	}

	nLines, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read line map count")
	}
	if nLines > 0 {
		p.LineMap = make([]int32, nLines)
		for i := range p.LineMap {
			if err := binary.Read(r, binary.LittleEndian, &p.LineMap[i]); err != nil {
				return nil, errors.Wrapf(err, "bytecode: read line %d", i)
			}
		}
	}

	nProtos, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read nested prototype count")
	}
	if nProtos > 0 {
		p.Prototypes = make([]*vm.Prototype, nProtos)
		for i := range p.Prototypes {
			child, err := decodePrototype(r)
			if err != nil {
				return nil, errors.Wrapf(err, "bytecode: read nested prototype %d", i)
			}
			p.Prototypes[i] = child
		}
	}
	return p, nil
}

func decodeConstant(r io.Reader) (vm.Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return vm.Value{}, err
	}
	switch tag[0] {
	case tagNil:
		return vm.Nil(), nil
	case tagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return vm.Value{}, err
		}
		return vm.Bool(b[0] != 0), nil
	case tagLong:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return vm.Value{}, err
		}
		return vm.Long(int64(n)), nil
	case tagDouble:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return vm.Value{}, err
		}
		return vm.Double(math.Float64frombits(bits)), nil
	case tagString:
		b, err := readBytes(r)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Bytes(b), nil
	default:
		return vm.Value{}, errors.Errorf("bytecode: unknown constant tag %d", tag[0])
	}
}

func readUint32(r io.Reader) (uint32, error) {
	var n uint32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
