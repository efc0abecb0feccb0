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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/embervm/vm"
)

func sampleProto() *vm.Prototype {
	return &vm.Prototype{
		Source: "sample.ember",
		Name:   "main",
		Instructions: []vm.Instruction{
			vm.EncodeInstruction(vm.OpAdd, 0, 0, 1, 2),
			vm.EncodeInstruction(vm.OpReturn, 0, 0, 1, 0),
		},
		Constants: []vm.Value{vm.Nil(), vm.Bool(true), vm.Long(42), vm.Double(3.5), vm.Bytes([]byte("hi"))},
		LineMap:   []int32{1, 2},
		Prototypes: []*vm.Prototype{
			{Source: "sample.ember", Name: "inner", Instructions: []vm.Instruction{vm.EncodeInstruction(vm.OpReturn, 0, 0, 0, 0)}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := sampleProto()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, p))

	got, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, p.Source, got.Source)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Instructions, got.Instructions)
	assert.Equal(t, p.LineMap, got.LineMap)
	require.Len(t, got.Constants, len(p.Constants))
	for i := range p.Constants {
		assert.True(t, p.Constants[i].Equal(got.Constants[i]), "constant %d mismatch", i)
	}
	require.Len(t, got.Prototypes, 1)
	assert.Equal(t, "inner", got.Prototypes[0].Name)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("NOPE1234")))
	assert.Error(t, err)
}

func TestCacheLoadReusesDigest(t *testing.T) {
	p := sampleProto()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, p))
	raw := buf.Bytes()

	c := NewCache(1024 * 1024)
	got1, err := c.Load(raw)
	require.NoError(t, err)
	got2, err := c.Load(raw)
	require.NoError(t, err)
	assert.Same(t, got1, got2, "second Load of identical bytes should reuse the decoded prototype")
}
