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

package strcache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternReturnsSharedValue(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	a := c.Intern([]byte("hello"))
	b := c.Intern([]byte("hello"))
	assert.True(t, a.Equal(b))
	assert.Equal(t, 1, c.Len())
}

func TestInternDistinctKeysGrowCache(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	c.Intern([]byte("a"))
	c.Intern([]byte("b"))
	assert.Equal(t, 2, c.Len())
}

func TestInternAboveThresholdNotCached(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	long := []byte(strings.Repeat("x", internThreshold+1))
	c.Intern(long)
	assert.Equal(t, 0, c.Len())
}
