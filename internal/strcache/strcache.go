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

// Package strcache provides Cache, the default vm.StringCache: a
// bounded LRU of interned short strings, the Go-side analogue of the
// original engine's static string pool (spec.md §1's "string intern
// cache" collaborator).
package strcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/emberlang/embervm/vm"
)

// internThreshold is the longest byte length Cache will intern;
// longer strings are unlikely to recur and are returned as ordinary
// ephemeral Values instead of growing the cache with one-shot data.
const internThreshold = 64

// DefaultCapacity is Cache's default entry count when constructed via
// New.
const DefaultCapacity = 4096

// Cache implements vm.StringCache over github.com/hashicorp/golang-lru,
// keyed by the interned content so repeated identical literals and
// table keys share one Value's backing bytes.
type Cache struct {
	mu sync.Mutex
	lr *lru.Cache
}

// New constructs a Cache holding up to capacity distinct interned
// strings.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	lr, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lr: lr}, nil
}

// Intern returns a shared Value for b, interning it on first sight if
// it is short enough to be worth caching; longer byte strings are
// returned as fresh, uncached Values.
func (c *Cache) Intern(b []byte) vm.Value {
	if len(b) > internThreshold {
		return vm.Bytes(b)
	}
	key := string(b)

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.lr.Get(key); ok {
		return v.(vm.Value)
	}
	v := vm.Bytes(b)
	c.lr.Add(key, v)
	return v
}

// Len reports the number of distinct strings currently interned.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lr.Len()
}
