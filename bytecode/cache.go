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
	"crypto/sha256"
	"sync"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/emberlang/embervm/vm"
)

// Cache memoizes decoded bytecode by the SHA-256 digest of its raw
// encoded bytes, so a host that repeatedly loads the same compiled
// module (e.g. a REPL re-running a script, or a server handling many
// requests against one compiled handler) pays the decode cost once.
// The raw bytes themselves are kept in github.com/VictoriaMetrics/
// fastcache, which stores them off the Go GC's radar the way the
// library is designed for; the decoded *vm.Prototype graph a digest
// maps to is kept in a small in-process map alongside it, since
// fastcache can only ever hold bytes.
type Cache struct {
	raw *fastcache.Cache

	mu      sync.Mutex
	decoded map[[32]byte]*vm.Prototype
}

// NewCache constructs a Cache with an approximate byte budget of
// maxBytes, per fastcache.New's sizing contract, for the raw-byte
// side of the cache.
func NewCache(maxBytes int) *Cache {
	return &Cache{raw: fastcache.New(maxBytes), decoded: make(map[[32]byte]*vm.Prototype)}
}

// Digest returns the cache key for a raw encoded bytecode blob.
func Digest(raw []byte) [32]byte {
	return sha256.Sum256(raw)
}

// Load decodes raw, or returns the *vm.Prototype a prior Load of
// byte-identical input already decoded — a subsequent Load of the
// same digest skips Decode entirely instead of just re-fetching the
// raw bytes.
func (c *Cache) Load(raw []byte) (*vm.Prototype, error) {
	digest := Digest(raw)

	c.mu.Lock()
	if p, ok := c.decoded[digest]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	if cached, ok := c.raw.HasGet(nil, digest[:]); ok {
		raw = cached
	} else {
		c.raw.Set(digest[:], raw)
	}

	p, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.decoded[digest] = p
	c.mu.Unlock()
	return p, nil
}

// Reset discards all cached entries, raw and decoded.
func (c *Cache) Reset() {
	c.raw.Reset()
	c.mu.Lock()
	c.decoded = make(map[[32]byte]*vm.Prototype)
	c.mu.Unlock()
}
