// Copyright 2024 The skylark Authors
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

package memorycache

import (
	"context"
	"sync"
)

// Type is memory cache store type identifier.
const Type = "memory"

// Cache is a process local in-memory cache store, suited for single node
// deployments and tests.
type Cache struct {
	mu sync.RWMutex
	ns map[string]map[string][]byte
}

// New creates and returns an initialized memory Cache instance.
func New() *Cache {
	return &Cache{
		ns: make(map[string]map[string][]byte),
	}
}

// Type satisfies Cache interface.
func (c *Cache) Type() string { return Type }

// Get satisfies Cache interface.
func (c *Cache) Get(_ context.Context, ns, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, ok := c.ns[ns]
	if !ok {
		return nil, nil
	}
	val, ok := keys[key]
	if !ok {
		return nil, nil
	}
	retVal := make([]byte, len(val))
	copy(retVal, val)
	return retVal, nil
}

// Put satisfies Cache interface.
func (c *Cache) Put(_ context.Context, ns, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.ns[ns]
	if !ok {
		keys = make(map[string][]byte)
		c.ns[ns] = keys
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	keys[key] = cp
	return nil
}

// Del satisfies Cache interface.
func (c *Cache) Del(_ context.Context, ns string, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	nsKeys, ok := c.ns[ns]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(nsKeys, k)
	}
	return nil
}

// DelNS satisfies Cache interface.
func (c *Cache) DelNS(_ context.Context, ns string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.ns, ns)
	return nil
}

// HasKey satisfies Cache interface.
func (c *Cache) HasKey(_ context.Context, ns, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, ok := c.ns[ns]
	if !ok {
		return false, nil
	}
	_, ok = keys[key]
	return ok, nil
}

// Start satisfies Cache interface.
func (c *Cache) Start(_ context.Context) error { return nil }

// Stop satisfies Cache interface.
func (c *Cache) Stop(_ context.Context) error { return nil }
