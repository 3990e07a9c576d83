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

package roster

import (
	"context"
	"sync"

	"github.com/skylark-im/skylark/pkg/cache"
	"github.com/skylark-im/skylark/pkg/cluster/locker"
	"github.com/skylark-im/skylark/pkg/log"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
)

const rosterCacheNS = "rst:roster"

// Cache owns Roster lifetime: rosters are loaded lazily on first access and
// evicted on account deletion. Concurrent first loads for the same username
// are serialized through an interned per-key mutex, while unrelated usernames
// load fully in parallel. A cluster lock is held across the load so no two
// nodes rebuild the same roster concurrently.
type Cache struct {
	store  cache.Cache
	locker locker.Locker
	m      *Manager

	mu      sync.RWMutex
	rosters map[string]*Roster
	loadMu  sync.Map
}

func newCache(store cache.Cache, lkr locker.Locker, m *Manager) *Cache {
	return &Cache{
		store:   store,
		locker:  lkr,
		m:       m,
		rosters: make(map[string]*Roster),
	}
}

// Get returns username roster, loading it on first access. The roster is
// restored from the distributed store when another node already published a
// snapshot, and rebuilt from the repository and directory otherwise.
func (c *Cache) Get(ctx context.Context, username string) (*Roster, error) {
	c.mu.RLock()
	ros, ok := c.rosters[username]
	c.mu.RUnlock()
	if ok {
		return ros, nil
	}
	mu := c.keyMutex(username)
	mu.Lock()
	defer mu.Unlock()

	c.mu.RLock()
	ros, ok = c.rosters[username]
	c.mu.RUnlock()
	if ok {
		return ros, nil
	}
	lock, err := c.locker.AcquireLock(ctx, rosterCacheNS+":"+username)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	ros = newRoster(username, c.m)

	b, err := c.store.Get(ctx, rosterCacheNS, username)
	if err != nil {
		log.Warnw("Failed to read roster cache", "username", username, "err", err)
		b = nil
	}
	if b != nil {
		var sn rostermodel.Snapshot
		if err := sn.UnmarshalBinary(b); err != nil {
			log.Warnw("Failed to decode roster snapshot", "username", username, "err", err)
			b = nil
		} else {
			ros.restore(&sn)
		}
	}
	if b == nil {
		if err := ros.load(ctx); err != nil {
			return nil, err
		}
		if err := c.publish(ctx, ros); err != nil {
			log.Warnw("Failed to publish roster snapshot", "username", username, "err", err)
		}
	}
	c.mu.Lock()
	c.rosters[username] = ros
	c.mu.Unlock()

	// the interned mutex is only needed while the roster is absent; waiters
	// blocked on it re-check the map and hit
	c.loadMu.Delete(username)
	return ros, nil
}

// Put re-inserts ros under its username key and republishes its snapshot
// into the distributed store, making the mutation visible cluster-wide.
func (c *Cache) Put(ctx context.Context, ros *Roster) error {
	c.mu.Lock()
	c.rosters[ros.Username()] = ros
	c.mu.Unlock()

	return c.publish(ctx, ros)
}

// Evict drops username roster from both the local map and the distributed
// store.
func (c *Cache) Evict(ctx context.Context, username string) error {
	c.mu.Lock()
	delete(c.rosters, username)
	c.mu.Unlock()

	c.loadMu.Delete(username)
	return c.store.Del(ctx, rosterCacheNS, username)
}

func (c *Cache) publish(ctx context.Context, ros *Roster) error {
	b, err := ros.snapshot().MarshalBinary()
	if err != nil {
		return err
	}
	return c.store.Put(ctx, rosterCacheNS, ros.Username(), b)
}

func (c *Cache) keyMutex(username string) *sync.Mutex {
	v, _ := c.loadMu.LoadOrStore(username, &sync.Mutex{})
	return v.(*sync.Mutex)
}
