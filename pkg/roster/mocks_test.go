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
	"sync/atomic"
	"testing"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/skylark-im/skylark/pkg/cache"
	memorycache "github.com/skylark-im/skylark/pkg/cache/memory"
	"github.com/skylark-im/skylark/pkg/cluster/locker"
	"github.com/skylark-im/skylark/pkg/directory/memorydir"
	"github.com/skylark-im/skylark/pkg/hook"
	"github.com/skylark-im/skylark/pkg/host"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/storage/repository"
	"github.com/stretchr/testify/require"
)

type routerMock struct {
	mu     sync.Mutex
	routed []stravaganza.Stanza
}

func (r *routerMock) Route(_ context.Context, stanza stravaganza.Stanza) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, stanza)
	return nil
}

func (r *routerMock) stanzas() []stravaganza.Stanza {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stravaganza.Stanza(nil), r.routed...)
}

func (r *routerMock) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = nil
}

// presences returns routed presences of a given type addressed to toJID.
func (r *routerMock) presences(toJID, typ string) []stravaganza.Stanza {
	var retVal []stravaganza.Stanza
	for _, stanza := range r.stanzas() {
		if stanza.Name() != "presence" {
			continue
		}
		if stanza.Attribute(stravaganza.To) != toJID || stanza.Attribute(stravaganza.Type) != typ {
			continue
		}
		retVal = append(retVal, stanza)
	}
	return retVal
}

// pushes returns routed roster push IQs addressed to toJID.
func (r *routerMock) pushes(toJID string) []stravaganza.Stanza {
	var retVal []stravaganza.Stanza
	for _, stanza := range r.stanzas() {
		if stanza.Name() != "iq" || stanza.Attribute(stravaganza.To) != toJID {
			continue
		}
		if stanza.ChildNamespace("query", rosterNamespace) == nil {
			continue
		}
		retVal = append(retVal, stanza)
	}
	return retVal
}

// memRepository is an in-memory roster repository used to exercise the engine
// without a database.
type memRepository struct {
	mu         sync.Mutex
	items      map[string][]rostermodel.Item
	vers       map[string]int
	nextID     int64
	fetchCalls int32
}

func newMemRepository() *memRepository {
	return &memRepository{
		items: make(map[string][]rostermodel.Item),
		vers:  make(map[string]int),
	}
}

func (r *memRepository) CreateRosterItem(_ context.Context, ri *rostermodel.Item) (*rostermodel.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range r.items[ri.Username] {
		if it.JID == ri.JID {
			return nil, repository.ErrAlreadyExists
		}
	}
	r.nextID++
	ins := *ri.Clone()
	ins.ID = r.nextID
	r.items[ri.Username] = append(r.items[ri.Username], ins)
	return ins.Clone(), nil
}

func (r *memRepository) UpdateRosterItem(_ context.Context, ri *rostermodel.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.items[ri.Username]
	for i, it := range items {
		if it.JID != ri.JID {
			continue
		}
		upd := *ri.Clone()
		upd.ID = it.ID
		items[i] = upd
		return nil
	}
	return repository.ErrNotFound
}

func (r *memRepository) DeleteRosterItem(_ context.Context, username string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.items[username]
	for i, it := range items {
		if it.ID != id {
			continue
		}
		r.items[username] = append(items[:i], items[i+1:]...)
		return nil
	}
	return nil
}

func (r *memRepository) DeleteRosterItems(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, username)
	return nil
}

func (r *memRepository) FetchRosterItems(_ context.Context, username string) ([]rostermodel.Item, error) {
	atomic.AddInt32(&r.fetchCalls, 1)

	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.items[username]
	retVal := make([]rostermodel.Item, 0, len(items))
	for _, it := range items {
		retVal = append(retVal, *it.Clone())
	}
	return retVal, nil
}

func (r *memRepository) CountRosterItems(_ context.Context, username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items[username]), nil
}

func (r *memRepository) FetchRosterUsernames(_ context.Context, contactJID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var retVal []string
	for username, items := range r.items {
		for _, it := range items {
			if it.JID == contactJID {
				retVal = append(retVal, username)
				break
			}
		}
	}
	return retVal, nil
}

func (r *memRepository) TouchRosterVersion(_ context.Context, username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vers[username]++
	return r.vers[username], nil
}

func (r *memRepository) FetchRosterVersion(_ context.Context, username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vers[username], nil
}

func (r *memRepository) fetchCount() int32 {
	return atomic.LoadInt32(&r.fetchCalls)
}

const testDomain = "skylark.im"

type testEnv struct {
	hk     *hook.Hooks
	dir    *memorydir.Directory
	rep    *memRepository
	router *routerMock
	store  cache.Cache
	mng    *Manager
}

func newTestEnv(t *testing.T, start bool) *testEnv {
	t.Helper()

	hk := hook.NewHooks()
	env := &testEnv{
		hk:     hk,
		dir:    memorydir.New(hk),
		rep:    newMemRepository(),
		router: &routerMock{},
		store:  memorycache.New(),
	}
	env.mng = NewManager(
		Config{Versioning: true},
		env.rep,
		env.dir,
		env.store,
		locker.NewNop(),
		env.router,
		host.NewHosts(testDomain),
		hk,
	)
	if start {
		require.NoError(t, env.mng.Start(context.Background()))
		t.Cleanup(func() { _ = env.mng.Stop(context.Background()) })
	}
	return env
}

// waitProcessed blocks until every previously enqueued directory event has
// been fully processed.
func (e *testEnv) waitProcessed() {
	done := make(chan struct{})
	e.mng.rq.Run(func() { close(done) })
	<-done
}

func (e *testEnv) jid(username string) string {
	return username + "@" + testDomain
}
