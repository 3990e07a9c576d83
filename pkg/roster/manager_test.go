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
	"testing"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/skylark-im/skylark/pkg/event"
	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/stretchr/testify/require"
)

func TestManager_EverybodyGroupSynthesizesImplicitFrom(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayEverybody,
	}))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	env.waitProcessed()

	// when
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	env.waitProcessed()

	// then
	ros, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)

	require.True(t, ros.IsRosterItem(env.jid("bob")))

	ri, err := ros.RosterItem(env.jid("bob"))
	require.NoError(t, err)
	require.Equal(t, rostermodel.From, ri.Subscription)
	require.True(t, ri.IsTransient())
	require.True(t, ri.IsOnlyShared())
	require.Equal(t, []string{"staff"}, ri.InvisibleSharedGroups)

	// kept out of the explicit item set and never persisted
	require.Empty(t, ros.Items())
	cnt, err := env.rep.CountRosterItems(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 0, cnt)
}

func TestManager_OnlyGroupMembersGetBoth(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayOnlyGroup,
	}))

	// when
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "bob"))
	env.waitProcessed()

	// then
	ros, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)

	ri, err := ros.RosterItem(env.jid("bob"))
	require.NoError(t, err)
	require.Equal(t, rostermodel.Both, ri.Subscription)
	require.True(t, ri.IsOnlyShared())
	require.Equal(t, []string{"staff"}, ri.SharedGroups)

	items := ros.Items()
	require.Len(t, items, 1)
	require.Equal(t, env.jid("bob"), items[0].JID)

	// display name lazily taken from the directory
	require.Equal(t, "Bob", ri.Name)
}

func TestManager_DisplayModeChangeRemovesSharedItems(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayOnlyGroup,
	}))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "bob"))
	env.waitProcessed()

	ros, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ros.IsRosterItem(env.jid("bob")))

	// when
	require.NoError(t, env.dir.SetGroupProperty(ctx, "staff", event.PropDisplayMode, groupmodel.DisplayNobody))
	env.waitProcessed()

	// then
	require.False(t, ros.IsRosterItem(env.jid("bob")))
}

func TestManager_DisplayNameChangePushesNewTag(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayOnlyGroup,
	}))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "bob"))
	env.waitProcessed()

	ros, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)
	before, err := ros.RosterItem(env.jid("bob"))
	require.NoError(t, err)

	env.router.reset()

	// when
	require.NoError(t, env.dir.SetGroupProperty(ctx, "staff", event.PropDisplayName, "The Staff"))
	env.waitProcessed()

	// then
	pushes := env.router.pushes(env.jid("alice"))
	require.Len(t, pushes, 1)

	q := pushes[0].ChildNamespace("query", rosterNamespace)
	item := q.Children("item")[0]
	require.Equal(t, "The Staff", item.Children("group")[0].Text())

	after, err := ros.RosterItem(env.jid("bob"))
	require.NoError(t, err)
	require.Equal(t, before.Subscription, after.Subscription)
}

func TestManager_MemberRemovedDowngradesSubscription(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayOnlyGroup,
	}))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "bob"))
	env.waitProcessed()

	ros, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)
	ri, err := ros.RosterItem(env.jid("bob"))
	require.NoError(t, err)
	require.Equal(t, rostermodel.Both, ri.Subscription)

	// when
	require.NoError(t, env.dir.RemoveMember(ctx, "staff", "bob"))
	env.waitProcessed()

	// then
	require.False(t, ros.IsRosterItem(env.jid("bob")))

	bobRos, err := env.mng.GetRoster(ctx, "bob")
	require.NoError(t, err)
	require.False(t, bobRos.IsRosterItem(env.jid("alice")))
}

func TestManager_SecondOrderMemberPropagation(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))

	// contractors is not roster-visible but staff allow-lists it
	require.NoError(t, env.dir.CreateGroup(ctx, "contractors", "", nil))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode:   groupmodel.DisplayOnlyGroup,
		event.PropAllowedGroups: "contractors",
	}))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	env.waitProcessed()

	// when
	require.NoError(t, env.dir.AddMember(ctx, "contractors", "bob"))
	env.waitProcessed()

	// then
	bobRos, err := env.mng.GetRoster(ctx, "bob")
	require.NoError(t, err)
	ri, err := bobRos.RosterItem(env.jid("alice"))
	require.NoError(t, err)
	require.Equal(t, rostermodel.To, ri.Subscription)
	require.Equal(t, []string{"staff"}, ri.SharedGroups)

	aliceRos, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)
	ri, err = aliceRos.RosterItem(env.jid("bob"))
	require.NoError(t, err)
	require.Equal(t, rostermodel.From, ri.Subscription)
	require.True(t, ri.IsTransient())
}

func TestManager_UserDeletedTeardown(t *testing.T) {
	// given
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	require.NoError(t, env.dir.CreateGroup(ctx, "staff", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayOnlyGroup,
	}))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "alice"))
	require.NoError(t, env.dir.AddMember(ctx, "staff", "bob"))
	env.waitProcessed()

	aliceRos, err := env.mng.GetRoster(ctx, "alice")
	require.NoError(t, err)
	require.True(t, aliceRos.IsRosterItem(env.jid("bob")))

	env.router.reset()

	// when
	require.NoError(t, env.dir.DeleteUser(ctx, "bob"))
	env.waitProcessed()

	// then
	require.False(t, aliceRos.IsRosterItem(env.jid("bob")))

	// both halves of the mutual subscription were cancelled
	require.Len(t, env.router.presences(env.jid("bob"), stravaganza.UnsubscribeType), 1)
	require.Len(t, env.router.presences(env.jid("bob"), stravaganza.UnsubscribedType), 1)

	// roster evicted from both cache tiers
	env.mng.cache.mu.RLock()
	_, cached := env.mng.cache.rosters["bob"]
	env.mng.cache.mu.RUnlock()
	require.False(t, cached)

	hasKey, err := env.store.HasKey(ctx, rosterCacheNS, "bob")
	require.NoError(t, err)
	require.False(t, hasKey)
}

func TestManager_UpdateConfig(t *testing.T) {
	// given
	env := newTestEnv(t, false)
	require.True(t, env.mng.config().Versioning)

	// when
	env.mng.UpdateConfig(Config{Versioning: false})

	ros, err := env.mng.GetRoster(context.Background(), "ortuman")
	require.NoError(t, err)
	_, err = ros.CreateRosterItem(context.Background(), env.jid("noelia"), "", nil, true)
	require.NoError(t, err)

	// then
	pushes := env.router.pushes(env.jid("ortuman"))
	require.Len(t, pushes, 1)
	q := pushes[0].ChildNamespace("query", rosterNamespace)
	require.Empty(t, q.Attribute("ver"))

	ver, err := env.rep.FetchRosterVersion(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 0, ver)
}
