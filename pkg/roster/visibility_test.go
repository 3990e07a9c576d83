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

	"github.com/skylark-im/skylark/pkg/event"
	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
	"github.com/stretchr/testify/require"
)

func testGroup(name, mode, allowed string, members ...string) groupmodel.Group {
	props := map[string]string{}
	if len(mode) > 0 {
		props[event.PropDisplayMode] = mode
	}
	if len(allowed) > 0 {
		props[event.PropAllowedGroups] = allowed
	}
	return groupmodel.Group{
		Name:       name,
		Members:    members,
		Properties: props,
	}
}

func TestManager_HasMutualVisibility(t *testing.T) {
	env := newTestEnv(t, false)

	tcs := map[string]struct {
		aliceGroups []groupmodel.Group
		bobGroups   []groupmodel.Group
		expected    bool
	}{
		"identical group": {
			aliceGroups: []groupmodel.Group{testGroup("staff", groupmodel.DisplayOnlyGroup, "", "alice", "bob")},
			bobGroups:   []groupmodel.Group{testGroup("staff", groupmodel.DisplayOnlyGroup, "", "alice", "bob")},
			expected:    true,
		},
		"both everybody": {
			aliceGroups: []groupmodel.Group{testGroup("eng", groupmodel.DisplayEverybody, "", "alice")},
			bobGroups:   []groupmodel.Group{testGroup("ops", groupmodel.DisplayEverybody, "", "bob")},
			expected:    true,
		},
		"mutual onlyGroup allow-lists": {
			aliceGroups: []groupmodel.Group{testGroup("eng", groupmodel.DisplayOnlyGroup, "ops", "alice")},
			bobGroups:   []groupmodel.Group{testGroup("ops", groupmodel.DisplayOnlyGroup, "eng", "bob")},
			expected:    true,
		},
		"one level transitive allow-list": {
			aliceGroups: []groupmodel.Group{
				testGroup("eng", groupmodel.DisplayOnlyGroup, "partners", "alice"),
				testGroup("vendors", "", "", "alice"),
			},
			bobGroups: []groupmodel.Group{
				testGroup("ops", groupmodel.DisplayOnlyGroup, "vendors", "bob"),
				testGroup("partners", "", "", "bob"),
			},
			expected: true,
		},
		"everybody with allow-list back reference": {
			aliceGroups: []groupmodel.Group{testGroup("eng", groupmodel.DisplayEverybody, "", "alice")},
			bobGroups:   []groupmodel.Group{testGroup("ops", groupmodel.DisplayOnlyGroup, "eng", "bob")},
			expected:    true,
		},
		"one sided allow-list": {
			aliceGroups: []groupmodel.Group{testGroup("eng", groupmodel.DisplayOnlyGroup, "ops", "alice")},
			bobGroups:   []groupmodel.Group{testGroup("ops", groupmodel.DisplayOnlyGroup, "", "bob")},
			expected:    false,
		},
		"not shared": {
			aliceGroups: []groupmodel.Group{testGroup("eng", "", "", "alice")},
			bobGroups:   []groupmodel.Group{testGroup("eng", "", "", "bob")},
			expected:    false,
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			got := env.mng.HasMutualVisibility("alice", tc.aliceGroups, "bob", tc.bobGroups)
			require.Equal(t, tc.expected, got)

			// visibility is symmetric
			mirrored := env.mng.HasMutualVisibility("bob", tc.bobGroups, "alice", tc.aliceGroups)
			require.Equal(t, got, mirrored)
		})
	}
}

func TestManager_SharedGroups(t *testing.T) {
	// given
	env := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateGroup(ctx, "eng", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayEverybody,
	}))
	require.NoError(t, env.dir.CreateGroup(ctx, "ops", "", map[string]string{
		event.PropDisplayMode: groupmodel.DisplayOnlyGroup,
	}))
	require.NoError(t, env.dir.CreateGroup(ctx, "mgmt", "", map[string]string{
		event.PropDisplayMode:   groupmodel.DisplayOnlyGroup,
		event.PropAllowedGroups: "ops",
	}))
	require.NoError(t, env.dir.CreateGroup(ctx, "hidden", "", nil))

	require.NoError(t, env.dir.AddMember(ctx, "ops", "alice"))
	require.NoError(t, env.dir.AddMember(ctx, "hidden", "bob"))

	// when
	aliceGroups, err := env.mng.SharedGroups(ctx, "alice")
	require.NoError(t, err)

	bobGroups, err := env.mng.SharedGroups(ctx, "bob")
	require.NoError(t, err)

	// then
	require.ElementsMatch(t, []string{"eng", "ops", "mgmt"}, groupNames(aliceGroups))
	require.ElementsMatch(t, []string{"eng"}, groupNames(bobGroups))
}

func TestManager_AffectedUsers(t *testing.T) {
	// given
	env := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, env.dir.CreateUser(ctx, "bob", "Bob"))
	require.NoError(t, env.dir.CreateUser(ctx, "carol", "Carol"))

	require.NoError(t, env.dir.CreateGroup(ctx, "contractors", "", nil))
	require.NoError(t, env.dir.AddMember(ctx, "contractors", "carol"))

	everybody := testGroup("eng", groupmodel.DisplayEverybody, "", "alice")
	restricted := testGroup("ops", groupmodel.DisplayOnlyGroup, "contractors", "bob")
	hidden := testGroup("hidden", "", "", "alice", "bob")

	// when
	everybodyUsers, err := env.mng.affectedUsers(ctx, &everybody)
	require.NoError(t, err)

	restrictedUsers, err := env.mng.affectedUsers(ctx, &restricted)
	require.NoError(t, err)

	hiddenUsers, err := env.mng.affectedUsers(ctx, &hidden)
	require.NoError(t, err)

	// then
	require.ElementsMatch(t, []string{"alice", "bob", "carol"}, everybodyUsers)
	require.ElementsMatch(t, []string{"bob", "carol"}, restrictedUsers)
	require.Empty(t, hiddenUsers)
}

func TestManager_SharedUsersForRoster(t *testing.T) {
	// given
	env := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.dir.CreateGroup(ctx, "contractors", "", nil))
	require.NoError(t, env.dir.AddMember(ctx, "contractors", "carol"))

	g := testGroup("ops", groupmodel.DisplayOnlyGroup, "contractors", "alice", "bob")

	// when
	memberView, err := env.mng.sharedUsersForRoster(ctx, &g, "alice")
	require.NoError(t, err)

	outsiderView, err := env.mng.sharedUsersForRoster(ctx, &g, "carol")
	require.NoError(t, err)

	// then

	// members additionally see everyone entitled to see the group
	require.ElementsMatch(t, []string{"alice", "bob", "carol"}, memberView)
	require.ElementsMatch(t, []string{"alice", "bob"}, outsiderView)
}

func groupNames(groups []groupmodel.Group) []string {
	names := make([]string, 0, len(groups))
	for i := range groups {
		names = append(names, groups[i].Name)
	}
	return names
}
