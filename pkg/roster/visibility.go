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
	"sort"

	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
)

// SharedGroups returns all groups contributing entries to username roster,
// that is groups shared with everybody plus onlyGroup shared groups username
// is a member of or is allowed to see.
func (m *Manager) SharedGroups(ctx context.Context, username string) ([]groupmodel.Group, error) {
	groups, err := m.dir.FetchSharedGroups(ctx)
	if err != nil {
		return nil, err
	}
	userGroups, err := m.dir.FetchUserGroups(ctx, username)
	if err != nil {
		return nil, err
	}
	var retVal []groupmodel.Group
	for i := range groups {
		g := &groups[i]
		switch g.DisplayMode() {
		case groupmodel.DisplayEverybody:
			retVal = append(retVal, *g)
		case groupmodel.DisplayOnlyGroup:
			if groupSees(g, username, userGroups) {
				retVal = append(retVal, *g)
			}
		}
	}
	return retVal, nil
}

// HasMutualVisibility tells whether user and other shared group
// configurations both permit seeing each other. Visibility holds when some
// pair of groups, one containing each user, matches on name, is shared with
// everybody on both sides, allow-lists each other when both restricted, or
// mixes an everybody group with a restricted group allow-listing it.
func (m *Manager) HasMutualVisibility(user string, userGroups []groupmodel.Group, other string, otherGroups []groupmodel.Group) bool {
	for i := range userGroups {
		g := &userGroups[i]
		if !g.IsUser(user) || !isSharedGroup(g) {
			continue
		}
		for j := range otherGroups {
			g2 := &otherGroups[j]
			if !g2.IsUser(other) || !isSharedGroup(g2) {
				continue
			}
			if g.Name == g2.Name {
				return true
			}
			gEverybody := g.DisplayMode() == groupmodel.DisplayEverybody
			g2Everybody := g2.DisplayMode() == groupmodel.DisplayEverybody
			switch {
			case gEverybody && g2Everybody:
				return true
			case !gEverybody && !g2Everybody:
				// restricted on both sides: each group must see the opposite
				// user, directly or through one level of allow-list membership
				if groupSees(g, other, otherGroups) && groupSees(g2, user, userGroups) {
					return true
				}
			case gEverybody && g2.AllowsGroup(g.Name):
				return true
			case g2Everybody && g.AllowsGroup(g2.Name):
				return true
			}
		}
	}
	return false
}

// deriveSharedSubscription computes the subscription state between owner and
// contact induced by shared group configuration alone, along with the group
// names explaining it. Visible groups are the ones owner is entitled to see
// contact through; invisible groups explain the reverse direction only.
// An empty subscription means no shared relationship exists.
func (m *Manager) deriveSharedSubscription(ctx context.Context, owner, contact string) (sub string, visible, invisible []string, err error) {
	ownerGroups, err := m.dir.FetchUserGroups(ctx, owner)
	if err != nil {
		return "", nil, nil, err
	}
	contactGroups, err := m.dir.FetchUserGroups(ctx, contact)
	if err != nil {
		return "", nil, nil, err
	}
	for i := range contactGroups {
		g := &contactGroups[i]
		if !isSharedGroup(g) {
			continue
		}
		if canSeeGroup(owner, ownerGroups, g) {
			visible = append(visible, g.Name)
		}
	}
	for i := range ownerGroups {
		g := &ownerGroups[i]
		if !isSharedGroup(g) {
			continue
		}
		if containsString(visible, g.Name) {
			continue
		}
		if canSeeGroup(contact, contactGroups, g) {
			invisible = append(invisible, g.Name)
		}
	}
	if len(visible) == 0 && len(invisible) == 0 {
		return "", nil, nil, nil
	}
	switch {
	case m.HasMutualVisibility(owner, ownerGroups, contact, contactGroups):
		sub = rostermodel.Both
	case len(visible) > 0:
		sub = rostermodel.To
	default:
		sub = rostermodel.From
	}
	sort.Strings(visible)
	sort.Strings(invisible)
	return sub, visible, invisible, nil
}

// sharedUsersForRoster returns the contacts g contributes to owner roster:
// the group members and admins, plus every user allowed to see g whenever
// owner is one of its users. The asymmetry is what produces FROM-only
// synthesized entries on one side and TO or BOTH on the other.
func (m *Manager) sharedUsersForRoster(ctx context.Context, g *groupmodel.Group, owner string) ([]string, error) {
	users := make(map[string]struct{})
	for _, u := range g.AllUsers() {
		users[u] = struct{}{}
	}
	if g.IsUser(owner) {
		viewers, err := m.groupViewers(ctx, g)
		if err != nil {
			return nil, err
		}
		for _, u := range viewers {
			users[u] = struct{}{}
		}
	}
	return sortedUsers(users), nil
}

// affectedUsers returns every user whose roster is impacted by a change to g:
// nobody when the group is not roster-visible, otherwise its own users plus
// everyone entitled to see it.
func (m *Manager) affectedUsers(ctx context.Context, g *groupmodel.Group) ([]string, error) {
	if !isSharedGroup(g) {
		return nil, nil
	}
	users := make(map[string]struct{})
	for _, u := range g.AllUsers() {
		users[u] = struct{}{}
	}
	viewers, err := m.groupViewers(ctx, g)
	if err != nil {
		return nil, err
	}
	for _, u := range viewers {
		users[u] = struct{}{}
	}
	return sortedUsers(users), nil
}

// groupViewers returns the users allowed to see g members: everyone for
// everybody groups, the allow-listed groups users plus g own users otherwise.
func (m *Manager) groupViewers(ctx context.Context, g *groupmodel.Group) ([]string, error) {
	switch g.DisplayMode() {
	case groupmodel.DisplayEverybody:
		return m.dir.FetchUsernames(ctx)

	case groupmodel.DisplayOnlyGroup:
		users := make(map[string]struct{})
		for _, u := range g.AllUsers() {
			users[u] = struct{}{}
		}
		for _, name := range g.AllowedGroups() {
			allowed, err := m.dir.FetchGroup(ctx, name)
			if err != nil {
				return nil, err
			}
			if allowed == nil {
				continue
			}
			for _, u := range allowed.AllUsers() {
				users[u] = struct{}{}
			}
		}
		return sortedUsers(users), nil

	default:
		return nil, nil
	}
}

// checkSharedGroupNames guards personal group names against shared group
// display names, so users cannot fake membership in a server managed group.
func (m *Manager) checkSharedGroupNames(ctx context.Context, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	sharedGroups, err := m.dir.FetchSharedGroups(ctx)
	if err != nil {
		return err
	}
	for i := range sharedGroups {
		dn := sharedGroups[i].DisplayName()
		for _, name := range groups {
			if name == dn {
				return ErrSharedGroupViolation
			}
		}
	}
	return nil
}

func isSharedGroup(g *groupmodel.Group) bool {
	return g.DisplayMode() != groupmodel.DisplayNobody
}

// canSeeGroup tells whether username is entitled to see g members, username
// groups being the set of groups it belongs to.
func canSeeGroup(username string, userGroups []groupmodel.Group, g *groupmodel.Group) bool {
	switch g.DisplayMode() {
	case groupmodel.DisplayEverybody:
		return true
	case groupmodel.DisplayOnlyGroup:
		return groupSees(g, username, userGroups)
	default:
		return false
	}
}

// groupSees tells whether g grants visibility to username: own users always
// see the group, and so do members of any allow-listed group.
func groupSees(g *groupmodel.Group, username string, userGroups []groupmodel.Group) bool {
	if g.DisplayMode() == groupmodel.DisplayEverybody {
		return true
	}
	if g.IsUser(username) {
		return true
	}
	for i := range userGroups {
		ug := &userGroups[i]
		if !ug.IsUser(username) {
			continue
		}
		if g.AllowsGroup(ug.Name) {
			return true
		}
	}
	return false
}

func sortedUsers(users map[string]struct{}) []string {
	retVal := make([]string, 0, len(users))
	for u := range users {
		retVal = append(retVal, u)
	}
	sort.Strings(retVal)
	return retVal
}

func containsString(ss []string, s string) bool {
	for _, s0 := range ss {
		if s0 == s {
			return true
		}
	}
	return false
}
