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

package groupmodel

import (
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// group roster display mode values
const (
	DisplayNobody    = "nobody"
	DisplayEverybody = "everybody"
	DisplayOnlyGroup = "onlyGroup"
)

// group shared-roster property names
const (
	displayModeProp   = "sharedRoster.showInRoster"
	displayNameProp   = "sharedRoster.displayName"
	allowedGroupsProp = "sharedRoster.groupList"
)

// Group represents a directory group entity.
type Group struct {
	// Name is the group unique name.
	Name string

	// Description is the group human readable description.
	Description string

	// Members contains the group member usernames.
	Members []string

	// Admins contains the group administrator usernames.
	Admins []string

	// Properties contains the group configuration property map.
	Properties map[string]string
}

// DisplayMode returns the group roster display mode.
// Groups with no display configuration default to nobody.
func (g *Group) DisplayMode() string {
	switch g.Properties[displayModeProp] {
	case DisplayEverybody:
		return DisplayEverybody
	case DisplayOnlyGroup:
		return DisplayOnlyGroup
	default:
		return DisplayNobody
	}
}

// DisplayName returns the group roster display name, falling back to the group name.
func (g *Group) DisplayName() string {
	if dn := g.Properties[displayNameProp]; len(dn) > 0 {
		return dn
	}
	return g.Name
}

// AllowedGroups returns the names of the groups allowed to see this group
// when display mode is onlyGroup.
func (g *Group) AllowedGroups() []string {
	prop := g.Properties[allowedGroupsProp]
	if len(prop) == 0 {
		return nil
	}
	var retVal []string
	for _, name := range strings.Split(prop, ",") {
		name = strings.TrimSpace(name)
		if len(name) == 0 {
			continue
		}
		retVal = append(retVal, name)
	}
	return retVal
}

// AllowsGroup tells whether name is contained in the group allow-list.
func (g *Group) AllowsGroup(name string) bool {
	for _, allowed := range g.AllowedGroups() {
		if allowed == name {
			return true
		}
	}
	return false
}

// IsMember tells whether username is a group member.
func (g *Group) IsMember(username string) bool {
	return containsUser(g.Members, username)
}

// IsUser tells whether username is a group member or administrator.
func (g *Group) IsUser(username string) bool {
	return containsUser(g.Members, username) || containsUser(g.Admins, username)
}

// AllUsers returns the union of group members and administrators.
func (g *Group) AllUsers() []string {
	users := make([]string, 0, len(g.Members)+len(g.Admins))
	seen := make(map[string]struct{}, len(g.Members)+len(g.Admins))
	for _, u := range g.Members {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		users = append(users, u)
	}
	for _, u := range g.Admins {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		users = append(users, u)
	}
	return users
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	cp.Admins = append([]string(nil), g.Admins...)
	cp.Properties = make(map[string]string, len(g.Properties))
	for k, v := range g.Properties {
		cp.Properties[k] = v
	}
	return &cp
}

type groupData Group

// MarshalBinary satisfies model.Codec interface.
func (g *Group) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*groupData)(g))
}

// UnmarshalBinary satisfies model.Codec interface.
func (g *Group) UnmarshalBinary(b []byte) error {
	return msgpack.Unmarshal(b, (*groupData)(g))
}

func containsUser(ss []string, s string) bool {
	for _, s0 := range ss {
		if s0 == s {
			return true
		}
	}
	return false
}
