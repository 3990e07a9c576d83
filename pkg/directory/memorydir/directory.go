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

package memorydir

import (
	"context"
	"sync"

	"github.com/skylark-im/skylark/pkg/directory"
	"github.com/skylark-im/skylark/pkg/event"
	"github.com/skylark-im/skylark/pkg/hook"
	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
)

// Directory is an in-memory directory implementation.
// Every mutation runs the matching directory lifecycle hook, so registered
// listeners observe group and user changes as they happen.
type Directory struct {
	hk *hook.Hooks

	mu     sync.RWMutex
	users  map[string]string
	groups map[string]*groupmodel.Group
}

// New returns a new initialized in-memory directory.
func New(hk *hook.Hooks) *Directory {
	return &Directory{
		hk:     hk,
		users:  make(map[string]string),
		groups: make(map[string]*groupmodel.Group),
	}
}

// FetchGroup retrieves a group given its name. If not found nil is returned.
func (d *Directory) FetchGroup(_ context.Context, name string) (*groupmodel.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	g, ok := d.groups[name]
	if !ok {
		return nil, nil
	}
	return cloneGroup(g), nil
}

// FetchGroups retrieves all directory groups.
func (d *Directory) FetchGroups(_ context.Context) ([]groupmodel.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var retVal []groupmodel.Group
	for _, g := range d.groups {
		retVal = append(retVal, *cloneGroup(g))
	}
	return retVal, nil
}

// FetchSharedGroups retrieves all groups configured with a roster display mode other than nobody.
func (d *Directory) FetchSharedGroups(_ context.Context) ([]groupmodel.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var retVal []groupmodel.Group
	for _, g := range d.groups {
		if g.DisplayMode() == groupmodel.DisplayNobody {
			continue
		}
		retVal = append(retVal, *cloneGroup(g))
	}
	return retVal, nil
}

// FetchUserGroups retrieves all groups username belongs to, as member or admin.
func (d *Directory) FetchUserGroups(_ context.Context, username string) ([]groupmodel.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var retVal []groupmodel.Group
	for _, g := range d.groups {
		if !g.IsUser(username) {
			continue
		}
		retVal = append(retVal, *cloneGroup(g))
	}
	return retVal, nil
}

// FetchUsernames retrieves all registered usernames.
func (d *Directory) FetchUsernames(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	retVal := make([]string, 0, len(d.users))
	for usr := range d.users {
		retVal = append(retVal, usr)
	}
	return retVal, nil
}

// UserExists tells whether username is a registered user.
func (d *Directory) UserExists(_ context.Context, username string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[username]
	return ok, nil
}

// UserDisplayName returns username directory display name.
func (d *Directory) UserDisplayName(_ context.Context, username string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dn, ok := d.users[username]
	if !ok {
		return "", directory.ErrUserNotFound
	}
	return dn, nil
}

// CreateUser registers a new user along with its display name.
func (d *Directory) CreateUser(ctx context.Context, username, displayName string) error {
	d.mu.Lock()
	d.users[username] = displayName
	d.mu.Unlock()

	return d.runHook(ctx, event.UserCreated, &event.UserEventInfo{Username: username})
}

// DeleteUser unregisters a user and removes it from all groups.
func (d *Directory) DeleteUser(ctx context.Context, username string) error {
	d.mu.Lock()
	delete(d.users, username)
	for _, g := range d.groups {
		g.Members = removeUser(g.Members, username)
		g.Admins = removeUser(g.Admins, username)
	}
	d.mu.Unlock()

	return d.runHook(ctx, event.UserDeleted, &event.UserEventInfo{Username: username})
}

// CreateGroup registers a new group.
func (d *Directory) CreateGroup(ctx context.Context, name, description string, properties map[string]string) error {
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	d.mu.Lock()
	d.groups[name] = &groupmodel.Group{
		Name:        name,
		Description: description,
		Properties:  props,
	}
	d.mu.Unlock()

	return d.runHook(ctx, event.GroupCreated, &event.GroupEventInfo{GroupName: name})
}

// DeleteGroup unregisters a group.
func (d *Directory) DeleteGroup(ctx context.Context, name string) error {
	d.mu.Lock()
	g, ok := d.groups[name]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	deleted := cloneGroup(g)
	delete(d.groups, name)
	d.mu.Unlock()

	return d.runHook(ctx, event.GroupDeleted, &event.GroupEventInfo{
		GroupName: name,
		Group:     deleted,
	})
}

// SetGroupProperty updates a group configuration property.
func (d *Directory) SetGroupProperty(ctx context.Context, groupName, propName, propValue string) error {
	d.mu.Lock()
	g, ok := d.groups[groupName]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	original := g.Properties[propName]
	g.Properties[propName] = propValue
	d.mu.Unlock()

	return d.runHook(ctx, event.GroupModified, &event.GroupEventInfo{
		GroupName:     groupName,
		PropertyName:  propName,
		OriginalValue: original,
	})
}

// AddMember adds username to groupName member set.
func (d *Directory) AddMember(ctx context.Context, groupName, username string) error {
	if !d.addUserTo(groupName, username, false) {
		return nil
	}
	return d.runHook(ctx, event.GroupMemberAdded, &event.GroupEventInfo{
		GroupName: groupName,
		Username:  username,
	})
}

// RemoveMember removes username from groupName member set.
func (d *Directory) RemoveMember(ctx context.Context, groupName, username string) error {
	if !d.removeUserFrom(groupName, username, false) {
		return nil
	}
	return d.runHook(ctx, event.GroupMemberRemoved, &event.GroupEventInfo{
		GroupName: groupName,
		Username:  username,
	})
}

// AddAdmin adds username to groupName admin set.
func (d *Directory) AddAdmin(ctx context.Context, groupName, username string) error {
	if !d.addUserTo(groupName, username, true) {
		return nil
	}
	return d.runHook(ctx, event.GroupAdminAdded, &event.GroupEventInfo{
		GroupName: groupName,
		Username:  username,
	})
}

// RemoveAdmin removes username from groupName admin set.
func (d *Directory) RemoveAdmin(ctx context.Context, groupName, username string) error {
	if !d.removeUserFrom(groupName, username, true) {
		return nil
	}
	return d.runHook(ctx, event.GroupAdminRemoved, &event.GroupEventInfo{
		GroupName: groupName,
		Username:  username,
	})
}

func (d *Directory) addUserTo(groupName, username string, admin bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[groupName]
	if !ok {
		return false
	}
	if admin {
		if containsUser(g.Admins, username) {
			return false
		}
		g.Admins = append(g.Admins, username)
	} else {
		if containsUser(g.Members, username) {
			return false
		}
		g.Members = append(g.Members, username)
	}
	return true
}

func (d *Directory) removeUserFrom(groupName, username string, admin bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[groupName]
	if !ok {
		return false
	}
	if admin {
		if !containsUser(g.Admins, username) {
			return false
		}
		g.Admins = removeUser(g.Admins, username)
	} else {
		if !containsUser(g.Members, username) {
			return false
		}
		g.Members = removeUser(g.Members, username)
	}
	return true
}

func (d *Directory) runHook(ctx context.Context, hookName string, inf interface{}) error {
	if d.hk == nil {
		return nil
	}
	_, err := d.hk.Run(ctx, hookName, &hook.ExecutionContext{
		Info:   inf,
		Sender: d,
	})
	return err
}

func cloneGroup(g *groupmodel.Group) *groupmodel.Group {
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	cp.Admins = append([]string(nil), g.Admins...)
	cp.Properties = make(map[string]string, len(g.Properties))
	for k, v := range g.Properties {
		cp.Properties[k] = v
	}
	return &cp
}

func containsUser(ss []string, s string) bool {
	for _, s0 := range ss {
		if s0 == s {
			return true
		}
	}
	return false
}

func removeUser(ss []string, s string) []string {
	for i, s0 := range ss {
		if s0 != s {
			continue
		}
		return append(ss[:i], ss[i+1:]...)
	}
	return ss
}
