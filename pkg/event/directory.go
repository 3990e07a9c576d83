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

package event

import groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"

const (
	// GroupCreated hook runs whenever a directory group is created.
	GroupCreated = "directory.group.created"

	// GroupDeleted hook runs whenever a directory group is deleted.
	GroupDeleted = "directory.group.deleted"

	// GroupModified hook runs whenever a directory group property is modified.
	GroupModified = "directory.group.modified"

	// GroupMemberAdded hook runs whenever a member is added to a directory group.
	GroupMemberAdded = "directory.group.member.added"

	// GroupMemberRemoved hook runs whenever a member is removed from a directory group.
	GroupMemberRemoved = "directory.group.member.removed"

	// GroupAdminAdded hook runs whenever an admin is added to a directory group.
	GroupAdminAdded = "directory.group.admin.added"

	// GroupAdminRemoved hook runs whenever an admin is removed from a directory group.
	GroupAdminRemoved = "directory.group.admin.removed"

	// UserCreated hook runs whenever a user account is created.
	UserCreated = "directory.user.created"

	// UserDeleted hook runs whenever a user account is deleted.
	UserDeleted = "directory.user.deleted"
)

// Directory group shared-roster property names carried by GroupModified events.
const (
	// PropDisplayMode is the group roster display mode property name.
	PropDisplayMode = "sharedRoster.showInRoster"

	// PropDisplayName is the group roster display name property name.
	PropDisplayName = "sharedRoster.displayName"

	// PropAllowedGroups is the group roster allow-list property name.
	PropAllowedGroups = "sharedRoster.groupList"
)

// GroupEventInfo contains all information associated to a directory group event.
type GroupEventInfo struct {
	// GroupName is the name of the event group.
	GroupName string

	// Group is the event group state previous to the mutation.
	// Carried by GroupDeleted events, where the group is no longer
	// resolvable through the directory.
	Group *groupmodel.Group

	// Username is the affected member or admin username, when applicable.
	Username string

	// PropertyName is the name of the modified group property.
	PropertyName string

	// OriginalValue is the modified property value previous to the mutation.
	OriginalValue string
}

// UserEventInfo contains all information associated to a user lifecycle event.
type UserEventInfo struct {
	// Username is the name of the event user.
	Username string
}
