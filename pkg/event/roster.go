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

import rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"

const (
	// RosterLoaded hook runs whenever a user roster is loaded from storage.
	RosterLoaded = "roster.loaded"

	// RosterAddingContact hook runs before a contact is added to a user roster.
	// Halting execution vetoes contact persistence.
	RosterAddingContact = "roster.contact.adding"

	// RosterContactAdded hook runs whenever a contact is added to a user roster.
	RosterContactAdded = "roster.contact.added"

	// RosterContactUpdated hook runs whenever a roster contact is updated.
	RosterContactUpdated = "roster.contact.updated"

	// RosterContactDeleted hook runs whenever a contact is deleted from a user roster.
	RosterContactDeleted = "roster.contact.deleted"
)

// RosterEventInfo contains all information associated to a roster event.
type RosterEventInfo struct {
	// Username is the name of the roster owner.
	Username string

	// JID is the event contact JID.
	JID string

	// Subscription is the roster event subscription value.
	Subscription string

	// Item is the event associated roster item.
	Item *rostermodel.Item
}
