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

package rostermodel

import (
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/vmihailenco/msgpack/v5"
)

// roster item subscription values
const (
	None   = "none"
	To     = "to"
	From   = "from"
	Both   = "both"
	Remove = "remove"
)

// roster item ask values
const (
	AskNone        = ""
	AskSubscribe   = "subscribe"
	AskUnsubscribe = "unsubscribe"
)

// roster item recv values
const (
	RecvNone        = ""
	RecvSubscribe   = "subscribe"
	RecvUnsubscribe = "unsubscribe"
)

// Item represents a roster item entity.
type Item struct {
	// ID is the item persistence identifier. A zero value means the
	// item is transient and exists only because of shared group membership.
	ID int64

	// Username is the item roster owner.
	Username string

	// JID is the contact bare address.
	JID string

	// Name is the contact display name.
	Name string

	// Subscription is the presence subscription state between owner and contact.
	Subscription string

	// Ask is the outstanding outbound subscription request state.
	Ask string

	// Recv is the inbound subscription request state not yet surfaced to the user.
	Recv string

	// Groups contains the item personal group tags.
	Groups []string

	// SharedGroups contains the names of the shared groups the item belongs to.
	SharedGroups []string

	// InvisibleSharedGroups contains shared group names that explain the item
	// existence but are never surfaced as display groups.
	InvisibleSharedGroups []string
}

// ContactJID parses and returns roster item contact JID.
func (ri *Item) ContactJID() *jid.JID {
	j, _ := jid.NewWithString(ri.JID, true)
	return j
}

// IsTransient tells whether the item lacks persistence identity.
func (ri *Item) IsTransient() bool { return ri.ID == 0 }

// IsShared tells whether the item belongs to at least one shared group.
func (ri *Item) IsShared() bool {
	return len(ri.SharedGroups) > 0 || len(ri.InvisibleSharedGroups) > 0
}

// IsOnlyShared tells whether the item exists solely because of shared group
// membership, with no personal roster relationship.
func (ri *Item) IsOnlyShared() bool {
	return ri.IsShared() && len(ri.Groups) == 0
}

// AskStatus returns the item ask state. Shared items never expose a pending ask.
func (ri *Item) AskStatus() string {
	if ri.IsShared() {
		return AskNone
	}
	return ri.Ask
}

// InSharedGroup tells whether name is contained in the item shared group set.
func (ri *Item) InSharedGroup(name string) bool {
	return contains(ri.SharedGroups, name)
}

// InInvisibleSharedGroup tells whether name is contained in the item invisible shared group set.
func (ri *Item) InInvisibleSharedGroup(name string) bool {
	return contains(ri.InvisibleSharedGroups, name)
}

// AddSharedGroup adds name to the item shared group set.
// A previous invisible entry for the same group is promoted.
func (ri *Item) AddSharedGroup(name string) {
	ri.RemoveInvisibleSharedGroup(name)
	if contains(ri.SharedGroups, name) {
		return
	}
	ri.SharedGroups = append(ri.SharedGroups, name)
}

// RemoveSharedGroup removes name from the item shared group set.
func (ri *Item) RemoveSharedGroup(name string) {
	ri.SharedGroups = remove(ri.SharedGroups, name)
}

// AddInvisibleSharedGroup adds name to the item invisible shared group set.
func (ri *Item) AddInvisibleSharedGroup(name string) {
	if contains(ri.InvisibleSharedGroups, name) {
		return
	}
	ri.InvisibleSharedGroups = append(ri.InvisibleSharedGroups, name)
}

// RemoveInvisibleSharedGroup removes name from the item invisible shared group set.
func (ri *Item) RemoveInvisibleSharedGroup(name string) {
	ri.InvisibleSharedGroups = remove(ri.InvisibleSharedGroups, name)
}

// InGroup tells whether name is contained in the item personal group list.
func (ri *Item) InGroup(name string) bool {
	return contains(ri.Groups, name)
}

// Clone returns a deep copy of the item.
func (ri *Item) Clone() *Item {
	cp := *ri
	cp.Groups = append([]string(nil), ri.Groups...)
	cp.SharedGroups = append([]string(nil), ri.SharedGroups...)
	cp.InvisibleSharedGroups = append([]string(nil), ri.InvisibleSharedGroups...)
	return &cp
}

type itemData Item

// MarshalBinary satisfies model.Codec interface.
func (ri *Item) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*itemData)(ri))
}

// UnmarshalBinary satisfies model.Codec interface.
func (ri *Item) UnmarshalBinary(b []byte) error {
	return msgpack.Unmarshal(b, (*itemData)(ri))
}

func contains(ss []string, s string) bool {
	for _, s0 := range ss {
		if s0 == s {
			return true
		}
	}
	return false
}

func remove(ss []string, s string) []string {
	for i, s0 := range ss {
		if s0 != s {
			continue
		}
		return append(ss[:i], ss[i+1:]...)
	}
	return ss
}
