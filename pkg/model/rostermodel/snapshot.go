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

import "github.com/vmihailenco/msgpack/v5"

// Snapshot carries the externally visible state of a user roster: the explicit
// item set plus the implicit FROM side index. It is the payload republished
// into the distributed cache after every visible roster mutation.
type Snapshot struct {
	// Username is the roster owner.
	Username string

	// Items contains the explicit roster items.
	Items []Item

	// ImplicitFrom maps contact bare addresses whose only relationship is an
	// only-shared FROM subscription to their invisible shared group names.
	ImplicitFrom map[string][]string
}

type snapshotData Snapshot

// MarshalBinary satisfies model.Codec interface.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*snapshotData)(s))
}

// UnmarshalBinary satisfies model.Codec interface.
func (s *Snapshot) UnmarshalBinary(b []byte) error {
	return msgpack.Unmarshal(b, (*snapshotData)(s))
}
