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

// Version represents a user roster version entity.
type Version struct {
	// Version is the roster monotonically increasing version value.
	Version int
}

type versionData Version

// MarshalBinary satisfies model.Codec interface.
func (v *Version) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*versionData)(v))
}

// UnmarshalBinary satisfies model.Codec interface.
func (v *Version) UnmarshalBinary(b []byte) error {
	return msgpack.Unmarshal(b, (*versionData)(v))
}
