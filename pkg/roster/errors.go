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

import "errors"

var (
	// ErrContactNotFound is returned when operating over a contact address
	// that is not present in the roster.
	ErrContactNotFound = errors.New("roster: contact not found")

	// ErrSharedGroupViolation is returned when a mutation would fake or drop
	// membership in a directory managed shared group.
	ErrSharedGroupViolation = errors.New("roster: shared group violation")
)
