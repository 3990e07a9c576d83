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

package directory

import (
	"context"
	"errors"

	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
)

// ErrUserNotFound is returned by directory lookups referencing a non existing user.
var ErrUserNotFound = errors.New("directory: user not found")

// Directory defines directory group and user lookup operations.
type Directory interface {
	// FetchGroup retrieves a group given its name. If not found nil is returned.
	FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error)

	// FetchGroups retrieves all directory groups.
	FetchGroups(ctx context.Context) ([]groupmodel.Group, error)

	// FetchSharedGroups retrieves all groups configured with a roster display mode other than nobody.
	FetchSharedGroups(ctx context.Context) ([]groupmodel.Group, error)

	// FetchUserGroups retrieves all groups username belongs to, as member or admin.
	FetchUserGroups(ctx context.Context, username string) ([]groupmodel.Group, error)

	// FetchUsernames retrieves all registered usernames.
	FetchUsernames(ctx context.Context) ([]string, error)

	// UserExists tells whether username is a registered user.
	UserExists(ctx context.Context, username string) (bool, error)

	// UserDisplayName returns username directory display name.
	// ErrUserNotFound is returned if username is not registered.
	UserDisplayName(ctx context.Context, username string) (string, error)
}
