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

package repository

import (
	"context"
	"errors"

	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
)

// ErrAlreadyExists is returned when creating a roster item that is already persisted.
var ErrAlreadyExists = errors.New("repository: roster item already exists")

// ErrNotFound is returned when updating or deleting a non persisted roster item.
var ErrNotFound = errors.New("repository: roster item not found")

// Roster defines user roster repository operations.
type Roster interface {
	// CreateRosterItem inserts a new roster item entity into repository,
	// returning the item along with its assigned persistence identifier.
	// ErrAlreadyExists is returned if an item for the same owner and contact
	// address is already persisted.
	CreateRosterItem(ctx context.Context, ri *rostermodel.Item) (*rostermodel.Item, error)

	// UpdateRosterItem updates a previously persisted roster item entity.
	// ErrNotFound is returned if the item is not persisted.
	UpdateRosterItem(ctx context.Context, ri *rostermodel.Item) error

	// DeleteRosterItem deletes a roster item entity given its persistence identifier.
	DeleteRosterItem(ctx context.Context, username string, id int64) error

	// DeleteRosterItems deletes all user roster items.
	DeleteRosterItems(ctx context.Context, username string) error

	// FetchRosterItems fetches all roster item entities associated to a given user.
	FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, error)

	// CountRosterItems returns the number of roster items associated to a given user.
	CountRosterItems(ctx context.Context, username string) (int, error)

	// FetchRosterUsernames returns the usernames of all users holding
	// contactJID in their persisted roster.
	FetchRosterUsernames(ctx context.Context, contactJID string) ([]string, error)

	// TouchRosterVersion increments and returns user roster version.
	TouchRosterVersion(ctx context.Context, username string) (int, error)

	// FetchRosterVersion fetches user roster version.
	FetchRosterVersion(ctx context.Context, username string) (int, error)
}

// Repository represents a roster repository providing storage lifecycle operations.
type Repository interface {
	Roster

	// Start starts repository component.
	Start(ctx context.Context) error

	// Stop stops repository component.
	Stop(ctx context.Context) error
}
