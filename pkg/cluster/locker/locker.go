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

package locker

import "context"

// Lock defines a previously acquired lock resource.
type Lock interface {
	// Release releases the lock.
	Release(ctx context.Context) error
}

// Locker defines cluster-wide per-key locker interface.
type Locker interface {
	// AcquireLock acquires and returns the lock identified by lockID.
	AcquireLock(ctx context.Context, lockID string) (Lock, error)

	// Start starts locker component.
	Start(ctx context.Context) error

	// Stop stops locker component.
	Stop(ctx context.Context) error
}

type nopLock struct{}

func (l *nopLock) Release(_ context.Context) error { return nil }

type nopLocker struct{}

// NewNop returns a no-op locker, suited for single node deployments.
func NewNop() Locker { return &nopLocker{} }

func (l *nopLocker) AcquireLock(_ context.Context, _ string) (Lock, error) { return &nopLock{}, nil }
func (l *nopLocker) Start(_ context.Context) error                         { return nil }
func (l *nopLocker) Stop(_ context.Context) error                          { return nil }
