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

package etcdlocker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocker_LockPath(t *testing.T) {
	// given
	lkr := New(nil, Config{KeyPrefix: "/im/lock/"}).(*etcdLocker)

	// then
	require.Equal(t, "/im/lock/rst:roster:ortuman", lkr.lockPath("rst:roster:ortuman"))
}

func TestLocker_DefaultKeyPrefix(t *testing.T) {
	// given
	lkr := New(nil, Config{}).(*etcdLocker)

	// then
	require.Equal(t, defaultKeyPrefix+"/k0", lkr.lockPath("k0"))
}

func TestLocker_AcquireBeforeStart(t *testing.T) {
	// given
	lkr := New(nil, Config{})

	// when
	lock, err := lkr.AcquireLock(context.Background(), "k0")

	// then
	require.Nil(t, lock)
	require.ErrorIs(t, err, errNotStarted)
}

func TestLocker_StopNeverStarted(t *testing.T) {
	// given
	lkr := New(nil, Config{})

	// then
	require.NoError(t, lkr.Stop(context.Background()))
}
