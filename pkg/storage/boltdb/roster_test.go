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

package boltdb

import (
	"context"
	"fmt"
	"os"
	"testing"

	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/storage/repository"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestBoltDB_CreateRosterItem(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	ri, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username:     "ortuman",
		JID:          "noelia@skylark.im",
		Name:         "Noelia",
		Subscription: rostermodel.To,
		Groups:       []string{"VIP"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), ri.ID)

	_, err = rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "noelia@skylark.im",
	})
	require.Equal(t, repository.ErrAlreadyExists, err)

	ri2, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "romeo@skylark.im",
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), ri2.ID)
}

func TestBoltDB_UpdateRosterItem(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	err := rep.UpdateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "noelia@skylark.im",
	})
	require.Equal(t, repository.ErrNotFound, err)

	ri, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username:     "ortuman",
		JID:          "noelia@skylark.im",
		Subscription: rostermodel.None,
	})
	require.NoError(t, err)

	err = rep.UpdateRosterItem(context.Background(), &rostermodel.Item{
		Username:     "ortuman",
		JID:          "noelia@skylark.im",
		Name:         "Noelia",
		Subscription: rostermodel.Both,
		Groups:       []string{"Buddies"},
	})
	require.NoError(t, err)

	items, err := rep.FetchRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Len(t, items, 1)

	// identifier is preserved across updates
	require.Equal(t, ri.ID, items[0].ID)
	require.Equal(t, "Noelia", items[0].Name)
	require.Equal(t, rostermodel.Both, items[0].Subscription)
	require.Equal(t, []string{"Buddies"}, items[0].Groups)
}

func TestBoltDB_FetchRosterItems(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	_, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "romeo@skylark.im",
	})
	require.NoError(t, err)

	_, err = rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "noelia@skylark.im",
	})
	require.NoError(t, err)

	items, err := rep.FetchRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// insertion order, not lexicographical
	require.Equal(t, "romeo@skylark.im", items[0].JID)
	require.Equal(t, "noelia@skylark.im", items[1].JID)

	count, err := rep.CountRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestBoltDB_DeleteRosterItem(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	ri, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "noelia@skylark.im",
	})
	require.NoError(t, err)

	err = rep.DeleteRosterItem(context.Background(), "ortuman", ri.ID)
	require.NoError(t, err)

	count, err := rep.CountRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	usernames, err := rep.FetchRosterUsernames(context.Background(), "noelia@skylark.im")
	require.NoError(t, err)
	require.Empty(t, usernames)

	// deleting an unknown identifier is a no-op
	err = rep.DeleteRosterItem(context.Background(), "ortuman", 1234)
	require.NoError(t, err)
}

func TestBoltDB_DeleteRosterItems(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	_, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "ortuman",
		JID:      "noelia@skylark.im",
	})
	require.NoError(t, err)

	_, err = rep.CreateRosterItem(context.Background(), &rostermodel.Item{
		Username: "romeo",
		JID:      "noelia@skylark.im",
	})
	require.NoError(t, err)

	err = rep.DeleteRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)

	count, err := rep.CountRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	usernames, err := rep.FetchRosterUsernames(context.Background(), "noelia@skylark.im")
	require.NoError(t, err)
	require.Equal(t, []string{"romeo"}, usernames)
}

func TestBoltDB_FetchRosterUsernames(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	for _, username := range []string{"romeo", "ortuman"} {
		_, err := rep.CreateRosterItem(context.Background(), &rostermodel.Item{
			Username: username,
			JID:      "noelia@skylark.im",
		})
		require.NoError(t, err)
	}
	usernames, err := rep.FetchRosterUsernames(context.Background(), "noelia@skylark.im")
	require.NoError(t, err)
	require.Equal(t, []string{"ortuman", "romeo"}, usernames)
}

func TestBoltDB_TouchAndFetchRosterVersion(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	t.Cleanup(func() { cleanUp(db) })

	rep := boltDBRosterRep{db: db}

	ver, err := rep.FetchRosterVersion(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 0, ver)

	ver, err = rep.TouchRosterVersion(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 1, ver)

	ver, err = rep.TouchRosterVersion(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 2, ver)

	ver, err = rep.FetchRosterVersion(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Equal(t, 2, ver)
}

func setupDB(t *testing.T) *bolt.DB {
	t.Helper()

	dbPath := fmt.Sprintf("%s/test.db", t.TempDir())
	db, err := bolt.Open(dbPath, 0666, nil)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func cleanUp(db *bolt.DB) {
	dbPath := db.Path()
	_ = db.Close()
	_ = os.RemoveAll(dbPath)
}
