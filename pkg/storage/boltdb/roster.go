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
	"sort"

	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/storage/repository"
	bolt "go.etcd.io/bbolt"
)

const versionKey = "ver"

type boltDBRosterRep struct {
	db *bolt.DB
}

func (r *boltDBRosterRep) CreateRosterItem(ctx context.Context, ri *rostermodel.Item) (*rostermodel.Item, error) {
	retVal := ri.Clone()

	err := r.db.Update(func(tx *bolt.Tx) error {
		fetchOp := fetchKeyOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(ri.Username),
			key:    ri.JID,
			obj:    &rostermodel.Item{},
		}
		obj, err := fetchOp.do()
		if err != nil {
			return err
		}
		if obj != nil {
			return repository.ErrAlreadyExists
		}
		b, err := tx.CreateBucketIfNotExists([]byte(rosterItemsBucketKey(ri.Username)))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		retVal.ID = int64(seq)

		upOp := upsertKeyOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(ri.Username),
			key:    ri.JID,
			obj:    retVal,
		}
		if err := upOp.do(); err != nil {
			return err
		}
		// keep contact reverse index up to date
		cb, err := tx.CreateBucketIfNotExists([]byte(rosterContactsBucketKey(ri.JID)))
		if err != nil {
			return err
		}
		return cb.Put([]byte(ri.Username), nil)
	})
	if err != nil {
		return nil, err
	}
	return retVal, nil
}

func (r *boltDBRosterRep) UpdateRosterItem(_ context.Context, ri *rostermodel.Item) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		fetchOp := fetchKeyOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(ri.Username),
			key:    ri.JID,
			obj:    &rostermodel.Item{},
		}
		obj, err := fetchOp.do()
		if err != nil {
			return err
		}
		if obj == nil {
			return repository.ErrNotFound
		}
		upd := ri.Clone()
		upd.ID = obj.(*rostermodel.Item).ID

		op := upsertKeyOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(ri.Username),
			key:    ri.JID,
			obj:    upd,
		}
		return op.do()
	})
}

func (r *boltDBRosterRep) DeleteRosterItem(_ context.Context, username string, id int64) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		var contactJID string

		op := iterKeysOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(username),
			iterFn: func(_, b []byte) error {
				var itm rostermodel.Item
				if err := itm.UnmarshalBinary(b); err != nil {
					return err
				}
				if itm.ID == id {
					contactJID = itm.JID
				}
				return nil
			},
		}
		if err := op.do(); err != nil {
			return err
		}
		if len(contactJID) == 0 {
			return nil
		}
		delOp := delKeyOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(username),
			key:    contactJID,
		}
		if err := delOp.do(); err != nil {
			return err
		}
		revOp := delKeyOp{
			tx:     tx,
			bucket: rosterContactsBucketKey(contactJID),
			key:    username,
		}
		return revOp.do()
	})
}

func (r *boltDBRosterRep) DeleteRosterItems(_ context.Context, username string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		var contactJIDs []string

		op := iterKeysOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(username),
			iterFn: func(k, _ []byte) error {
				contactJIDs = append(contactJIDs, string(k))
				return nil
			},
		}
		if err := op.do(); err != nil {
			return err
		}
		for _, contactJID := range contactJIDs {
			revOp := delKeyOp{
				tx:     tx,
				bucket: rosterContactsBucketKey(contactJID),
				key:    username,
			}
			if err := revOp.do(); err != nil {
				return err
			}
		}
		delOp := delBucketOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(username),
		}
		return delOp.do()
	})
}

func (r *boltDBRosterRep) FetchRosterItems(_ context.Context, username string) ([]rostermodel.Item, error) {
	var retVal []rostermodel.Item

	err := r.db.View(func(tx *bolt.Tx) error {
		op := iterKeysOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(username),
			iterFn: func(_, b []byte) error {
				var itm rostermodel.Item
				if err := itm.UnmarshalBinary(b); err != nil {
					return err
				}
				retVal = append(retVal, itm)
				return nil
			},
		}
		return op.do()
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(retVal, func(i, j int) bool { return retVal[i].ID < retVal[j].ID })
	return retVal, nil
}

func (r *boltDBRosterRep) CountRosterItems(_ context.Context, username string) (int, error) {
	var retVal int

	err := r.db.View(func(tx *bolt.Tx) error {
		op := countKeysOp{
			tx:     tx,
			bucket: rosterItemsBucketKey(username),
		}
		count, err := op.do()
		if err != nil {
			return err
		}
		retVal = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return retVal, nil
}

func (r *boltDBRosterRep) FetchRosterUsernames(_ context.Context, contactJID string) ([]string, error) {
	var retVal []string

	err := r.db.View(func(tx *bolt.Tx) error {
		op := iterKeysOp{
			tx:     tx,
			bucket: rosterContactsBucketKey(contactJID),
			iterFn: func(k, _ []byte) error {
				retVal = append(retVal, string(k))
				return nil
			},
		}
		return op.do()
	})
	if err != nil {
		return nil, err
	}
	return retVal, nil
}

func (r *boltDBRosterRep) TouchRosterVersion(_ context.Context, username string) (int, error) {
	var retVal int

	err := r.db.Update(func(tx *bolt.Tx) error {
		var ver *rostermodel.Version

		fetchOp := fetchKeyOp{
			tx:     tx,
			bucket: rosterVersionBucketKey(username),
			key:    versionKey,
			obj:    &rostermodel.Version{},
		}
		obj, err := fetchOp.do()
		if err != nil {
			return err
		}
		switch {
		case obj != nil:
			ver = obj.(*rostermodel.Version)
			ver.Version++
		default:
			ver = &rostermodel.Version{Version: 1}
		}
		upOp := upsertKeyOp{
			tx:     tx,
			bucket: rosterVersionBucketKey(username),
			key:    versionKey,
			obj:    ver,
		}
		if err := upOp.do(); err != nil {
			return err
		}
		retVal = ver.Version
		return nil
	})
	if err != nil {
		return 0, err
	}
	return retVal, nil
}

func (r *boltDBRosterRep) FetchRosterVersion(_ context.Context, username string) (int, error) {
	var retVal int

	err := r.db.View(func(tx *bolt.Tx) error {
		op := fetchKeyOp{
			tx:     tx,
			bucket: rosterVersionBucketKey(username),
			key:    versionKey,
			obj:    &rostermodel.Version{},
		}
		obj, err := op.do()
		if err != nil {
			return err
		}
		if obj != nil {
			retVal = obj.(*rostermodel.Version).Version
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return retVal, nil
}

func rosterItemsBucketKey(username string) string {
	return fmt.Sprintf("roster:items:%s", username)
}

func rosterVersionBucketKey(username string) string {
	return fmt.Sprintf("roster:ver:%s", username)
}

func rosterContactsBucketKey(contactJID string) string {
	return fmt.Sprintf("roster:contacts:%s", contactJID)
}
