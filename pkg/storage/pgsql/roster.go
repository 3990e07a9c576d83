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

package pgsqlrepository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/storage/repository"
)

const (
	rosterItemsTableName    = "roster_items"
	rosterGroupsTableName   = "roster_groups"
	rosterVersionsTableName = "roster_versions"
)

type pgSQLRosterRep struct {
	conn conn
}

func (r *pgSQLRosterRep) CreateRosterItem(ctx context.Context, ri *rostermodel.Item) (*rostermodel.Item, error) {
	q := sq.Insert(rosterItemsTableName).
		Columns("username", "jid", "name", "subscription", "ask", "recv").
		Values(ri.Username, ri.JID, ri.Name, ri.Subscription, ri.Ask, ri.Recv).
		Suffix("ON CONFLICT (username, jid) DO NOTHING RETURNING id")

	var id int64
	err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&id)
	switch err {
	case nil:
		break
	case sql.ErrNoRows:
		return nil, repository.ErrAlreadyExists
	default:
		return nil, err
	}
	if err := r.insertGroups(ctx, id, ri.Groups); err != nil {
		return nil, err
	}
	retVal := ri.Clone()
	retVal.ID = id
	return retVal, nil
}

func (r *pgSQLRosterRep) UpdateRosterItem(ctx context.Context, ri *rostermodel.Item) error {
	q := sq.Update(rosterItemsTableName).
		Set("name", ri.Name).
		Set("subscription", ri.Subscription).
		Set("ask", ri.Ask).
		Set("recv", ri.Recv).
		Where(sq.And{sq.Eq{"username": ri.Username}, sq.Eq{"jid": ri.JID}})

	res, err := q.RunWith(r.conn).ExecContext(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	if _, err := sq.Delete(rosterGroupsTableName).
		Where(sq.Eq{"roster_id": ri.ID}).
		RunWith(r.conn).
		ExecContext(ctx); err != nil {
		return err
	}
	return r.insertGroups(ctx, ri.ID, ri.Groups)
}

func (r *pgSQLRosterRep) DeleteRosterItem(ctx context.Context, username string, id int64) error {
	if _, err := sq.Delete(rosterGroupsTableName).
		Where(sq.Eq{"roster_id": id}).
		RunWith(r.conn).
		ExecContext(ctx); err != nil {
		return err
	}
	_, err := sq.Delete(rosterItemsTableName).
		Where(sq.And{sq.Eq{"username": username}, sq.Eq{"id": id}}).
		RunWith(r.conn).
		ExecContext(ctx)
	return err
}

func (r *pgSQLRosterRep) DeleteRosterItems(ctx context.Context, username string) error {
	if _, err := sq.Delete(rosterGroupsTableName).
		Where(sq.Expr("roster_id IN (SELECT id FROM roster_items WHERE username = ?)", username)).
		RunWith(r.conn).
		ExecContext(ctx); err != nil {
		return err
	}
	_, err := sq.Delete(rosterItemsTableName).
		Where(sq.Eq{"username": username}).
		RunWith(r.conn).
		ExecContext(ctx)
	return err
}

func (r *pgSQLRosterRep) FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, error) {
	q := sq.Select("id", "username", "jid", "name", "subscription", "ask", "recv").
		From(rosterItemsTableName).
		Where(sq.Eq{"username": username}).
		OrderBy("id")

	rows, err := q.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []rostermodel.Item
	idx := make(map[int64]int)
	for rows.Next() {
		var ri rostermodel.Item
		if err := rows.Scan(&ri.ID, &ri.Username, &ri.JID, &ri.Name, &ri.Subscription, &ri.Ask, &ri.Recv); err != nil {
			return nil, err
		}
		idx[ri.ID] = len(items)
		items = append(items, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	gq := sq.Select("roster_id", `"group"`).
		From(rosterGroupsTableName).
		Where(sq.Expr("roster_id IN (SELECT id FROM roster_items WHERE username = ?)", username)).
		OrderBy("roster_id", "rank")

	gRows, err := gq.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gRows.Close() }()

	for gRows.Next() {
		var rosterID int64
		var group string
		if err := gRows.Scan(&rosterID, &group); err != nil {
			return nil, err
		}
		if i, ok := idx[rosterID]; ok {
			items[i].Groups = append(items[i].Groups, group)
		}
	}
	if err := gRows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *pgSQLRosterRep) CountRosterItems(ctx context.Context, username string) (int, error) {
	q := sq.Select("COUNT(*)").
		From(rosterItemsTableName).
		Where(sq.Eq{"username": username})

	var count int
	if err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *pgSQLRosterRep) FetchRosterUsernames(ctx context.Context, contactJID string) ([]string, error) {
	q := sq.Select("username").
		From(rosterItemsTableName).
		Where(sq.Eq{"jid": contactJID}).
		OrderBy("username")

	rows, err := q.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

func (r *pgSQLRosterRep) TouchRosterVersion(ctx context.Context, username string) (int, error) {
	q := sq.Insert(rosterVersionsTableName).
		Columns("username", "ver").
		Values(username, 1).
		Suffix("ON CONFLICT (username) DO UPDATE SET ver = roster_versions.ver + 1 RETURNING ver")

	var ver int
	if err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&ver); err != nil {
		return 0, err
	}
	return ver, nil
}

func (r *pgSQLRosterRep) FetchRosterVersion(ctx context.Context, username string) (int, error) {
	q := sq.Select("ver").
		From(rosterVersionsTableName).
		Where(sq.Eq{"username": username})

	var ver int
	err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&ver)
	switch err {
	case nil:
		return ver, nil
	case sql.ErrNoRows:
		return 0, nil
	default:
		return 0, err
	}
}

func (r *pgSQLRosterRep) insertGroups(ctx context.Context, rosterID int64, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	q := sq.Insert(rosterGroupsTableName).
		Columns("roster_id", "rank", `"group"`)
	for rank, group := range groups {
		q = q.Values(rosterID, rank, group)
	}
	_, err := q.RunWith(r.conn).ExecContext(ctx)
	return err
}
