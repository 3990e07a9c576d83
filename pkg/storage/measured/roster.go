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

package measuredrepository

import (
	"context"
	"time"

	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/storage/repository"
)

type measuredRosterRep struct {
	rep repository.Roster
}

func (m *measuredRosterRep) CreateRosterItem(ctx context.Context, ri *rostermodel.Item) (*rostermodel.Item, error) {
	t0 := time.Now()
	item, err := m.rep.CreateRosterItem(ctx, ri)
	reportOpMetric(createOp, time.Since(t0).Seconds(), err == nil)
	return item, err
}

func (m *measuredRosterRep) UpdateRosterItem(ctx context.Context, ri *rostermodel.Item) error {
	t0 := time.Now()
	err := m.rep.UpdateRosterItem(ctx, ri)
	reportOpMetric(updateOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredRosterRep) DeleteRosterItem(ctx context.Context, username string, id int64) error {
	t0 := time.Now()
	err := m.rep.DeleteRosterItem(ctx, username, id)
	reportOpMetric(deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredRosterRep) DeleteRosterItems(ctx context.Context, username string) error {
	t0 := time.Now()
	err := m.rep.DeleteRosterItems(ctx, username)
	reportOpMetric(deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredRosterRep) FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, error) {
	t0 := time.Now()
	items, err := m.rep.FetchRosterItems(ctx, username)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return items, err
}

func (m *measuredRosterRep) CountRosterItems(ctx context.Context, username string) (int, error) {
	t0 := time.Now()
	count, err := m.rep.CountRosterItems(ctx, username)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return count, err
}

func (m *measuredRosterRep) FetchRosterUsernames(ctx context.Context, contactJID string) ([]string, error) {
	t0 := time.Now()
	usernames, err := m.rep.FetchRosterUsernames(ctx, contactJID)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return usernames, err
}

func (m *measuredRosterRep) TouchRosterVersion(ctx context.Context, username string) (int, error) {
	t0 := time.Now()
	ver, err := m.rep.TouchRosterVersion(ctx, username)
	reportOpMetric(updateOp, time.Since(t0).Seconds(), err == nil)
	return ver, err
}

func (m *measuredRosterRep) FetchRosterVersion(ctx context.Context, username string) (int, error) {
	t0 := time.Now()
	ver, err := m.rep.FetchRosterVersion(ctx, username)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return ver, err
}
