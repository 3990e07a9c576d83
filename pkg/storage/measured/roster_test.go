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
	"testing"

	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/stretchr/testify/require"
)

type rosterRepMock struct {
	calls map[string]int
}

func newRosterRepMock() *rosterRepMock {
	return &rosterRepMock{calls: make(map[string]int)}
}

func (m *rosterRepMock) CreateRosterItem(_ context.Context, ri *rostermodel.Item) (*rostermodel.Item, error) {
	m.calls["CreateRosterItem"]++
	return ri, nil
}

func (m *rosterRepMock) UpdateRosterItem(_ context.Context, _ *rostermodel.Item) error {
	m.calls["UpdateRosterItem"]++
	return nil
}

func (m *rosterRepMock) DeleteRosterItem(_ context.Context, _ string, _ int64) error {
	m.calls["DeleteRosterItem"]++
	return nil
}

func (m *rosterRepMock) DeleteRosterItems(_ context.Context, _ string) error {
	m.calls["DeleteRosterItems"]++
	return nil
}

func (m *rosterRepMock) FetchRosterItems(_ context.Context, _ string) ([]rostermodel.Item, error) {
	m.calls["FetchRosterItems"]++
	return nil, nil
}

func (m *rosterRepMock) CountRosterItems(_ context.Context, _ string) (int, error) {
	m.calls["CountRosterItems"]++
	return 0, nil
}

func (m *rosterRepMock) FetchRosterUsernames(_ context.Context, _ string) ([]string, error) {
	m.calls["FetchRosterUsernames"]++
	return nil, nil
}

func (m *rosterRepMock) TouchRosterVersion(_ context.Context, _ string) (int, error) {
	m.calls["TouchRosterVersion"]++
	return 1, nil
}

func (m *rosterRepMock) FetchRosterVersion(_ context.Context, _ string) (int, error) {
	m.calls["FetchRosterVersion"]++
	return 1, nil
}

func TestMeasuredRosterRep_Delegation(t *testing.T) {
	// given
	repMock := newRosterRepMock()
	m := &measuredRosterRep{rep: repMock}

	// when
	_, _ = m.CreateRosterItem(context.Background(), &rostermodel.Item{Username: "ortuman", JID: "noelia@skylark.im"})
	_ = m.UpdateRosterItem(context.Background(), &rostermodel.Item{Username: "ortuman", JID: "noelia@skylark.im"})
	_ = m.DeleteRosterItem(context.Background(), "ortuman", 1)
	_ = m.DeleteRosterItems(context.Background(), "ortuman")
	_, _ = m.FetchRosterItems(context.Background(), "ortuman")
	_, _ = m.CountRosterItems(context.Background(), "ortuman")
	_, _ = m.FetchRosterUsernames(context.Background(), "noelia@skylark.im")
	_, _ = m.TouchRosterVersion(context.Background(), "ortuman")
	_, _ = m.FetchRosterVersion(context.Background(), "ortuman")

	// then
	for _, op := range []string{
		"CreateRosterItem", "UpdateRosterItem", "DeleteRosterItem",
		"DeleteRosterItems", "FetchRosterItems", "CountRosterItems",
		"FetchRosterUsernames", "TouchRosterVersion", "FetchRosterVersion",
	} {
		require.Equal(t, 1, repMock.calls[op], op)
	}
}
