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

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/jackal-xmpp/runqueue/v2"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/skylark-im/skylark/pkg/cache"
	"github.com/skylark-im/skylark/pkg/cluster/locker"
	"github.com/skylark-im/skylark/pkg/directory"
	"github.com/skylark-im/skylark/pkg/event"
	"github.com/skylark-im/skylark/pkg/hook"
	"github.com/skylark-im/skylark/pkg/host"
	"github.com/skylark-im/skylark/pkg/log"
	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/router"
	"github.com/skylark-im/skylark/pkg/storage/repository"
	xmpputil "github.com/skylark-im/skylark/pkg/util/xmpp"
)

const rosterNamespace = "jabber:iq:roster"

const eventTimeout = time.Minute

// Config contains roster manager configuration.
type Config struct {
	// Versioning indicates whether roster pushes carry a roster version number.
	Versioning bool `fig:"versioning" default:"true"`
}

// BlockChecker tells whether presence broadcasting towards a contact is
// blocked by the owner active privacy rules.
type BlockChecker interface {
	IsBlocked(ctx context.Context, username string, contactJID *jid.JID) (bool, error)
}

type nopBlockChecker struct{}

func (nopBlockChecker) IsBlocked(_ context.Context, _ string, _ *jid.JID) (bool, error) {
	return false, nil
}

// Manager is the roster engine entry point: it owns the roster cache,
// implements the shared group visibility algorithm and reacts to directory
// lifecycle events by incrementally recomputing affected rosters.
type Manager struct {
	rep    repository.Roster
	dir    directory.Directory
	router router.Router
	hosts  *host.Hosts
	hk     *hook.Hooks
	cache  *Cache
	rq     *runqueue.RunQueue

	cfgMu sync.RWMutex
	cfg   Config

	blkMu sync.RWMutex
	blk   BlockChecker
}

// NewManager returns a new initialized roster manager.
func NewManager(
	cfg Config,
	rep repository.Roster,
	dir directory.Directory,
	store cache.Cache,
	lkr locker.Locker,
	rtr router.Router,
	hosts *host.Hosts,
	hk *hook.Hooks,
) *Manager {
	m := &Manager{
		cfg:    cfg,
		rep:    rep,
		dir:    dir,
		router: rtr,
		hosts:  hosts,
		hk:     hk,
		rq:     runqueue.New("roster.manager"),
		blk:    nopBlockChecker{},
	}
	m.cache = newCache(store, lkr, m)
	return m
}

// Start registers manager directory event handlers.
func (m *Manager) Start(_ context.Context) error {
	m.hk.AddHook(event.GroupDeleted, m.onGroupDeleted, hook.DefaultPriority)
	m.hk.AddHook(event.GroupModified, m.onGroupModified, hook.DefaultPriority)
	m.hk.AddHook(event.GroupMemberAdded, m.onMemberAdded, hook.DefaultPriority)
	m.hk.AddHook(event.GroupMemberRemoved, m.onMemberRemoved, hook.DefaultPriority)
	m.hk.AddHook(event.GroupAdminAdded, m.onMemberAdded, hook.DefaultPriority)
	m.hk.AddHook(event.GroupAdminRemoved, m.onMemberRemoved, hook.DefaultPriority)
	m.hk.AddHook(event.UserCreated, m.onUserCreated, hook.DefaultPriority)
	m.hk.AddHook(event.UserDeleted, m.onUserDeleted, hook.DefaultPriority)

	// republish runs last, after every interested subscriber observed the mutation
	m.hk.AddHook(event.RosterContactAdded, m.onRosterChanged, hook.LowestPriority)
	m.hk.AddHook(event.RosterContactUpdated, m.onRosterChanged, hook.LowestPriority)
	m.hk.AddHook(event.RosterContactDeleted, m.onRosterChanged, hook.LowestPriority)

	log.Infow("Started roster manager")
	return nil
}

// Stop unregisters manager directory event handlers and drains the pending
// event queue.
func (m *Manager) Stop(_ context.Context) error {
	m.hk.RemoveHook(event.GroupDeleted, m.onGroupDeleted)
	m.hk.RemoveHook(event.GroupModified, m.onGroupModified)
	m.hk.RemoveHook(event.GroupMemberAdded, m.onMemberAdded)
	m.hk.RemoveHook(event.GroupMemberRemoved, m.onMemberRemoved)
	m.hk.RemoveHook(event.GroupAdminAdded, m.onMemberAdded)
	m.hk.RemoveHook(event.GroupAdminRemoved, m.onMemberRemoved)
	m.hk.RemoveHook(event.UserCreated, m.onUserCreated)
	m.hk.RemoveHook(event.UserDeleted, m.onUserDeleted)
	m.hk.RemoveHook(event.RosterContactAdded, m.onRosterChanged)
	m.hk.RemoveHook(event.RosterContactUpdated, m.onRosterChanged)
	m.hk.RemoveHook(event.RosterContactDeleted, m.onRosterChanged)

	ch := make(chan struct{})
	m.rq.Stop(func() { close(ch) })
	<-ch

	log.Infow("Stopped roster manager")
	return nil
}

// GetRoster returns username roster, loading it on first access.
func (m *Manager) GetRoster(ctx context.Context, username string) (*Roster, error) {
	return m.cache.Get(ctx, username)
}

// UpdateConfig swaps manager configuration at runtime.
func (m *Manager) UpdateConfig(cfg Config) {
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
}

// SetBlockChecker installs the privacy rule collaborator consulted during
// presence broadcast.
func (m *Manager) SetBlockChecker(blk BlockChecker) {
	m.blkMu.Lock()
	m.blk = blk
	m.blkMu.Unlock()
}

func (m *Manager) config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

func (m *Manager) blockChecker() BlockChecker {
	m.blkMu.RLock()
	defer m.blkMu.RUnlock()
	return m.blk
}

func (m *Manager) onGroupDeleted(_ context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*event.GroupEventInfo)
	m.enqueue(func(ctx context.Context) error {
		return m.handleGroupDeleted(ctx, inf)
	}, "group", inf.GroupName)
	return nil
}

func (m *Manager) onGroupModified(_ context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*event.GroupEventInfo)
	m.enqueue(func(ctx context.Context) error {
		return m.handleGroupModified(ctx, inf)
	}, "group", inf.GroupName, "property", inf.PropertyName)
	return nil
}

func (m *Manager) onMemberAdded(_ context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*event.GroupEventInfo)
	m.enqueue(func(ctx context.Context) error {
		return m.handleMemberChange(ctx, inf, true)
	}, "group", inf.GroupName, "username", inf.Username)
	return nil
}

func (m *Manager) onMemberRemoved(_ context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*event.GroupEventInfo)
	m.enqueue(func(ctx context.Context) error {
		return m.handleMemberChange(ctx, inf, false)
	}, "group", inf.GroupName, "username", inf.Username)
	return nil
}

func (m *Manager) onUserCreated(_ context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*event.UserEventInfo)
	m.enqueue(func(ctx context.Context) error {
		return m.handleUserCreated(ctx, inf)
	}, "username", inf.Username)
	return nil
}

func (m *Manager) onUserDeleted(_ context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*event.UserEventInfo)
	m.enqueue(func(ctx context.Context) error {
		return m.handleUserDeleted(ctx, inf)
	}, "username", inf.Username)
	return nil
}

func (m *Manager) onRosterChanged(ctx context.Context, execCtx *hook.ExecutionContext) error {
	ros, ok := execCtx.Sender.(*Roster)
	if !ok {
		return nil
	}
	if err := m.cache.Put(ctx, ros); err != nil {
		log.Errorw("Failed to republish roster", "username", ros.Username(), "err", err)
	}
	return nil
}

// enqueue serializes directory event processing: handlers for a given
// deployment run one at a time, in arrival order, off the caller goroutine.
func (m *Manager) enqueue(fn func(ctx context.Context) error, logArgs ...interface{}) {
	m.rq.Run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Errorw("Failed to process directory event", append(logArgs, "err", err)...)
		}
	})
}

func (m *Manager) handleGroupDeleted(ctx context.Context, inf *event.GroupEventInfo) error {
	g := inf.Group
	if g == nil || !isSharedGroup(g) {
		return nil
	}
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		return err
	}
	for _, u := range affected {
		ros, err := m.GetRoster(ctx, u)
		if err != nil {
			log.Errorw("Failed to fetch user roster", "username", u, "err", err)
			continue
		}
		if err := ros.DeleteSharedGroup(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) handleGroupModified(ctx context.Context, inf *event.GroupEventInfo) error {
	g, err := m.dir.FetchGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	switch inf.PropertyName {
	case event.PropDisplayName:
		return m.pushGroupRename(ctx, g)

	case event.PropDisplayMode, event.PropAllowedGroups:
		oldG := g.Clone()
		oldG.Properties[inf.PropertyName] = inf.OriginalValue

		// remove under the old visibility, then re-add as if freshly joining
		if err := m.forEachAffected(ctx, oldG, func(ros *Roster) error {
			return ros.DeleteSharedGroup(ctx, oldG)
		}); err != nil {
			return err
		}
		return m.forEachAffected(ctx, g, func(ros *Roster) error {
			return ros.ProcessSharedGroup(ctx, g)
		})

	default:
		return nil
	}
}

// pushGroupRename re-pushes every roster item belonging to g shared group so
// clients pick up the new display tag. Subscription state is left untouched.
func (m *Manager) pushGroupRename(ctx context.Context, g *groupmodel.Group) error {
	if !isSharedGroup(g) {
		return nil
	}
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		return err
	}
	for _, u := range affected {
		ros, err := m.GetRoster(ctx, u)
		if err != nil {
			log.Errorw("Failed to fetch user roster", "username", u, "err", err)
			continue
		}
		for _, ri := range ros.Items() {
			if !ri.InSharedGroup(g.Name) {
				continue
			}
			m.pushItem(ctx, &ri)
		}
	}
	return nil
}

func (m *Manager) handleMemberChange(ctx context.Context, inf *event.GroupEventInfo, added bool) error {
	g, err := m.dir.FetchGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	if isSharedGroup(g) {
		return m.refreshUserPairs(ctx, g, inf.Username, added)
	}
	// the group itself is not roster-visible: membership still matters to
	// every restricted shared group allow-listing it
	groups, err := m.dir.FetchSharedGroups(ctx)
	if err != nil {
		return err
	}
	for i := range groups {
		g2 := &groups[i]
		if g2.DisplayMode() != groupmodel.DisplayOnlyGroup || !g2.AllowsGroup(g.Name) {
			continue
		}
		if err := m.refreshUserPairs(ctx, g2, inf.Username, added); err != nil {
			return err
		}
	}
	return nil
}

// refreshUserPairs re-derives the relationship between username and every
// user affected by g, in both directions.
func (m *Manager) refreshUserPairs(ctx context.Context, g *groupmodel.Group, username string, added bool) error {
	contacts, err := m.sharedUsersForRoster(ctx, g, username)
	if err != nil {
		return err
	}
	ros, err := m.GetRoster(ctx, username)
	if err != nil {
		log.Errorw("Failed to fetch user roster", "username", username, "err", err)
	} else {
		for _, c := range contacts {
			if c == username {
				continue
			}
			if err := m.refreshSharedUser(ctx, ros, c, added); err != nil {
				return err
			}
		}
	}
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		return err
	}
	for _, u := range affected {
		if u == username {
			continue
		}
		uros, err := m.GetRoster(ctx, u)
		if err != nil {
			log.Errorw("Failed to fetch user roster", "username", u, "err", err)
			continue
		}
		if err := m.refreshSharedUser(ctx, uros, username, added); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) refreshSharedUser(ctx context.Context, ros *Roster, contact string, added bool) error {
	if added {
		return ros.ProcessSharedUser(ctx, contact)
	}
	return ros.DeleteSharedUser(ctx, contact)
}

func (m *Manager) handleUserCreated(ctx context.Context, inf *event.UserEventInfo) error {
	groups, err := m.dir.FetchSharedGroups(ctx)
	if err != nil {
		return err
	}
	for i := range groups {
		g := &groups[i]
		if g.DisplayMode() != groupmodel.DisplayEverybody {
			continue
		}
		for _, u := range g.AllUsers() {
			if u == inf.Username {
				continue
			}
			ros, err := m.GetRoster(ctx, u)
			if err != nil {
				log.Errorw("Failed to fetch user roster", "username", u, "err", err)
				continue
			}
			// directory users are local; isLocalUser is the seam where a remote
			// member would get a subscription request instead of a direct write
			if err := ros.ProcessSharedUser(ctx, inf.Username); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) handleUserDeleted(ctx context.Context, inf *event.UserEventInfo) error {
	username := inf.Username
	contactJID := m.bareJIDString(username)

	usernames, err := m.rep.FetchRosterUsernames(ctx, contactJID)
	if err != nil {
		log.Errorw("Failed to fetch roster usernames", "jid", contactJID, "err", err)
	}
	for _, u := range usernames {
		ros, err := m.GetRoster(ctx, u)
		if err != nil {
			log.Errorw("Failed to fetch user roster", "username", u, "err", err)
			continue
		}
		if _, err := ros.DeleteRosterItem(ctx, contactJID, false, true); err != nil && !errors.Is(err, ErrContactNotFound) {
			return err
		}
	}
	groups, err := m.dir.FetchSharedGroups(ctx)
	if err != nil {
		return err
	}
	for i := range groups {
		if err := m.forEachAffected(ctx, &groups[i], func(ros *Roster) error {
			if ros.Username() == username {
				return nil
			}
			return ros.DeleteSharedUser(ctx, username)
		}); err != nil {
			return err
		}
	}
	// tear down the deleted user own roster
	ros, err := m.GetRoster(ctx, username)
	if err != nil {
		log.Errorw("Failed to fetch user roster", "username", username, "err", err)
	} else {
		sn := ros.snapshot()
		for _, ri := range sn.Items {
			if _, err := ros.DeleteRosterItem(ctx, ri.JID, false, false); err != nil && !errors.Is(err, ErrContactNotFound) {
				return err
			}
		}
		for jidStr := range sn.ImplicitFrom {
			if _, err := ros.DeleteRosterItem(ctx, jidStr, false, false); err != nil && !errors.Is(err, ErrContactNotFound) {
				return err
			}
		}
	}
	if err := m.rep.DeleteRosterItems(ctx, username); err != nil {
		log.Errorw("Failed to delete roster items", "username", username, "err", err)
	}
	return m.cache.Evict(ctx, username)
}

func (m *Manager) forEachAffected(ctx context.Context, g *groupmodel.Group, fn func(ros *Roster) error) error {
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		return err
	}
	for _, u := range affected {
		ros, err := m.GetRoster(ctx, u)
		if err != nil {
			log.Errorw("Failed to fetch user roster", "username", u, "err", err)
			continue
		}
		if err := fn(ros); err != nil {
			return err
		}
	}
	return nil
}

// pushItem broadcasts a roster update towards the owner active sessions.
func (m *Manager) pushItem(ctx context.Context, ri *rostermodel.Item) {
	ownerJID, err := jid.NewWithString(m.bareJIDString(ri.Username), true)
	if err != nil {
		log.Errorw("Failed to parse owner address", "username", ri.Username, "err", err)
		return
	}
	groups := append([]string(nil), ri.Groups...)
	for _, name := range ri.SharedGroups {
		g, err := m.dir.FetchGroup(ctx, name)
		if err != nil || g == nil {
			log.Warnw("Failed to resolve shared group", "group", name, "err", err)
			continue
		}
		groups = append(groups, g.DisplayName())
	}
	var ver int
	if m.config().Versioning {
		v, err := m.rep.TouchRosterVersion(ctx, ri.Username)
		if err != nil {
			log.Errorw("Failed to touch roster version", "username", ri.Username, "err", err)
		} else {
			ver = v
		}
	}
	qb := stravaganza.NewBuilder("query").
		WithAttribute(stravaganza.Namespace, rosterNamespace)
	if ver > 0 {
		qb.WithAttribute("ver", strconv.Itoa(ver))
	}
	qb.WithChild(encodeRosterItem(ri, groups))

	pushIQ := xmpputil.MakeSetIQ(ownerJID, ownerJID, qb.Build())
	if err := m.router.Route(ctx, pushIQ); err != nil {
		log.Warnw("Failed to route roster push", "username", ri.Username, "err", err)
	}
}

func (m *Manager) routePresence(ctx context.Context, username, contactJID, presenceType string) {
	fromJID, err := jid.NewWithString(m.bareJIDString(username), true)
	if err != nil {
		log.Errorw("Failed to parse owner address", "username", username, "err", err)
		return
	}
	toJID, err := jid.NewWithString(contactJID, true)
	if err != nil {
		log.Errorw("Failed to parse contact address", "jid", contactJID, "err", err)
		return
	}
	pr := xmpputil.MakePresence(fromJID, toJID, presenceType, nil)
	if err := m.router.Route(ctx, pr); err != nil {
		log.Warnw("Failed to route presence", "username", username, "jid", contactJID, "err", err)
	}
}

func (m *Manager) runRosterHook(ctx context.Context, hookName string, ros *Roster, inf *event.RosterEventInfo) (bool, error) {
	return m.hk.Run(ctx, hookName, &hook.ExecutionContext{
		Info:   inf,
		Sender: ros,
	})
}

// applyDefaultName lazily fills the contact display name from the directory
// whenever the owner gains visibility and no nickname was set.
func (m *Manager) applyDefaultName(ctx context.Context, ri *rostermodel.Item, contact string) {
	if len(ri.Name) > 0 {
		return
	}
	switch ri.Subscription {
	case rostermodel.To, rostermodel.Both:
	default:
		return
	}
	dn, err := m.dir.UserDisplayName(ctx, contact)
	if err != nil {
		if !errors.Is(err, directory.ErrUserNotFound) {
			log.Warnw("Failed to fetch user display name", "contact", contact, "err", err)
		}
		return
	}
	ri.Name = dn
}

// defaultContactName returns the directory display name associated to a
// contact address, or empty when not resolvable.
func (m *Manager) defaultContactName(ctx context.Context, contactJID string) string {
	j, err := jid.NewWithString(contactJID, true)
	if err != nil {
		return ""
	}
	dn, err := m.dir.UserDisplayName(ctx, j.Node())
	if err != nil {
		return ""
	}
	return dn
}

func (m *Manager) bareJIDString(username string) string {
	return username + "@" + m.hosts.DefaultHostName()
}

func (m *Manager) isLocalUser(ctx context.Context, contactJID string) bool {
	j, err := jid.NewWithString(contactJID, true)
	if err != nil {
		return false
	}
	if !m.hosts.IsLocalHost(j.Domain()) {
		return false
	}
	exists, err := m.dir.UserExists(ctx, j.Node())
	if err != nil {
		log.Warnw("Failed to check user existence", "username", j.Node(), "err", err)
		return false
	}
	return exists
}

func encodeRosterItem(ri *rostermodel.Item, displayGroups []string) stravaganza.Element {
	b := stravaganza.NewBuilder("item").
		WithAttribute("jid", ri.JID).
		WithAttribute("subscription", ri.Subscription)
	if len(ri.Name) > 0 {
		b.WithAttribute("name", ri.Name)
	}
	if ri.AskStatus() == rostermodel.AskSubscribe {
		b.WithAttribute("ask", "subscribe")
	}
	for _, group := range displayGroups {
		b.WithChild(stravaganza.NewBuilder("group").
			WithText(group).
			Build(),
		)
	}
	return b.Build()
}
