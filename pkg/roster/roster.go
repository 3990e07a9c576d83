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
	"sort"
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/skylark-im/skylark/pkg/directory"
	"github.com/skylark-im/skylark/pkg/event"
	"github.com/skylark-im/skylark/pkg/log"
	groupmodel "github.com/skylark-im/skylark/pkg/model/groupmodel"
	rostermodel "github.com/skylark-im/skylark/pkg/model/rostermodel"
	"github.com/skylark-im/skylark/pkg/storage/repository"
	xmpputil "github.com/skylark-im/skylark/pkg/util/xmpp"
)

// Roster represents a single user contact list, holding both personal items
// and items synthesized from shared group configuration.
//
// Contacts whose only relationship is an only-shared FROM subscription are
// kept in a side index instead of the explicit item map, and reconstructed
// into a transient item on lookup.
type Roster struct {
	username string
	m        *Manager

	mu           sync.RWMutex
	explicit     map[string]*rostermodel.Item
	implicitFrom map[string]map[string]struct{}
}

func newRoster(username string, m *Manager) *Roster {
	return &Roster{
		username:     username,
		m:            m,
		explicit:     make(map[string]*rostermodel.Item),
		implicitFrom: make(map[string]map[string]struct{}),
	}
}

// Username returns roster owner username.
func (r *Roster) Username() string { return r.username }

// Items returns all explicit roster items ordered by contact address.
func (r *Roster) Items() []rostermodel.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]rostermodel.Item, 0, len(r.explicit))
	for _, ri := range r.explicit {
		items = append(items, *ri.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JID < items[j].JID })
	return items
}

// IsRosterItem tells whether contactJID is present in the roster, either as
// an explicit item or through the implicit FROM index.
func (r *Roster) IsRosterItem(contactJID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.explicit[contactJID]; ok {
		return true
	}
	_, ok := r.implicitFrom[contactJID]
	return ok
}

// RosterItem returns the roster item associated to contactJID.
// Implicit FROM contacts are returned as transient items.
// ErrContactNotFound is returned if the contact is not present.
func (r *Roster) RosterItem(contactJID string) (*rostermodel.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ri, ok := r.explicit[contactJID]; ok {
		return ri.Clone(), nil
	}
	if gs, ok := r.implicitFrom[contactJID]; ok {
		return r.implicitItem(contactJID, gs), nil
	}
	return nil, ErrContactNotFound
}

// CreateRosterItem adds a new personal contact to the roster.
// Duplicate detection is left to the repository layer; callers wanting
// create-or-update semantics should probe with RosterItem first.
// ErrSharedGroupViolation is returned if any requested personal group name
// collides with the display name of a shared group.
func (r *Roster) CreateRosterItem(ctx context.Context, contactJID, name string, groups []string, push bool) (*rostermodel.Item, error) {
	if err := r.m.checkSharedGroupNames(ctx, groups); err != nil {
		return nil, err
	}
	ri := &rostermodel.Item{
		Username:     r.username,
		JID:          contactJID,
		Name:         name,
		Subscription: rostermodel.None,
		Ask:          rostermodel.AskNone,
		Groups:       append([]string(nil), groups...),
	}
	halted, err := r.m.runRosterHook(ctx, event.RosterAddingContact, r, &event.RosterEventInfo{
		Username:     r.username,
		JID:          contactJID,
		Subscription: ri.Subscription,
		Item:         ri,
	})
	if err != nil {
		return nil, err
	}
	if !halted {
		created, err := r.m.rep.CreateRosterItem(ctx, ri)
		switch {
		case err == nil:
			ri = created
		case errors.Is(err, repository.ErrAlreadyExists):
			return nil, err
		default:
			log.Errorw("Failed to persist roster item", "username", r.username, "jid", contactJID, "err", err)
		}
	}
	r.mu.Lock()
	delete(r.implicitFrom, ri.JID)
	r.explicit[ri.JID] = ri
	r.mu.Unlock()

	if push {
		r.m.pushItem(ctx, ri)
	}
	_, _ = r.m.runRosterHook(ctx, event.RosterContactAdded, r, &event.RosterEventInfo{
		Username:     r.username,
		JID:          ri.JID,
		Subscription: ri.Subscription,
		Item:         ri,
	})
	return ri.Clone(), nil
}

// UpdateRosterItem updates a roster contact, promoting an implicit FROM entry
// to explicit when needed. ErrContactNotFound is returned if the contact is
// absent and the updated subscription is not none. Personal group names are
// guarded against shared group display names the same way CreateRosterItem
// guards them, returning ErrSharedGroupViolation on collision.
func (r *Roster) UpdateRosterItem(ctx context.Context, ri *rostermodel.Item, push bool) error {
	if err := r.m.checkSharedGroupNames(ctx, ri.Groups); err != nil {
		return err
	}
	r.mu.RLock()
	existing := r.explicit[ri.JID]
	impGs, wasImplicit := r.implicitFrom[ri.JID]
	r.mu.RUnlock()

	if existing == nil && !wasImplicit && ri.Subscription != rostermodel.None {
		return ErrContactNotFound
	}
	upd := ri.Clone()
	upd.Username = r.username
	if existing != nil && upd.ID == 0 {
		upd.ID = existing.ID
	}
	if existing == nil && wasImplicit {
		for name := range impGs {
			if !upd.InSharedGroup(name) {
				upd.AddInvisibleSharedGroup(name)
			}
		}
	}
	switch {
	case upd.IsTransient() && upd.IsShared():
		// shared-only items are persisted only when renamed away from the
		// directory default; recomputed membership alone is not new information
		if len(upd.Name) > 0 && upd.Name != r.m.defaultContactName(ctx, upd.JID) {
			created, err := r.m.rep.CreateRosterItem(ctx, upd)
			switch {
			case err == nil:
				upd = created
			case errors.Is(err, repository.ErrAlreadyExists):
				log.Warnw("Roster item already persisted", "username", r.username, "jid", upd.JID)
			default:
				log.Errorw("Failed to persist roster item", "username", r.username, "jid", upd.JID, "err", err)
			}
		}
	case !upd.IsTransient():
		if err := r.m.rep.UpdateRosterItem(ctx, upd); err != nil {
			log.Errorw("Failed to update roster item", "username", r.username, "jid", upd.JID, "err", err)
		}
	}
	r.mu.Lock()
	delete(r.implicitFrom, upd.JID)
	r.explicit[upd.JID] = upd
	r.mu.Unlock()

	pendingRecv := upd.Subscription == rostermodel.None && upd.Recv == rostermodel.RecvSubscribe
	if push && !pendingRecv {
		r.m.pushItem(ctx, upd)
	}
	_, _ = r.m.runRosterHook(ctx, event.RosterContactUpdated, r, &event.RosterEventInfo{
		Username:     r.username,
		JID:          upd.JID,
		Subscription: upd.Subscription,
		Item:         upd,
	})
	return nil
}

// DeleteRosterItem removes a contact from the roster, cancelling both halves
// of a mutual subscription with courtesy presences. When doChecking is true
// shared contacts are protected with ErrSharedGroupViolation, since shared
// membership can only be dropped through directory changes.
func (r *Roster) DeleteRosterItem(ctx context.Context, contactJID string, doChecking, push bool) (*rostermodel.Item, error) {
	r.mu.Lock()
	ri, ok := r.explicit[contactJID]
	if !ok {
		gs, okImp := r.implicitFrom[contactJID]
		if !okImp {
			r.mu.Unlock()
			return nil, ErrContactNotFound
		}
		delete(r.implicitFrom, contactJID)
		imp := r.implicitItem(contactJID, gs)
		r.mu.Unlock()

		if !r.m.isLocalUser(ctx, contactJID) {
			r.m.routePresence(ctx, r.username, contactJID, stravaganza.UnsubscribedType)
		}
		_, _ = r.m.runRosterHook(ctx, event.RosterContactDeleted, r, &event.RosterEventInfo{
			Username:     r.username,
			JID:          contactJID,
			Subscription: imp.Subscription,
			Item:         imp,
		})
		return imp, nil
	}
	if doChecking && ri.IsShared() {
		r.mu.Unlock()
		return nil, ErrSharedGroupViolation
	}
	delete(r.explicit, contactJID)
	r.mu.Unlock()

	switch ri.Subscription {
	case rostermodel.To:
		r.m.routePresence(ctx, r.username, contactJID, stravaganza.UnsubscribeType)
	case rostermodel.From:
		r.m.routePresence(ctx, r.username, contactJID, stravaganza.UnsubscribedType)
	case rostermodel.Both:
		r.m.routePresence(ctx, r.username, contactJID, stravaganza.UnsubscribeType)
		r.m.routePresence(ctx, r.username, contactJID, stravaganza.UnsubscribedType)
	}
	if ri.ID > 0 {
		if err := r.m.rep.DeleteRosterItem(ctx, r.username, ri.ID); err != nil {
			log.Errorw("Failed to delete roster item", "username", r.username, "jid", contactJID, "err", err)
		}
	}
	if push {
		rm := ri.Clone()
		rm.Subscription = rostermodel.Remove
		r.m.pushItem(ctx, rm)
	}
	_, _ = r.m.runRosterHook(ctx, event.RosterContactDeleted, r, &event.RosterEventInfo{
		Username:     r.username,
		JID:          contactJID,
		Subscription: ri.Subscription,
		Item:         ri,
	})
	return ri, nil
}

// BroadcastPresence forwards presence to every contact entitled to see the
// owner presence, that is every explicit item with subscription both or from
// plus every implicit FROM contact, and reflects it to the owner remaining
// sessions. Blocked contacts are skipped.
func (r *Roster) BroadcastPresence(ctx context.Context, presence *stravaganza.Presence) error {
	r.mu.RLock()
	targets := make([]string, 0, len(r.explicit)+len(r.implicitFrom))
	for jidStr, ri := range r.explicit {
		switch ri.Subscription {
		case rostermodel.Both, rostermodel.From:
			targets = append(targets, jidStr)
		}
	}
	for jidStr := range r.implicitFrom {
		targets = append(targets, jidStr)
	}
	r.mu.RUnlock()

	sort.Strings(targets)

	fromJID := presence.FromJID()
	typ := presence.Attribute(stravaganza.Type)
	children := presence.AllChildren()

	for _, target := range targets {
		toJID, err := jid.NewWithString(target, true)
		if err != nil {
			log.Warnw("Failed to parse contact address", "username", r.username, "jid", target, "err", err)
			continue
		}
		blocked, err := r.m.blockChecker().IsBlocked(ctx, r.username, toJID)
		if err != nil {
			log.Warnw("Failed to run block check", "username", r.username, "jid", target, "err", err)
			continue
		}
		if blocked {
			continue
		}
		pr := xmpputil.MakePresence(fromJID, toJID, typ, children)
		if err := r.m.router.Route(ctx, pr); err != nil {
			log.Warnw("Failed to route presence", "username", r.username, "jid", target, "err", err)
		}
	}
	self := xmpputil.MakePresence(fromJID, fromJID.ToBareJID(), typ, children)
	if err := r.m.router.Route(ctx, self); err != nil {
		log.Warnw("Failed to route presence", "username", r.username, "err", err)
	}
	return nil
}

// ProcessSharedUser re-derives the shared relationship between the roster
// owner and contact, adding or upgrading the associated item. Exactly one of
// the contact added or updated notifications fires per invocation.
func (r *Roster) ProcessSharedUser(ctx context.Context, contact string) error {
	contactJID := r.m.bareJIDString(contact)

	sub, visible, invisible, err := r.m.deriveSharedSubscription(ctx, r.username, contact)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			log.Warnw("Skipping unknown shared contact", "username", r.username, "contact", contact)
			return nil
		}
		return err
	}
	r.mu.RLock()
	prev := r.explicit[contactJID]
	impGs, wasImplicit := r.implicitFrom[contactJID]
	r.mu.RUnlock()

	existed := prev != nil || wasImplicit

	var upd *rostermodel.Item
	switch {
	case prev != nil:
		upd = prev.Clone()
	case wasImplicit:
		upd = r.implicitItem(contactJID, impGs)
	default:
		if len(sub) == 0 {
			return nil
		}
		upd = &rostermodel.Item{Username: r.username, JID: contactJID}
	}
	upd.SharedGroups = visible
	upd.InvisibleSharedGroups = invisible
	if len(sub) > 0 {
		upd.Subscription = mergeSubscription(upd.Subscription, sub)
	}
	if len(upd.Subscription) == 0 {
		upd.Subscription = rostermodel.None
	}
	r.storeSharedItem(ctx, upd, contact, true)

	hookName := event.RosterContactUpdated
	if !existed {
		hookName = event.RosterContactAdded
	}
	_, _ = r.m.runRosterHook(ctx, hookName, r, &event.RosterEventInfo{
		Username:     r.username,
		JID:          contactJID,
		Subscription: upd.Subscription,
		Item:         upd,
	})
	return nil
}

// ProcessSharedGroup applies ProcessSharedUser to every contact g makes
// visible to the roster owner.
func (r *Roster) ProcessSharedGroup(ctx context.Context, g *groupmodel.Group) error {
	users, err := r.m.sharedUsersForRoster(ctx, g, r.username)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u == r.username {
			continue
		}
		if err := r.ProcessSharedUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSharedUser re-derives the shared relationship between the roster
// owner and contact after a directory removal, downgrading the associated
// item or removing it entirely when no shared group relates them anymore.
func (r *Roster) DeleteSharedUser(ctx context.Context, contact string) error {
	contactJID := r.m.bareJIDString(contact)

	sub, visible, invisible, err := r.m.deriveSharedSubscription(ctx, r.username, contact)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			log.Warnw("Skipping unknown shared contact", "username", r.username, "contact", contact)
			return nil
		}
		return err
	}
	r.mu.RLock()
	prev := r.explicit[contactJID]
	impGs, wasImplicit := r.implicitFrom[contactJID]
	r.mu.RUnlock()

	switch {
	case prev == nil && !wasImplicit:
		return nil

	case len(sub) == 0 && prev != nil && !prev.IsOnlyShared():
		// personal relationship remains; strip shared annotations only
		upd := prev.Clone()
		upd.SharedGroups = nil
		upd.InvisibleSharedGroups = nil
		r.mu.Lock()
		r.explicit[contactJID] = upd
		r.mu.Unlock()

		r.m.pushItem(ctx, upd)
		_, _ = r.m.runRosterHook(ctx, event.RosterContactUpdated, r, &event.RosterEventInfo{
			Username:     r.username,
			JID:          contactJID,
			Subscription: upd.Subscription,
			Item:         upd,
		})
		return nil

	case len(sub) == 0:
		_, err := r.DeleteRosterItem(ctx, contactJID, false, true)
		switch {
		case err == nil, errors.Is(err, ErrContactNotFound):
			return nil
		default:
			return err
		}

	default:
		var upd *rostermodel.Item
		if prev != nil {
			upd = prev.Clone()
		} else {
			upd = r.implicitItem(contactJID, impGs)
		}
		upd.SharedGroups = visible
		upd.InvisibleSharedGroups = invisible
		if upd.IsOnlyShared() {
			upd.Subscription = sub
		}
		r.storeSharedItem(ctx, upd, contact, false)

		_, _ = r.m.runRosterHook(ctx, event.RosterContactUpdated, r, &event.RosterEventInfo{
			Username:     r.username,
			JID:          contactJID,
			Subscription: upd.Subscription,
			Item:         upd,
		})
		return nil
	}
}

// DeleteSharedGroup applies DeleteSharedUser to every contact g used to make
// visible to the roster owner.
func (r *Roster) DeleteSharedGroup(ctx context.Context, g *groupmodel.Group) error {
	users, err := r.m.sharedUsersForRoster(ctx, g, r.username)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u == r.username {
			continue
		}
		if err := r.DeleteSharedUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// Version returns roster current version number.
func (r *Roster) Version(ctx context.Context) (int, error) {
	return r.m.rep.FetchRosterVersion(ctx, r.username)
}

// storeSharedItem applies the only-shared FROM demotion rule before storing:
// items whose single relationship is an invisible FROM subscription go into
// the implicit index and are never pushed nor probed.
func (r *Roster) storeSharedItem(ctx context.Context, upd *rostermodel.Item, contact string, probe bool) {
	if upd.IsOnlyShared() && upd.Subscription == rostermodel.From && upd.IsTransient() {
		gs := make(map[string]struct{}, len(upd.InvisibleSharedGroups))
		for _, name := range upd.InvisibleSharedGroups {
			gs[name] = struct{}{}
		}
		r.mu.Lock()
		delete(r.explicit, upd.JID)
		r.implicitFrom[upd.JID] = gs
		r.mu.Unlock()
		return
	}
	r.m.applyDefaultName(ctx, upd, contact)

	r.mu.Lock()
	delete(r.implicitFrom, upd.JID)
	r.explicit[upd.JID] = upd
	r.mu.Unlock()

	r.m.pushItem(ctx, upd)
	if probe {
		switch upd.Subscription {
		case rostermodel.To, rostermodel.Both:
			r.m.routePresence(ctx, r.username, upd.JID, stravaganza.ProbeType)
		}
	}
}

// load fetches persisted personal items and synthesizes shared entries from
// every group currently visible to the roster owner.
func (r *Roster) load(ctx context.Context) error {
	items, err := r.m.rep.FetchRosterItems(ctx, r.username)
	if err != nil {
		return err
	}
	explicit := make(map[string]*rostermodel.Item, len(items))
	for i := range items {
		ri := items[i]
		explicit[ri.JID] = &ri
	}
	implicitFrom := make(map[string]map[string]struct{})

	sharedGroups, err := r.m.SharedGroups(ctx, r.username)
	if err != nil {
		return err
	}
	contacts := make(map[string]struct{})
	for i := range sharedGroups {
		users, err := r.m.sharedUsersForRoster(ctx, &sharedGroups[i], r.username)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u == r.username {
				continue
			}
			contacts[u] = struct{}{}
		}
	}
	for contact := range contacts {
		contactJID := r.m.bareJIDString(contact)

		sub, visible, invisible, err := r.m.deriveSharedSubscription(ctx, r.username, contact)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				log.Warnw("Skipping unknown shared contact", "username", r.username, "contact", contact)
				continue
			}
			return err
		}
		if len(sub) == 0 {
			continue
		}
		if existing, ok := explicit[contactJID]; ok {
			existing.SharedGroups = visible
			existing.InvisibleSharedGroups = invisible
			existing.Subscription = mergeSubscription(existing.Subscription, sub)
			continue
		}
		if sub == rostermodel.From && len(visible) == 0 {
			gs := make(map[string]struct{}, len(invisible))
			for _, name := range invisible {
				gs[name] = struct{}{}
			}
			implicitFrom[contactJID] = gs
			continue
		}
		ri := &rostermodel.Item{
			Username:              r.username,
			JID:                   contactJID,
			Subscription:          sub,
			SharedGroups:          visible,
			InvisibleSharedGroups: invisible,
		}
		r.m.applyDefaultName(ctx, ri, contact)
		explicit[contactJID] = ri
	}
	r.mu.Lock()
	r.explicit = explicit
	r.implicitFrom = implicitFrom
	r.mu.Unlock()

	_, _ = r.m.runRosterHook(ctx, event.RosterLoaded, r, &event.RosterEventInfo{Username: r.username})
	return nil
}

func (r *Roster) implicitItem(contactJID string, gs map[string]struct{}) *rostermodel.Item {
	ri := &rostermodel.Item{
		Username:     r.username,
		JID:          contactJID,
		Subscription: rostermodel.From,
	}
	for name := range gs {
		ri.InvisibleSharedGroups = append(ri.InvisibleSharedGroups, name)
	}
	sort.Strings(ri.InvisibleSharedGroups)
	return ri
}

func (r *Roster) snapshot() *rostermodel.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sn := &rostermodel.Snapshot{
		Username:     r.username,
		ImplicitFrom: make(map[string][]string, len(r.implicitFrom)),
	}
	for _, ri := range r.explicit {
		sn.Items = append(sn.Items, *ri.Clone())
	}
	sort.Slice(sn.Items, func(i, j int) bool { return sn.Items[i].JID < sn.Items[j].JID })
	for jidStr, gs := range r.implicitFrom {
		names := make([]string, 0, len(gs))
		for name := range gs {
			names = append(names, name)
		}
		sort.Strings(names)
		sn.ImplicitFrom[jidStr] = names
	}
	return sn
}

func (r *Roster) restore(sn *rostermodel.Snapshot) {
	explicit := make(map[string]*rostermodel.Item, len(sn.Items))
	for i := range sn.Items {
		ri := sn.Items[i]
		explicit[ri.JID] = &ri
	}
	implicitFrom := make(map[string]map[string]struct{}, len(sn.ImplicitFrom))
	for jidStr, names := range sn.ImplicitFrom {
		gs := make(map[string]struct{}, len(names))
		for _, name := range names {
			gs[name] = struct{}{}
		}
		implicitFrom[jidStr] = gs
	}
	r.mu.Lock()
	r.explicit = explicit
	r.implicitFrom = implicitFrom
	r.mu.Unlock()
}

// mergeSubscription combines a previous subscription state with a freshly
// derived one. One-each of to and from upgrades to both, capturing mutual
// visibility gained through an additional mechanism.
func mergeSubscription(prev, derived string) string {
	switch {
	case prev == rostermodel.Both || derived == rostermodel.Both:
		return rostermodel.Both
	case prev == rostermodel.To && derived == rostermodel.From:
		return rostermodel.Both
	case prev == rostermodel.From && derived == rostermodel.To:
		return rostermodel.Both
	case len(derived) == 0 || derived == rostermodel.None:
		return prev
	default:
		return derived
	}
}
