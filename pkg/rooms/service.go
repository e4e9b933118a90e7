// Package rooms owns room lifecycle and role-based membership. The
// cached member count is maintained here, explicitly, in the same
// batch as the membership write, so the count-equals-active-rows
// invariant is auditable instead of hidden in storage triggers.
package rooms

import (
	"sort"
	"time"

	"parlor/pkg/cache"
	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store"
	"parlor/pkg/store/keys"
	"parlor/pkg/utils"
	"parlor/pkg/validation"
)

// CreateOptions carries the optional fields of a new room.
type CreateOptions struct {
	Name        string
	Description string
	Private     bool
	Options     models.RoomOptions
}

func now() int64 { return time.Now().UTC().UnixNano() }

// Create makes a new room with creator as its owner. Direct rooms are
// not created here; use EnsureDirectRoom.
func Create(kind models.RoomKind, creator string, opts CreateOptions) (*models.Room, error) {
	if err := validation.RoomKind(kind); err != nil {
		return nil, err
	}
	if err := validation.RequireID("creator", creator); err != nil {
		return nil, err
	}
	if kind == models.RoomDirect {
		return nil, errs.E(errs.InvalidArgument, "direct rooms are created implicitly per user pair")
	}
	ts := now()
	r := &models.Room{
		ID:             utils.GenRoomID(),
		Kind:           kind,
		Name:           opts.Name,
		Description:    opts.Description,
		Owner:          creator,
		Private:        opts.Private,
		MemberCount:    1,
		Options:        opts.Options,
		CreatedTS:      ts,
		LastActivityTS: ts,
		Active:         true,
	}
	r.Slug = utils.MakeSlug(r.Name, r.ID)
	m := &models.Membership{
		RoomID:   r.ID,
		UserID:   creator,
		Role:     models.RoleOwner,
		JoinedTS: ts,
		Active:   true,
	}
	if err := persistRoomWithMember(r, m); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create room")
	}
	logger.Info("room_created", "room", r.ID, "kind", string(kind), "owner", creator)
	_ = events.Publish(events.Event{Type: events.RoomCreated, RoomID: r.ID, Audience: []string{creator}, TS: ts, Payload: r})
	return r, nil
}

// EnsureDirectRoom returns the direct room for the user pair, creating
// it on first use. Direct rooms always hold exactly two member-role
// memberships and never change roles.
func EnsureDirectRoom(a, b string) (*models.Room, error) {
	if err := validation.RequireID("user", a); err != nil {
		return nil, err
	}
	if err := validation.RequireID("user", b); err != nil {
		return nil, err
	}
	if a == b {
		return nil, errs.E(errs.InvalidArgument, "direct room requires two distinct users")
	}
	marker := keys.GenDirectRoomKey(a, b)
	if v, err := store.GetKey(marker); err == nil {
		return Get(string(v))
	} else if !store.IsNotFound(err) {
		return nil, errs.Wrap(errs.Internal, err, "resolve direct room")
	}
	ts := now()
	r := &models.Room{
		ID:             utils.GenRoomID(),
		Kind:           models.RoomDirect,
		Owner:          a,
		Private:        true,
		MemberCount:    2,
		CreatedTS:      ts,
		LastActivityTS: ts,
		Active:         true,
	}
	batch := store.NewBatch()
	if batch == nil {
		return nil, errs.E(errs.Internal, "store not open")
	}
	defer batch.Close()
	if err := store.BatchSetRoom(batch, r); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create direct room")
	}
	for _, u := range []string{a, b} {
		m := &models.Membership{RoomID: r.ID, UserID: u, Role: models.RoleMember, JoinedTS: ts, Active: true}
		if err := store.BatchSetMembership(batch, m); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "create direct room")
		}
	}
	if err := batch.Set([]byte(marker), []byte(r.ID), nil); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create direct room")
	}
	if err := store.ApplyBatch(batch); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create direct room")
	}
	logger.Info("direct_room_created", "room", r.ID)
	return r, nil
}

func persistRoomWithMember(r *models.Room, m *models.Membership) error {
	b := store.NewBatch()
	if b == nil {
		return errs.E(errs.Internal, "store not open")
	}
	defer b.Close()
	if err := store.BatchSetRoom(b, r); err != nil {
		return err
	}
	if err := store.BatchSetMembership(b, m); err != nil {
		return err
	}
	return store.ApplyBatch(b)
}

// Get loads an active or deactivated room.
func Get(roomID string) (*models.Room, error) {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.NotFound, "room %s not found", roomID)
		}
		return nil, errs.Wrap(errs.Internal, err, "load room %s", roomID)
	}
	return r, nil
}

// getActive loads a room and rejects deactivated ones.
func getActive(roomID string) (*models.Room, error) {
	r, err := Get(roomID)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, errs.E(errs.NotFound, "room %s is deactivated", roomID)
	}
	return r, nil
}

// Membership returns the active membership of user in room, or
// Forbidden when the user is not an active member.
func Membership(roomID, userID string) (*models.Membership, error) {
	m, err := store.GetMembership(roomID, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.Forbidden, "user %s is not a member of room %s", userID, roomID)
		}
		return nil, errs.Wrap(errs.Internal, err, "load membership")
	}
	if !m.Active {
		return nil, errs.E(errs.Forbidden, "user %s is not a member of room %s", userID, roomID)
	}
	return m, nil
}

// RequireRole returns the active membership of user in room if its
// role is at least min; Forbidden otherwise.
func RequireRole(roomID, userID string, min models.Role) (*models.Membership, error) {
	m, err := Membership(roomID, userID)
	if err != nil {
		return nil, err
	}
	if !m.Role.AtLeast(min) {
		return nil, errs.E(errs.Forbidden, "requires role %s or above", min)
	}
	return m, nil
}

// AddMember inserts a new active membership and bumps the cached member
// count, atomically under the room lock. A previously departed member
// rejoins by reactivating the old row.
func AddMember(roomID, userID string, role models.Role, inviter string) (*models.Membership, error) {
	if err := validation.RequireID("user", userID); err != nil {
		return nil, err
	}
	if err := validation.Role(role); err != nil {
		return nil, err
	}
	if role == models.RoleOwner {
		return nil, errs.E(errs.InvalidArgument, "owner role is assigned at creation or by transfer")
	}
	var out *models.Membership
	err := store.WithRoomLock(roomID, func() error {
		r, err := getActive(roomID)
		if err != nil {
			return err
		}
		if r.Kind == models.RoomDirect {
			return errs.E(errs.Conflict, "direct room membership is fixed")
		}
		ts := now()
		m, err := store.GetMembership(roomID, userID)
		switch {
		case err == nil && m.Active:
			return errs.E(errs.Conflict, "user %s is already a member of room %s", userID, roomID)
		case err == nil:
			// rejoin: reactivate the departed row
			m.Role = role
			m.InvitedBy = inviter
			m.JoinedTS = ts
			m.LeftTS = 0
			m.Active = true
		case store.IsNotFound(err):
			m = &models.Membership{
				RoomID:    roomID,
				UserID:    userID,
				Role:      role,
				InvitedBy: inviter,
				JoinedTS:  ts,
				Active:    true,
			}
		default:
			return errs.Wrap(errs.Internal, err, "load membership")
		}
		if max := r.Options.MaxMembers; max > 0 && r.MemberCount >= max {
			return errs.E(errs.Conflict, "room %s is full (%d members)", roomID, max)
		}
		r.MemberCount++
		b := store.NewBatch()
		if b == nil {
			return errs.E(errs.Internal, "store not open")
		}
		defer b.Close()
		if err := store.BatchSetRoom(b, r); err != nil {
			return err
		}
		if err := store.BatchSetMembership(b, m); err != nil {
			return err
		}
		if err := store.ApplyBatch(b); err != nil {
			return errs.Wrap(errs.Internal, err, "add member")
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("member_added", "room", roomID, "user", userID, "role", string(role))
	_ = events.Publish(events.Event{Type: events.MemberAdded, RoomID: roomID, Audience: mustMemberIDs(roomID), TS: out.JoinedTS, Payload: out})
	return out, nil
}

// RemoveMember marks the membership inactive and decrements the cached
// member count. The owner must transfer ownership before leaving.
func RemoveMember(roomID, userID string) error {
	err := store.WithRoomLock(roomID, func() error {
		r, err := getActive(roomID)
		if err != nil {
			return err
		}
		if r.Kind == models.RoomDirect {
			return errs.E(errs.Conflict, "direct room membership is fixed")
		}
		m, err := store.GetMembership(roomID, userID)
		if err != nil || !m.Active {
			return errs.E(errs.NotFound, "user %s has no active membership in room %s", userID, roomID)
		}
		if m.Role == models.RoleOwner {
			return errs.E(errs.Conflict, "owner must transfer ownership before leaving")
		}
		m.Active = false
		m.LeftTS = now()
		r.MemberCount--
		b := store.NewBatch()
		if b == nil {
			return errs.E(errs.Internal, "store not open")
		}
		defer b.Close()
		if err := store.BatchSetRoom(b, r); err != nil {
			return err
		}
		if err := store.BatchSetMembership(b, m); err != nil {
			return err
		}
		if err := store.ApplyBatch(b); err != nil {
			return errs.Wrap(errs.Internal, err, "remove member")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("member_removed", "room", roomID, "user", userID)
	_ = events.Publish(events.Event{Type: events.MemberRemoved, RoomID: roomID, Audience: mustMemberIDs(roomID), TS: now(), Payload: map[string]string{"room_id": roomID, "user_id": userID}})
	return nil
}

// Leave removes the calling member from the room.
func Leave(roomID, userID string) error { return RemoveMember(roomID, userID) }

// ChangeRole moves target to newRole. The actor must strictly outrank
// both the target's current role and the requested role, which also
// rules out granting owner here (nothing outranks it; see
// TransferOwnership).
func ChangeRole(roomID, actor, target string, newRole models.Role) (*models.Membership, error) {
	if err := validation.Role(newRole); err != nil {
		return nil, err
	}
	var out *models.Membership
	err := store.WithRoomLock(roomID, func() error {
		r, err := getActive(roomID)
		if err != nil {
			return err
		}
		if r.Kind == models.RoomDirect {
			return errs.E(errs.Forbidden, "direct rooms have no role hierarchy")
		}
		am, err := store.GetMembership(roomID, actor)
		if err != nil || !am.Active {
			return errs.E(errs.Forbidden, "user %s is not a member of room %s", actor, roomID)
		}
		tm, err := store.GetMembership(roomID, target)
		if err != nil || !tm.Active {
			return errs.E(errs.NotFound, "user %s has no active membership in room %s", target, roomID)
		}
		if !am.Role.Outranks(tm.Role) || !am.Role.Outranks(newRole) {
			return errs.E(errs.Forbidden, "role %s cannot move %s to %s", am.Role, tm.Role, newRole)
		}
		tm.Role = newRole
		if err := store.SaveMembership(tm); err != nil {
			return errs.Wrap(errs.Internal, err, "change role")
		}
		out = tm
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("role_changed", "room", roomID, "actor", actor, "target", target, "role", string(newRole))
	return out, nil
}

// TransferOwnership promotes target to owner and demotes the current
// owner to admin, keeping exactly one owner per room.
func TransferOwnership(roomID, actor, target string) error {
	err := store.WithRoomLock(roomID, func() error {
		r, err := getActive(roomID)
		if err != nil {
			return err
		}
		if r.Kind == models.RoomDirect {
			return errs.E(errs.Forbidden, "direct rooms have no owner to transfer")
		}
		am, err := store.GetMembership(roomID, actor)
		if err != nil || !am.Active || am.Role != models.RoleOwner {
			return errs.E(errs.Forbidden, "only the owner can transfer ownership")
		}
		tm, err := store.GetMembership(roomID, target)
		if err != nil || !tm.Active {
			return errs.E(errs.NotFound, "user %s has no active membership in room %s", target, roomID)
		}
		if actor == target {
			return errs.E(errs.InvalidArgument, "cannot transfer ownership to self")
		}
		am.Role = models.RoleAdmin
		tm.Role = models.RoleOwner
		r.Owner = target
		b := store.NewBatch()
		if b == nil {
			return errs.E(errs.Internal, "store not open")
		}
		defer b.Close()
		if err := store.BatchSetRoom(b, r); err != nil {
			return err
		}
		if err := store.BatchSetMembership(b, am); err != nil {
			return err
		}
		if err := store.BatchSetMembership(b, tm); err != nil {
			return err
		}
		if err := store.ApplyBatch(b); err != nil {
			return errs.Wrap(errs.Internal, err, "transfer ownership")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("ownership_transferred", "room", roomID, "from", actor, "to", target)
	return nil
}

// Deactivate soft-deletes the room. Messages keep referencing it, so
// the row is never removed.
func Deactivate(roomID, actor string) error {
	err := store.WithRoomLock(roomID, func() error {
		r, err := getActive(roomID)
		if err != nil {
			return err
		}
		m, err := store.GetMembership(roomID, actor)
		if err != nil || !m.Active || m.Role != models.RoleOwner {
			return errs.E(errs.Forbidden, "only the owner can deactivate a room")
		}
		r.Active = false
		r.DeactivatedTS = now()
		if err := store.SaveRoom(r); err != nil {
			return errs.Wrap(errs.Internal, err, "deactivate room")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("room_deactivated", "room", roomID, "actor", actor)
	return nil
}

// TouchActivity advances the room's last-activity timestamp,
// last-write-wins by timestamp.
func TouchActivity(roomID string, ts int64) error {
	return store.TouchRoomActivity(roomID, ts)
}

// SetLastRead records the member's read position for unread counting.
// Positions only move forward; message ids sort in creation order.
func SetLastRead(roomID, userID, msgID string) error {
	err := store.WithRoomLock(roomID, func() error {
		m, err := store.GetMembership(roomID, userID)
		if err != nil || !m.Active {
			return errs.E(errs.Forbidden, "user %s is not a member of room %s", userID, roomID)
		}
		if msgID <= m.LastReadMsg {
			return nil
		}
		m.LastReadMsg = msgID
		m.LastReadTS = now()
		if err := store.SaveMembership(m); err != nil {
			return errs.Wrap(errs.Internal, err, "save read position")
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidateUnread(roomID, userID)
	return nil
}

// UnreadCount counts tracked messages from others after the member's
// read position. Counts go through the cache when enabled.
func UnreadCount(roomID, userID string) (int, error) {
	m, err := Membership(roomID, userID)
	if err != nil {
		return 0, err
	}
	if n, ok := cache.GetUnread(roomID, userID); ok {
		return n, nil
	}
	n, err := store.CountRoomUnread(roomID, userID, m.LastReadMsg)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "count unread")
	}
	cache.SetUnread(roomID, userID, n)
	return n, nil
}

// ActiveMemberIDs returns the user ids of a room's active members.
func ActiveMemberIDs(roomID string) ([]string, error) {
	ms, err := store.ListMemberships(roomID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list memberships")
	}
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		if m.Active {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

// mustMemberIDs is ActiveMemberIDs for event audiences; resolution
// failures degrade to no fan-out rather than failing the mutation.
func mustMemberIDs(roomID string) []string {
	ids, err := ActiveMemberIDs(roomID)
	if err != nil {
		logger.Warn("member_audience_failed", "room", roomID, "error", err)
		return nil
	}
	return ids
}

// MemberInfo pairs a membership with the member's current presence for
// the room-members listing.
type MemberInfo struct {
	models.Membership
	Presence *models.Presence `json:"presence,omitempty"`
}

// Members lists a room's active members enriched with presence. The
// caller must be an active member.
func Members(roomID, viewer string) ([]MemberInfo, error) {
	if _, err := Membership(roomID, viewer); err != nil {
		return nil, err
	}
	ms, err := store.ListMemberships(roomID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list memberships")
	}
	out := make([]MemberInfo, 0, len(ms))
	for _, m := range ms {
		if !m.Active {
			continue
		}
		info := MemberInfo{Membership: m}
		if p, err := store.GetPresence(m.UserID); err == nil {
			info.Presence = p
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role.Rank() > out[j].Role.Rank() })
	return out, nil
}

// ListForUser returns the rooms the user actively belongs to, most
// recently active first.
func ListForUser(userID string) ([]models.Room, error) {
	ids, err := store.ListUserRoomIDs(userID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list user rooms")
	}
	out := make([]models.Room, 0, len(ids))
	for _, id := range ids {
		r, err := store.GetRoom(id)
		if err != nil {
			if store.IsNotFound(err) {
				logger.Warn("room_marker_dangling", "room", id, "user", userID)
				continue
			}
			return nil, errs.Wrap(errs.Internal, err, "load room %s", id)
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityTS > out[j].LastActivityTS })
	return out, nil
}
