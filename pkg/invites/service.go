// Package invites manages room invitations: creation by moderators,
// accept/decline by the invitee, and lazy plus swept expiry. Every
// terminal transition happens exactly once under the invite lock.
package invites

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/rooms"
	"parlor/pkg/store"
	"parlor/pkg/telemetry"
	"parlor/pkg/validation"
)

var defaultTTL = 7 * 24 * time.Hour

// SetDefaultTTL installs the configured invitation lifetime at startup.
// Zero disables expiry for new invitations.
func SetDefaultTTL(d time.Duration) { defaultTTL = d }

func now() int64 { return time.Now().UTC().UnixNano() }

// CreateInput describes one invitation. Exactly one of Invitee and
// Email must be set.
type CreateInput struct {
	RoomID  string
	Inviter string
	Invitee string
	Email   string
	Message string
	// TTL overrides the configured default; negative means no expiry.
	TTL time.Duration
}

// Create issues an invitation. The inviter must hold moderator or
// above; direct rooms never take invitations.
func Create(in CreateInput) (*models.Invitation, error) {
	if (in.Invitee == "") == (in.Email == "") {
		return nil, errs.E(errs.InvalidArgument, "invitation must name a user or an email, not both")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return nil, errs.E(errs.InvalidArgument, "invalid email address")
	}
	if in.Invitee != "" {
		if err := validation.RequireID("invitee", in.Invitee); err != nil {
			return nil, err
		}
		if in.Invitee == in.Inviter {
			return nil, errs.E(errs.InvalidArgument, "cannot invite yourself")
		}
	}
	r, err := rooms.Get(in.RoomID)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, errs.E(errs.NotFound, "room %s is deactivated", in.RoomID)
	}
	if r.Kind == models.RoomDirect {
		return nil, errs.E(errs.InvalidArgument, "direct rooms do not take invitations")
	}
	if _, err := rooms.RequireRole(in.RoomID, in.Inviter, models.RoleModerator); err != nil {
		return nil, err
	}
	if in.Invitee != "" {
		blocked, err := store.BlockedEither(in.Inviter, in.Invitee)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "check blocks")
		}
		if blocked {
			return nil, errs.E(errs.Forbidden, "inviting this user is blocked")
		}
		if m, err := store.GetMembership(in.RoomID, in.Invitee); err == nil && m.Active {
			return nil, errs.E(errs.Conflict, "user %s is already a member of room %s", in.Invitee, in.RoomID)
		}
		dup, err := pendingFor(in.RoomID, in.Invitee, "")
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return nil, errs.E(errs.Conflict, "a pending invitation for this user already exists")
		}
	} else {
		dup, err := pendingFor(in.RoomID, "", in.Email)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return nil, errs.E(errs.Conflict, "a pending invitation for this email already exists")
		}
	}

	ts := now()
	inv := &models.Invitation{
		ID:        uuid.NewString(),
		RoomID:    in.RoomID,
		Inviter:   in.Inviter,
		Invitee:   in.Invitee,
		Email:     in.Email,
		Message:   in.Message,
		Status:    models.InvitePending,
		CreatedTS: ts,
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	if ttl > 0 {
		inv.ExpiresTS = ts + ttl.Nanoseconds()
	}
	if err := store.SaveInvite(inv); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "save invitation")
	}
	logger.Info("invite_created", "invite", inv.ID, "room", in.RoomID, "inviter", in.Inviter)
	telemetry.RecordInviteOutcome("created")
	audience := []string{in.Inviter}
	if in.Invitee != "" {
		audience = append(audience, in.Invitee)
	}
	_ = events.Publish(events.Event{Type: events.InviteCreated, RoomID: in.RoomID, Audience: audience, TS: ts, Payload: inv})
	return inv, nil
}

func pendingFor(roomID, invitee, email string) (*models.Invitation, error) {
	invs, err := store.ListRoomInvites(roomID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list room invitations")
	}
	for i := range invs {
		inv := &invs[i]
		if inv.Status != models.InvitePending {
			continue
		}
		if invitee != "" && inv.Invitee == invitee {
			return inv, nil
		}
		if email != "" && inv.Email != "" && strings.EqualFold(inv.Email, email) {
			return inv, nil
		}
	}
	return nil, nil
}

// Get loads an invitation; the caller must be its inviter or invitee,
// or hold moderator in the room.
func Get(inviteID, viewer string) (*models.Invitation, error) {
	inv, err := load(inviteID)
	if err != nil {
		return nil, err
	}
	if inv.Inviter != viewer && inv.Invitee != viewer {
		if _, err := rooms.RequireRole(inv.RoomID, viewer, models.RoleModerator); err != nil {
			return nil, errs.E(errs.NotFound, "invitation %s not found", inviteID)
		}
	}
	return inv, nil
}

func load(inviteID string) (*models.Invitation, error) {
	inv, err := store.GetInvite(inviteID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.NotFound, "invitation %s not found", inviteID)
		}
		return nil, errs.Wrap(errs.Internal, err, "load invitation")
	}
	return inv, nil
}

// Accept resolves a pending invitation and joins the actor to the room
// in the same locked section. An invitation past its TTL transitions to
// expired right here and the accept fails with Conflict, so expiry
// applies lazily even between sweeps. For email invitations actorEmail
// must match the addressed email.
func Accept(inviteID, actor, actorEmail string) (*models.Invitation, error) {
	nowTS := now()
	var did bool
	inv, err := store.UpdateInvite(inviteID, func(inv *models.Invitation) error {
		if inv.Status == models.InvitePending && inv.ExpiredAt(nowTS) {
			inv.Status = models.InviteExpired
			inv.ResolvedTS = nowTS
			telemetry.RecordInviteOutcome("expired")
			return nil
		}
		if inv.Status.Terminal() {
			return nil
		}
		if inv.Invitee != "" {
			if inv.Invitee != actor {
				return errs.E(errs.Forbidden, "invitation is addressed to another user")
			}
		} else if !strings.EqualFold(inv.Email, actorEmail) {
			return errs.E(errs.Forbidden, "invitation is addressed to another email")
		}
		if _, err := rooms.AddMember(inv.RoomID, actor, models.RoleMember, inv.Inviter); err != nil {
			if !errs.IsKind(err, errs.Conflict) {
				return err
			}
			// Conflict is only benign when the actor already holds an
			// active membership; a full room must keep the invitation
			// pending and surface the error.
			if _, merr := rooms.Membership(inv.RoomID, actor); merr != nil {
				return err
			}
		}
		inv.Status = models.InviteAccepted
		inv.ResolvedTS = nowTS
		inv.ResolvedBy = actor
		did = true
		return nil
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.NotFound, "invitation %s not found", inviteID)
		}
		if errs.KindOf(err) != errs.Internal {
			return nil, err
		}
		return nil, errs.Wrap(errs.Internal, err, "accept invitation")
	}
	if !did {
		return inv, errs.E(errs.Conflict, "invitation %s is %s", inviteID, inv.Status)
	}
	logger.Info("invite_accepted", "invite", inviteID, "user", actor)
	telemetry.RecordInviteOutcome("accepted")
	publishResolved(inv)
	return inv, nil
}

// Decline resolves a pending invitation without joining. Expired
// invitations fail the same way as in Accept.
func Decline(inviteID, actor, actorEmail string) (*models.Invitation, error) {
	nowTS := now()
	var did bool
	inv, err := store.UpdateInvite(inviteID, func(inv *models.Invitation) error {
		if inv.Status == models.InvitePending && inv.ExpiredAt(nowTS) {
			inv.Status = models.InviteExpired
			inv.ResolvedTS = nowTS
			telemetry.RecordInviteOutcome("expired")
			return nil
		}
		if inv.Status.Terminal() {
			return nil
		}
		if inv.Invitee != "" {
			if inv.Invitee != actor {
				return errs.E(errs.Forbidden, "invitation is addressed to another user")
			}
		} else if !strings.EqualFold(inv.Email, actorEmail) {
			return errs.E(errs.Forbidden, "invitation is addressed to another email")
		}
		inv.Status = models.InviteDeclined
		inv.ResolvedTS = nowTS
		inv.ResolvedBy = actor
		did = true
		return nil
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.NotFound, "invitation %s not found", inviteID)
		}
		if errs.KindOf(err) != errs.Internal {
			return nil, err
		}
		return nil, errs.Wrap(errs.Internal, err, "decline invitation")
	}
	if !did {
		return inv, errs.E(errs.Conflict, "invitation %s is %s", inviteID, inv.Status)
	}
	logger.Info("invite_declined", "invite", inviteID, "user", actor)
	telemetry.RecordInviteOutcome("declined")
	publishResolved(inv)
	return inv, nil
}

func publishResolved(inv *models.Invitation) {
	audience := []string{inv.Inviter}
	if inv.Invitee != "" {
		audience = append(audience, inv.Invitee)
	}
	_ = events.Publish(events.Event{Type: events.InviteResolved, RoomID: inv.RoomID, Audience: audience, TS: inv.ResolvedTS, Payload: inv})
}

// ListForRoom returns a room's invitations; moderator and above only.
func ListForRoom(roomID, viewer string) ([]models.Invitation, error) {
	if _, err := rooms.RequireRole(roomID, viewer, models.RoleModerator); err != nil {
		return nil, err
	}
	invs, err := store.ListRoomInvites(roomID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list room invitations")
	}
	return invs, nil
}

// ListForUser returns invitations addressed to the user.
func ListForUser(userID string) ([]models.Invitation, error) {
	invs, err := store.ListUserInvites(userID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list user invitations")
	}
	return invs, nil
}

// SweepExpired transitions pending invitations past their TTL to
// expired. Each transition is re-checked under the invite lock so a
// concurrent accept wins or loses cleanly, never both.
func SweepExpired(nowTS int64) (int, error) {
	var candidates []string
	err := store.ScanInvites(func(inv *models.Invitation) bool {
		if inv.Status == models.InvitePending && inv.ExpiredAt(nowTS) {
			candidates = append(candidates, inv.ID)
		}
		return true
	})
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "scan invitations")
	}
	expired := 0
	for _, id := range candidates {
		var did bool
		inv, err := store.UpdateInvite(id, func(inv *models.Invitation) error {
			if inv.Status != models.InvitePending || !inv.ExpiredAt(nowTS) {
				return nil
			}
			inv.Status = models.InviteExpired
			inv.ResolvedTS = nowTS
			did = true
			return nil
		})
		if err != nil {
			logger.Warn("invite_expire_failed", "invite", id, "error", err)
			continue
		}
		if did {
			expired++
			telemetry.RecordInviteOutcome("expired")
			publishResolved(inv)
		}
	}
	telemetry.RecordSweep("invites", expired)
	if expired > 0 {
		logger.Info("invite_sweep", "expired", expired)
	}
	return expired, nil
}

// InvalidateBetween declines pending invitations connecting the two
// users, in either direction. Called when a block lands.
func InvalidateBetween(a, b string) (int, error) {
	nowTS := now()
	var candidates []string
	err := store.ScanInvites(func(inv *models.Invitation) bool {
		if inv.Status != models.InvitePending {
			return true
		}
		if (inv.Inviter == a && inv.Invitee == b) || (inv.Inviter == b && inv.Invitee == a) {
			candidates = append(candidates, inv.ID)
		}
		return true
	})
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "scan invitations")
	}
	n := 0
	for _, id := range candidates {
		var did bool
		_, err := store.UpdateInvite(id, func(inv *models.Invitation) error {
			if inv.Status != models.InvitePending {
				return nil
			}
			inv.Status = models.InviteDeclined
			inv.ResolvedTS = nowTS
			did = true
			return nil
		})
		if err != nil {
			logger.Warn("invite_invalidate_failed", "invite", id, "error", err)
			continue
		}
		if did {
			n++
			telemetry.RecordInviteOutcome("invalidated")
		}
	}
	return n, nil
}
