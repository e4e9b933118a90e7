// Package moderation covers user blocking and message reports. Blocks
// are directional and idempotent; reports walk a small review state
// machine that never reopens once closed.
package moderation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/invites"
	"parlor/pkg/logger"
	"parlor/pkg/messages"
	"parlor/pkg/models"
	"parlor/pkg/store"
	"parlor/pkg/validation"
)

func now() int64 { return time.Now().UTC().UnixNano() }

// Block makes blocker block blocked. Repeating the call is a no-op
// that keeps the original timestamp. Pending invitations between the
// two users are declined as a side effect.
func Block(blocker, blocked string) error {
	if err := validation.RequireID("blocker", blocker); err != nil {
		return err
	}
	if err := validation.RequireID("blocked", blocked); err != nil {
		return err
	}
	if blocker == blocked {
		return errs.E(errs.InvalidArgument, "cannot block yourself")
	}
	rel := &models.BlockRelation{Blocker: blocker, Blocked: blocked, TS: now()}
	if err := store.SaveBlock(rel); err != nil {
		return errs.Wrap(errs.Internal, err, "save block")
	}
	if n, err := invites.InvalidateBetween(blocker, blocked); err != nil {
		logger.Warn("block_invite_invalidate_failed", "blocker", blocker, "blocked", blocked, "error", err)
	} else if n > 0 {
		logger.Info("block_invalidated_invites", "blocker", blocker, "count", n)
	}
	logger.AuditEvent("user_blocked", "blocker", blocker, "blocked", blocked)
	_ = events.Publish(events.Event{
		Type:     events.UserBlocked,
		Audience: []string{blocker},
		TS:       rel.TS,
		Payload:  rel,
	})
	return nil
}

// Unblock removes the directional block; absent rows are a no-op.
func Unblock(blocker, blocked string) error {
	if err := store.DeleteBlock(blocker, blocked); err != nil {
		return errs.Wrap(errs.Internal, err, "delete block")
	}
	logger.AuditEvent("user_unblocked", "blocker", blocker, "blocked", blocked)
	return nil
}

// IsBlocked reports whether blocker has blocked blocked.
func IsBlocked(blocker, blocked string) (bool, error) {
	ok, err := store.BlockExists(blocker, blocked)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "check block")
	}
	return ok, nil
}

// Blocks lists every block issued by the user.
func Blocks(blocker string) ([]models.BlockRelation, error) {
	out, err := store.ListBlocks(blocker)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list blocks")
	}
	return out, nil
}

// ReportInput describes a new message report.
type ReportInput struct {
	MessageID string
	Reporter  string
	Reason    string
	Detail    string
	Evidence  []string
}

// Report files a report against a message the reporter can see.
func Report(in ReportInput) (*models.Report, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, errs.E(errs.InvalidArgument, "report reason is required")
	}
	if _, err := messages.Get(in.MessageID, in.Reporter); err != nil {
		return nil, err
	}
	rp := &models.Report{
		ID:        uuid.NewString(),
		MessageID: in.MessageID,
		Reporter:  in.Reporter,
		Reason:    in.Reason,
		Detail:    in.Detail,
		Evidence:  in.Evidence,
		Status:    models.ReportPending,
		CreatedTS: now(),
	}
	if err := store.SaveReport(rp); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "save report")
	}
	logger.AuditEvent("report_filed", "report", rp.ID, "msg", in.MessageID, "reporter", in.Reporter)
	return rp, nil
}

// ReviewInput moves a report through its state machine.
type ReviewInput struct {
	ReportID string
	Reviewer string
	Status   models.ReportStatus
	Notes    string
	// RemoveMessage redacts the reported message when the review closes
	// as resolved.
	RemoveMessage bool
}

// Review applies a moderation decision. pending may move to reviewed,
// resolved or dismissed; reviewed may still close; closed reports
// conflict. The optional message removal happens only on resolved.
func Review(in ReviewInput) (*models.Report, error) {
	if !in.Status.Valid() || in.Status == models.ReportPending {
		return nil, errs.E(errs.InvalidArgument, "invalid review status %q", string(in.Status))
	}
	if in.RemoveMessage && in.Status != models.ReportResolved {
		return nil, errs.E(errs.InvalidArgument, "message removal requires a resolved review")
	}
	rp, err := store.UpdateReport(in.ReportID, func(rp *models.Report) error {
		if rp.Status.Terminal() {
			return errs.E(errs.Conflict, "report %s is already %s", rp.ID, rp.Status)
		}
		rp.Status = in.Status
		rp.AssignedTo = in.Reviewer
		if in.Notes != "" {
			rp.Notes = in.Notes
		}
		if in.Status.Terminal() {
			rp.ResolvedTS = now()
		}
		return nil
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.NotFound, "report %s not found", in.ReportID)
		}
		if errs.KindOf(err) != errs.Internal {
			return nil, err
		}
		return nil, errs.Wrap(errs.Internal, err, "review report")
	}
	if in.RemoveMessage {
		if err := messages.Redact(rp.MessageID, in.Reviewer); err != nil && !errs.IsKind(err, errs.NotFound) {
			logger.Error("report_redact_failed", "report", rp.ID, "msg", rp.MessageID, "error", err)
		}
	}
	logger.AuditEvent("report_reviewed", "report", rp.ID, "reviewer", in.Reviewer, "status", string(rp.Status))
	return rp, nil
}

// ListReports returns reports, optionally filtered by status. Empty
// status lists everything.
func ListReports(status models.ReportStatus) ([]models.Report, error) {
	if status != "" && !status.Valid() {
		return nil, errs.E(errs.InvalidArgument, "invalid report status %q", string(status))
	}
	out, err := store.ListReports(status)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list reports")
	}
	return out, nil
}
