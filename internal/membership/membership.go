// Package membership holds the join-request state machine. Every function is
// pure: it inspects current rows and returns the mutation to apply plus the
// notifications to emit afterwards.
package membership

import (
	"math"
	"time"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/notify"
	"github.com/angelurano/tr3s/internal/store"
)

type Op string

const (
	OpNone   Op = "none"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Transition struct {
	Op         Op
	Membership store.Membership
	Events     []notify.Event
}

// LeavePlan extends a transition with the space-wide effects of leaving.
type LeavePlan struct {
	Transition
	// DeactivateSpace and ClearSpacePresence are set when the owner leaves.
	DeactivateSpace    bool
	ClearSpacePresence bool
}

const DefaultRejectCooldown = 5 * time.Minute

func isOwner(space store.Space, userID string) bool {
	return space.OwnerID == userID
}

// RequestJoin moves the requester to pending, inserting a row or re-opening a
// rejected one once the cooldown has passed.
func RequestJoin(space store.Space, requesterID string, existing *store.Membership, now time.Time, cooldown time.Duration) (Transition, error) {
	if !space.IsActive {
		return Transition{}, apperr.NotFound("Space not found")
	}
	if isOwner(space, requesterID) {
		return Transition{}, apperr.InvalidState("Already a member of this space")
	}
	events := []notify.Event{notify.SpaceRequest(space.OwnerID, space.ID, requesterID)}

	if existing == nil {
		return Transition{
			Op: OpInsert,
			Membership: store.Membership{
				UserID:      requesterID,
				SpaceID:     space.ID,
				Status:      store.MembershipPending,
				LastUpdated: now,
			},
			Events: events,
		}, nil
	}

	switch existing.Status {
	case store.MembershipOwner, store.MembershipAccepted:
		return Transition{}, apperr.InvalidState("Already a member of this space")
	case store.MembershipPending:
		return Transition{}, apperr.InvalidState("Request already pending")
	case store.MembershipRejected:
		if wait := cooldown - now.Sub(existing.LastUpdated); wait > 0 {
			return Transition{}, apperr.RateLimited("Must wait before requesting again", int(math.Ceil(wait.Seconds())))
		}
		next := *existing
		next.Status = store.MembershipPending
		next.LastUpdated = now
		return Transition{Op: OpUpdate, Membership: next, Events: events}, nil
	default:
		return Transition{}, apperr.InvalidState("Unknown membership status")
	}
}

func decide(space store.Space, callerID string, target *store.Membership, now time.Time, status store.MembershipStatus) (Transition, error) {
	if !isOwner(space, callerID) {
		return Transition{}, apperr.AccessDenied("Only the owner can answer join requests")
	}
	if target == nil || target.SpaceID != space.ID {
		return Transition{}, apperr.NotFound("Request not found")
	}
	if target.Status != store.MembershipPending {
		return Transition{}, apperr.InvalidState("Request is not pending")
	}
	next := *target
	next.Status = status
	next.LastUpdated = now

	event := notify.SpaceAccessGranted(target.UserID, space.ID)
	if status == store.MembershipRejected {
		event = notify.SpaceAccessDenied(target.UserID, space.ID)
	}
	return Transition{Op: OpUpdate, Membership: next, Events: []notify.Event{event}}, nil
}

func Accept(space store.Space, callerID string, target *store.Membership, now time.Time) (Transition, error) {
	return decide(space, callerID, target, now, store.MembershipAccepted)
}

// Reject stamps the row so the cooldown runs from the rejection.
func Reject(space store.Space, callerID string, target *store.Membership, now time.Time) (Transition, error) {
	return decide(space, callerID, target, now, store.MembershipRejected)
}

func Cancel(callerID string, existing *store.Membership) (Transition, error) {
	if existing == nil {
		return Transition{}, apperr.NotFound("Request not found")
	}
	if existing.UserID != callerID {
		return Transition{}, apperr.AccessDenied("Only the requester can cancel a request")
	}
	if existing.Status != store.MembershipPending {
		return Transition{}, apperr.InvalidState("Request is not pending")
	}
	return Transition{Op: OpDelete, Membership: *existing}, nil
}

func Kick(space store.Space, callerID, targetUserID string, target *store.Membership) (Transition, error) {
	if !isOwner(space, callerID) {
		return Transition{}, apperr.AccessDenied("Only the owner can remove members")
	}
	if isOwner(space, targetUserID) {
		return Transition{}, apperr.InvalidState("The owner cannot be removed")
	}
	if target == nil {
		return Transition{}, apperr.NotFound("Member not found")
	}
	if target.Status != store.MembershipAccepted {
		return Transition{}, apperr.InvalidState("User is not a member of this space")
	}
	return Transition{Op: OpDelete, Membership: *target}, nil
}

// Leave removes the caller from the space. When the owner leaves, the space
// goes inactive and loses all presence; ownership stays on the space record.
func Leave(space store.Space, callerID string, existing *store.Membership) (LeavePlan, error) {
	if isOwner(space, callerID) {
		plan := LeavePlan{Transition: Transition{Op: OpNone}, DeactivateSpace: true, ClearSpacePresence: true}
		if existing != nil {
			plan.Op = OpDelete
			plan.Membership = *existing
		}
		return plan, nil
	}
	if existing == nil {
		return LeavePlan{}, apperr.NotFound("Not a member of this space")
	}
	return LeavePlan{Transition: Transition{Op: OpDelete, Membership: *existing}}, nil
}

// RestoreOwner returns the mutation that guarantees the owner row exists.
func RestoreOwner(space store.Space, existing *store.Membership, now time.Time) Transition {
	if existing == nil {
		return Transition{Op: OpInsert, Membership: store.Membership{
			UserID:      space.OwnerID,
			SpaceID:     space.ID,
			Status:      store.MembershipOwner,
			LastUpdated: now,
		}}
	}
	if existing.Status == store.MembershipOwner {
		return Transition{Op: OpNone, Membership: *existing}
	}
	next := *existing
	next.Status = store.MembershipOwner
	next.LastUpdated = now
	return Transition{Op: OpUpdate, Membership: next}
}
