// Package access derives a caller's relationship to a space from current state.
package access

import "github.com/angelurano/tr3s/internal/store"

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusSpaceNotFound   Status = "space_not_found"
	StatusNotRelated      Status = "not_related"
	StatusPending         Status = "pending"
	StatusRejected        Status = "rejected"
	StatusOwner           Status = "owner"
	StatusAccepted        Status = "accepted"
)

type Action string

const (
	// ActionParticipate covers presence, messages and member listings.
	ActionParticipate Action = "participate"
	// ActionManage covers activation, requests, kicks and space edits.
	ActionManage Action = "manage"
)

// Resolve returns the caller's status for space. A nil space means the id did
// not resolve; a nil membership means the caller has no row for the space.
// An empty callerID is an unauthenticated caller.
//
// Inactive spaces read as not found to everyone except the owner, so existence
// is not leaked to non-owners.
func Resolve(callerID string, space *store.Space, membership *store.Membership) Status {
	if callerID == "" {
		return StatusUnauthenticated
	}
	if space == nil {
		return StatusSpaceNotFound
	}
	if space.OwnerID == callerID || (membership != nil && membership.Status == store.MembershipOwner) {
		return StatusOwner
	}
	if membership == nil {
		if !space.IsActive {
			return StatusSpaceNotFound
		}
		return StatusNotRelated
	}
	if !space.IsActive {
		return StatusSpaceNotFound
	}
	switch membership.Status {
	case store.MembershipPending:
		return StatusPending
	case store.MembershipAccepted:
		return StatusAccepted
	case store.MembershipRejected:
		return StatusRejected
	default:
		return StatusNotRelated
	}
}

func CanParticipate(status Status) bool {
	return status == StatusOwner || status == StatusAccepted
}

func Can(status Status, action Action) bool {
	switch action {
	case ActionParticipate:
		return CanParticipate(status)
	case ActionManage:
		return status == StatusOwner
	default:
		return false
	}
}
