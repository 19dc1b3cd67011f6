package app

import (
	"context"
	"time"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/membership"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

// RequestJoinSpace files a pending request for the caller and notifies the owner.
func (s *Service) RequestJoinSpace(ctx context.Context, callerID, spaceID string) (MembershipView, error) {
	if err := requireCaller(callerID); err != nil {
		return MembershipView{}, err
	}
	res, err := s.resolve(ctx, callerID, spaceID)
	if err != nil {
		return MembershipView{}, err
	}
	if res.Space == nil {
		return MembershipView{}, apperr.NotFound("Space not found")
	}

	t, err := membership.RequestJoin(*res.Space, callerID, res.Membership, s.now(), s.cfg.RejectCooldown)
	if err != nil {
		return MembershipView{}, err
	}
	saved, err := s.apply(ctx, t)
	if err != nil {
		return MembershipView{}, err
	}
	s.emit(ctx, t.Events)
	s.publish(ctx, feed.KindMembershipChanged, saved.SpaceID, callerID)
	return membershipView(saved, nil), nil
}

func (s *Service) AcceptSpaceRequest(ctx context.Context, callerID, spaceID, userID string) (MembershipView, error) {
	return s.decideRequest(ctx, callerID, spaceID, userID, membership.Accept)
}

func (s *Service) RejectSpaceRequest(ctx context.Context, callerID, spaceID, userID string) (MembershipView, error) {
	return s.decideRequest(ctx, callerID, spaceID, userID, membership.Reject)
}

type decision func(store.Space, string, *store.Membership, time.Time) (membership.Transition, error)

func (s *Service) decideRequest(ctx context.Context, callerID, spaceID, userID string, decide decision) (MembershipView, error) {
	res, err := s.owner(ctx, callerID, spaceID)
	if err != nil {
		return MembershipView{}, err
	}
	targetID, ok := util.NormalizeID(userID)
	if !ok {
		return MembershipView{}, apperr.NotFound("Request not found")
	}
	target, err := s.membershipOf(ctx, targetID, res.SpaceID)
	if err != nil {
		return MembershipView{}, err
	}

	t, err := decide(*res.Space, callerID, target, s.now())
	if err != nil {
		return MembershipView{}, err
	}
	saved, err := s.apply(ctx, t)
	if err != nil {
		return MembershipView{}, err
	}
	s.emit(ctx, t.Events)
	s.publish(ctx, feed.KindMembershipChanged, res.SpaceID, targetID)
	return membershipView(saved, nil), nil
}

func (s *Service) CancelJoinRequest(ctx context.Context, callerID, spaceID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	id, ok := util.NormalizeID(spaceID)
	if !ok {
		return apperr.NotFound("Request not found")
	}
	existing, err := s.membershipOf(ctx, callerID, id)
	if err != nil {
		return err
	}
	t, err := membership.Cancel(callerID, existing)
	if err != nil {
		return err
	}
	if _, err := s.apply(ctx, t); err != nil {
		return err
	}
	s.publish(ctx, feed.KindMembershipChanged, id, callerID)
	return nil
}

// KickUserFromSpace removes a member and their presence. The kicked user is not notified.
func (s *Service) KickUserFromSpace(ctx context.Context, callerID, spaceID, userID string) error {
	res, err := s.owner(ctx, callerID, spaceID)
	if err != nil {
		return err
	}
	targetID, ok := util.NormalizeID(userID)
	if !ok {
		return apperr.NotFound("Member not found")
	}
	target, err := s.membershipOf(ctx, targetID, res.SpaceID)
	if err != nil {
		return err
	}
	t, err := membership.Kick(*res.Space, callerID, targetID, target)
	if err != nil {
		return err
	}
	if _, err := s.apply(ctx, t); err != nil {
		return err
	}
	if err := s.store.DeletePresence(ctx, targetID, res.SpaceID); err != nil {
		return err
	}
	s.publish(ctx, feed.KindMembershipChanged, res.SpaceID, targetID)
	s.publish(ctx, feed.KindPresenceChanged, res.SpaceID, targetID)
	return nil
}

// LeaveSpace drops the caller from the space. An owner leaving deactivates
// the space and clears everyone's presence.
func (s *Service) LeaveSpace(ctx context.Context, callerID, spaceID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	res, err := s.resolve(ctx, callerID, spaceID)
	if err != nil {
		return err
	}
	if res.Space == nil {
		return apperr.NotFound("Space not found")
	}

	plan, err := membership.Leave(*res.Space, callerID, res.Membership)
	if err != nil {
		return err
	}

	if plan.DeactivateSpace {
		now := s.now()
		if _, err := s.store.SetSpaceActive(ctx, res.SpaceID, false, &now); err != nil {
			return err
		}
	}
	if plan.ClearSpacePresence {
		if _, err := s.store.DeleteSpacePresence(ctx, res.SpaceID); err != nil {
			return err
		}
	} else if err := s.store.DeletePresence(ctx, callerID, res.SpaceID); err != nil {
		return err
	}
	if _, err := s.apply(ctx, plan.Transition); err != nil {
		return err
	}

	if plan.DeactivateSpace {
		s.publish(ctx, feed.KindSpaceChanged, res.SpaceID, callerID)
	}
	s.publish(ctx, feed.KindMembershipChanged, res.SpaceID, callerID)
	s.publish(ctx, feed.KindPresenceChanged, res.SpaceID, callerID)
	return nil
}

// ListSpaceRequests lists pending requests for the owner, oldest first.
func (s *Service) ListSpaceRequests(ctx context.Context, callerID, spaceID string) ([]MembershipView, error) {
	res, err := s.owner(ctx, callerID, spaceID)
	if err != nil {
		return nil, err
	}
	return s.listMembers(ctx, res.SpaceID, store.MembershipPending)
}

func (s *Service) ListSpaceMembers(ctx context.Context, callerID, spaceID string) ([]MembershipView, error) {
	res, err := s.participant(ctx, callerID, spaceID)
	if err != nil {
		return nil, err
	}
	return s.listMembers(ctx, res.SpaceID, store.MembershipOwner, store.MembershipAccepted)
}

func (s *Service) listMembers(ctx context.Context, spaceID string, statuses ...store.MembershipStatus) ([]MembershipView, error) {
	rows, err := s.store.ListMemberships(ctx, spaceID, statuses...)
	if err != nil {
		return nil, err
	}
	out := make([]MembershipView, 0, len(rows))
	for _, row := range rows {
		if row.User == nil {
			continue
		}
		out = append(out, membershipView(row.Membership, row.User))
	}
	return out, nil
}
