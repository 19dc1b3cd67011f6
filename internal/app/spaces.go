package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelurano/tr3s/internal/access"
	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/membership"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

type SpaceInput struct {
	Title    string `json:"title" validate:"min=3,max=50"`
	ImageRef int    `json:"imageRef" validate:"min=-1,max=1084"`
}

func (in SpaceInput) normalized() SpaceInput {
	in.Title = strings.TrimSpace(in.Title)
	return in
}

// CreateSpace inserts an inactive space owned by the caller together with the
// owner membership row.
func (s *Service) CreateSpace(ctx context.Context, callerID string, input SpaceInput) (SpaceView, error) {
	if err := requireCaller(callerID); err != nil {
		return SpaceView{}, err
	}
	input = input.normalized()
	if err := validateInput("Invalid space", input); err != nil {
		return SpaceView{}, err
	}

	owned, err := s.store.CountSpacesByOwner(ctx, callerID)
	if err != nil {
		return SpaceView{}, err
	}
	if owned >= s.cfg.MaxOwnedSpaces {
		return SpaceView{}, apperr.Capacity(fmt.Sprintf("User already has %d spaces", s.cfg.MaxOwnedSpaces))
	}

	now := s.now()
	space, err := s.store.CreateSpace(ctx,
		store.Space{Title: input.Title, ImageRef: input.ImageRef, OwnerID: callerID, IsActive: false, CreatedAt: now},
		store.Membership{UserID: callerID, Status: store.MembershipOwner, LastUpdated: now},
	)
	if err != nil {
		return SpaceView{}, err
	}
	s.publish(ctx, feed.KindSpaceChanged, space.ID, callerID)
	return spaceView(space), nil
}

func (s *Service) UpdateSpace(ctx context.Context, callerID, spaceID string, input SpaceInput) (SpaceView, error) {
	res, err := s.owner(ctx, callerID, spaceID)
	if err != nil {
		return SpaceView{}, err
	}
	input = input.normalized()
	if err := validateInput("Invalid space", input); err != nil {
		return SpaceView{}, err
	}
	space, err := s.store.UpdateSpace(ctx, res.SpaceID, input.Title, input.ImageRef)
	if err != nil {
		return SpaceView{}, err
	}
	s.publish(ctx, feed.KindSpaceChanged, space.ID, callerID)
	return spaceView(space), nil
}

func (s *Service) DeleteSpace(ctx context.Context, callerID, spaceID string) error {
	res, err := s.owner(ctx, callerID, spaceID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSpace(ctx, res.SpaceID); err != nil {
		return err
	}
	s.publish(ctx, feed.KindSpaceChanged, res.SpaceID, callerID)
	return nil
}

func (s *Service) ListMySpaces(ctx context.Context, callerID string) ([]SpaceView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	spaces, err := s.store.ListSpacesByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	out := make([]SpaceView, 0, len(spaces))
	for _, space := range spaces {
		out = append(out, spaceView(space))
	}
	return out, nil
}

// ListUserSpaces lists the spaces userID owns. Other callers only see the
// active ones, so inactive spaces stay hidden.
func (s *Service) ListUserSpaces(ctx context.Context, callerID, userID string) ([]SpaceView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	ownerID, ok := util.NormalizeID(userID)
	if !ok {
		return []SpaceView{}, nil
	}
	spaces, err := s.store.ListSpacesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]SpaceView, 0, len(spaces))
	for _, space := range spaces {
		if ownerID != callerID && !space.IsActive {
			continue
		}
		out = append(out, spaceView(space))
	}
	return out, nil
}

// ActivateSpace turns the space on, stamps lastActive and makes sure the
// owner membership row exists again after an owner leave.
func (s *Service) ActivateSpace(ctx context.Context, callerID, spaceID string) (SpaceView, error) {
	res, err := s.owner(ctx, callerID, spaceID)
	if err != nil {
		return SpaceView{}, err
	}
	now := s.now()
	space, err := s.store.SetSpaceActive(ctx, res.SpaceID, true, &now)
	if err != nil {
		return SpaceView{}, err
	}

	ownerRow, err := s.membershipOf(ctx, space.OwnerID, space.ID)
	if err != nil {
		return SpaceView{}, err
	}
	if _, err := s.apply(ctx, membership.RestoreOwner(space, ownerRow, now)); err != nil {
		return SpaceView{}, err
	}

	s.publish(ctx, feed.KindSpaceChanged, space.ID, callerID)
	return spaceView(space), nil
}

// EnableUserSpace is the name older clients call ActivateSpace by.
func (s *Service) EnableUserSpace(ctx context.Context, callerID, spaceID string) (SpaceView, error) {
	return s.ActivateSpace(ctx, callerID, spaceID)
}

// HeartbeatSpace keeps an owner's space active. Heartbeats from anyone else
// are accepted and ignored.
func (s *Service) HeartbeatSpace(ctx context.Context, callerID, spaceID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	res, err := s.resolve(ctx, callerID, spaceID)
	if err != nil {
		return err
	}
	if res.Status == access.StatusSpaceNotFound {
		return apperr.NotFound("Space not found")
	}
	if res.Status != access.StatusOwner {
		return nil
	}
	now := s.now()
	space, err := s.store.SetSpaceActive(ctx, res.SpaceID, true, &now)
	if err != nil {
		return err
	}
	if res.Space.IsActive {
		return nil
	}
	if _, err := s.apply(ctx, membership.RestoreOwner(space, res.Membership, now)); err != nil {
		return err
	}
	s.publish(ctx, feed.KindSpaceChanged, res.SpaceID, callerID)
	return nil
}
