package app

import (
	"context"

	"github.com/angelurano/tr3s/internal/access"
	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/membership"
	"github.com/angelurano/tr3s/internal/presence"
	"github.com/angelurano/tr3s/internal/store"
)

type PresenceInput struct {
	CursorPosition *store.CursorPosition `json:"cursorPosition"`
	Present        bool                  `json:"present"`
	Typing         bool                  `json:"typing"`
}

// UpsertPresence records the caller's cursor and flags for the space.
// A missing cursor is stored as offscreen. An owner who left gets the owner
// row back first, so presence never outlives its membership row.
func (s *Service) UpsertPresence(ctx context.Context, callerID, spaceID string, input PresenceInput) (PresenceView, error) {
	res, err := s.participant(ctx, callerID, spaceID)
	if err != nil {
		return PresenceView{}, err
	}
	if res.Status == access.StatusOwner && res.Membership == nil {
		if _, err := s.apply(ctx, membership.RestoreOwner(*res.Space, nil, s.now())); err != nil {
			return PresenceView{}, err
		}
	}
	cursor := presence.Offscreen
	if input.CursorPosition != nil {
		cursor = *input.CursorPosition
	}
	saved, err := s.store.UpsertPresence(ctx, store.Presence{
		UserID:         callerID,
		SpaceID:        res.SpaceID,
		Present:        input.Present,
		CursorPosition: cursor,
		Typing:         input.Typing,
		LastUpdated:    s.now(),
	})
	if err != nil {
		return PresenceView{}, err
	}
	s.publish(ctx, feed.KindPresenceChanged, res.SpaceID, callerID)
	return presenceView(saved, nil), nil
}

// GetSpacePresence lists who else is online in the space. Callers without
// access get an empty list rather than an error.
func (s *Service) GetSpacePresence(ctx context.Context, callerID, spaceID string) ([]PresenceView, error) {
	res, err := s.participant(ctx, callerID, spaceID)
	if err != nil {
		if apperr.KindOf(err) != "" {
			return []PresenceView{}, nil
		}
		return nil, err
	}
	now := s.now()
	rows, err := s.store.ListPresence(ctx, res.SpaceID, now.Add(-s.cfg.PresenceStaleness))
	if err != nil {
		return nil, err
	}
	online := presence.Filter(rows, callerID, now, s.cfg.PresenceStaleness)
	out := make([]PresenceView, 0, len(online))
	for _, row := range online {
		out = append(out, presenceView(row.Presence, row.User))
	}
	return out, nil
}
