package app

import (
	"context"
	"fmt"
	"log"

	"github.com/angelurano/tr3s/internal/feed"
)

type SweepResult struct {
	Scanned     int `json:"scanned"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}

// DeactivateInactiveSpaces turns off active spaces whose owner has not
// heartbeated within the inactivity threshold and marks their presence rows
// absent. A failure on one space is logged and the sweep moves on.
func (s *Service) DeactivateInactiveSpaces(ctx context.Context) (SweepResult, error) {
	spaces, err := s.store.ListActiveSpaces(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list active spaces: %w", err)
	}

	now := s.now()
	result := SweepResult{Scanned: len(spaces)}
	for _, space := range spaces {
		if space.LastActive == nil || now.Sub(*space.LastActive) <= s.cfg.InactiveThreshold {
			continue
		}
		if _, err := s.store.SetSpaceActive(ctx, space.ID, false, nil); err != nil {
			log.Printf("sweep: deactivate space %s: %v", space.ID, err)
			result.Failed++
			continue
		}
		if _, err := s.store.MarkSpacePresenceAbsent(ctx, space.ID); err != nil {
			log.Printf("sweep: clear presence for space %s: %v", space.ID, err)
			result.Failed++
			continue
		}
		result.Deactivated++
		s.publish(ctx, feed.KindSpaceChanged, space.ID, "")
	}
	return result, nil
}

// Sweep adapts DeactivateInactiveSpaces to the job runner signature.
func (s *Service) Sweep(ctx context.Context) error {
	result, err := s.DeactivateInactiveSpaces(ctx)
	if err != nil {
		return err
	}
	if result.Deactivated > 0 || result.Failed > 0 {
		log.Printf("sweep: scanned=%d deactivated=%d failed=%d", result.Scanned, result.Deactivated, result.Failed)
	}
	return nil
}
