package app

import (
	"context"
	"time"

	"github.com/angelurano/tr3s/internal/access"
)

type SpaceAccess struct {
	Status      access.Status `json:"status"`
	CanAccess   bool          `json:"canAccess"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
	Space       *SpaceView    `json:"space,omitempty"`
}

// GetSpaceAccess never fails for denial reasons; only store failures are errors.
func (s *Service) GetSpaceAccess(ctx context.Context, callerID, spaceID string) (SpaceAccess, error) {
	res, err := s.resolve(ctx, callerID, spaceID)
	if err != nil {
		return SpaceAccess{}, err
	}
	out := SpaceAccess{Status: res.Status, CanAccess: access.CanParticipate(res.Status)}
	if res.Membership != nil && res.Status != access.StatusSpaceNotFound {
		lastUpdated := res.Membership.LastUpdated
		out.LastUpdated = &lastUpdated
	}
	if out.CanAccess && res.Space != nil {
		view := spaceView(*res.Space)
		out.Space = &view
	}
	return out, nil
}

const (
	NavSpaceNotFound   = "space_not_found"
	NavNotMember       = "not_member"
	NavAccessDenied    = "access_denied"
	NavUnauthenticated = "unauthenticated"
)

type Navigation struct {
	Success     bool          `json:"success"`
	Space       *SpaceView    `json:"space,omitempty"`
	UserStatus  access.Status `json:"userStatus,omitempty"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// GetSpaceForNavigation answers whether the client may route into the space.
func (s *Service) GetSpaceForNavigation(ctx context.Context, callerID, spaceID string) (Navigation, error) {
	result, err := s.GetSpaceAccess(ctx, callerID, spaceID)
	if err != nil {
		return Navigation{}, err
	}
	switch result.Status {
	case access.StatusUnauthenticated:
		return Navigation{Error: NavUnauthenticated}, nil
	case access.StatusSpaceNotFound:
		return Navigation{Error: NavSpaceNotFound}, nil
	case access.StatusNotRelated:
		return Navigation{Error: NavNotMember}, nil
	case access.StatusPending, access.StatusRejected:
		return Navigation{Error: NavAccessDenied, UserStatus: result.Status, LastUpdated: result.LastUpdated}, nil
	}
	return Navigation{Success: true, Space: result.Space, UserStatus: result.Status, LastUpdated: result.LastUpdated}, nil
}
