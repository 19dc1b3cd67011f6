package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/angelurano/tr3s/internal/access"
	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/config"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/membership"
	"github.com/angelurano/tr3s/internal/notify"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

// Store is the persistence contract the service runs on. PostgresStore and
// MemoryStore both satisfy it.
type Store interface {
	Ping(context.Context) error

	GetUserByID(context.Context, string) (store.User, error)
	GetUserByExternalID(context.Context, string) (store.User, error)
	UpsertUser(context.Context, store.User) (store.User, error)

	GetSpace(context.Context, string) (store.Space, error)
	CreateSpace(context.Context, store.Space, store.Membership) (store.Space, error)
	UpdateSpace(context.Context, string, string, int) (store.Space, error)
	SetSpaceActive(context.Context, string, bool, *time.Time) (store.Space, error)
	DeleteSpace(context.Context, string) error
	ListSpacesByOwner(context.Context, string) ([]store.Space, error)
	CountSpacesByOwner(context.Context, string) (int, error)
	ListActiveSpaces(context.Context) ([]store.Space, error)

	GetMembership(context.Context, string, string) (store.Membership, error)
	InsertMembership(context.Context, store.Membership) (store.Membership, error)
	UpdateMembership(context.Context, string, store.MembershipStatus, time.Time) (store.Membership, error)
	DeleteMembership(context.Context, string) error
	ListMemberships(context.Context, string, ...store.MembershipStatus) ([]store.MemberWithUser, error)

	UpsertPresence(context.Context, store.Presence) (store.Presence, error)
	ListPresence(context.Context, string, time.Time) ([]store.PresenceWithUser, error)
	DeletePresence(context.Context, string, string) error
	DeleteSpacePresence(context.Context, string) (int, error)
	MarkSpacePresenceAbsent(context.Context, string) (int, error)

	InsertMessage(context.Context, store.Message) (store.Message, error)
	GetMessage(context.Context, string) (store.Message, error)
	DeleteMessage(context.Context, string) error
	ListMessages(context.Context, string, time.Time, int) ([]store.MessageWithAuthor, error)

	GetFriendship(context.Context, string) (store.Friendship, error)
	FindFriendship(context.Context, string, string) (store.Friendship, error)
	InsertFriendship(context.Context, store.Friendship) (store.Friendship, error)
	UpdateFriendshipStatus(context.Context, string, store.FriendshipStatus, time.Time) (store.Friendship, error)
	DeleteFriendship(context.Context, string) error
	ListFriendships(context.Context, string, store.FriendshipStatus) ([]store.Friendship, error)
	ListIncomingFriendships(context.Context, string) ([]store.Friendship, error)

	InsertNotification(context.Context, store.Notification) (store.Notification, error)
	GetNotification(context.Context, string) (store.Notification, error)
	ListNotifications(context.Context, string, time.Time, int) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string) (store.Notification, error)
	DeleteNotification(context.Context, string) error
}

type Service struct {
	cfg   config.Config
	store Store
	sink  notify.Sink
	bus   feed.Bus
	now   func() time.Time
}

func New(cfg config.Config, dataStore Store, bus feed.Bus) *Service {
	if bus == nil {
		bus = feed.NewLocalBus()
	}
	s := &Service{
		cfg:   cfg,
		store: dataStore,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
	s.sink = notify.NewStoreSink(dataStore, bus, s.clock)
	return s
}

func (s *Service) clock() time.Time {
	return s.now()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Bus() feed.Bus {
	return s.bus
}

// publish is fire-and-forget: a lost event only delays a client refresh.
func (s *Service) publish(ctx context.Context, kind feed.Kind, spaceID, userID string) {
	event := feed.Event{Kind: kind, SpaceID: spaceID, UserID: userID, At: s.now()}
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Printf("feed publish %s failed: %v", kind, err)
	}
}

func (s *Service) emit(ctx context.Context, events []notify.Event) {
	for _, event := range events {
		if err := s.sink.Emit(ctx, event); err != nil {
			log.Printf("notification to %s failed: %v", event.UserID, err)
		}
	}
}

// resolved is a snapshot of the caller's relation to one space.
type resolved struct {
	SpaceID    string
	Status     access.Status
	Space      *store.Space
	Membership *store.Membership
}

// resolve reads the space and the caller's membership and derives the access
// status. An id that does not parse resolves to space_not_found with no error.
func (s *Service) resolve(ctx context.Context, callerID, rawSpaceID string) (resolved, error) {
	if callerID == "" {
		return resolved{Status: access.StatusUnauthenticated}, nil
	}
	spaceID, ok := util.NormalizeID(rawSpaceID)
	if !ok {
		return resolved{Status: access.StatusSpaceNotFound}, nil
	}

	space, err := s.store.GetSpace(ctx, spaceID)
	if errors.Is(err, store.ErrNotFound) {
		return resolved{SpaceID: spaceID, Status: access.StatusSpaceNotFound}, nil
	}
	if err != nil {
		return resolved{}, err
	}

	var member *store.Membership
	row, err := s.store.GetMembership(ctx, callerID, spaceID)
	switch {
	case err == nil:
		member = &row
	case !errors.Is(err, store.ErrNotFound):
		return resolved{}, err
	}

	return resolved{
		SpaceID:    spaceID,
		Status:     access.Resolve(callerID, &space, member),
		Space:      &space,
		Membership: member,
	}, nil
}

// participant requires owner or accepted status. Hidden and missing spaces are
// indistinguishable from spaces the caller simply cannot use.
func (s *Service) participant(ctx context.Context, callerID, rawSpaceID string) (resolved, error) {
	if callerID == "" {
		return resolved{}, apperr.Unauthenticated("User not authenticated")
	}
	if _, ok := util.NormalizeID(rawSpaceID); !ok {
		return resolved{}, apperr.NotFound("Space not found")
	}
	res, err := s.resolve(ctx, callerID, rawSpaceID)
	if err != nil {
		return resolved{}, err
	}
	if !access.Can(res.Status, access.ActionParticipate) {
		return resolved{}, apperr.AccessDenied("No access to this space")
	}
	return res, nil
}

func (s *Service) owner(ctx context.Context, callerID, rawSpaceID string) (resolved, error) {
	if callerID == "" {
		return resolved{}, apperr.Unauthenticated("User not authenticated")
	}
	res, err := s.resolve(ctx, callerID, rawSpaceID)
	if err != nil {
		return resolved{}, err
	}
	switch {
	case res.Status == access.StatusSpaceNotFound:
		return resolved{}, apperr.NotFound("Space not found")
	case !access.Can(res.Status, access.ActionManage):
		return resolved{}, apperr.AccessDenied("Only the owner can do this")
	}
	return res, nil
}

func (s *Service) membershipOf(ctx context.Context, userID, spaceID string) (*store.Membership, error) {
	row, err := s.store.GetMembership(ctx, userID, spaceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// apply writes a membership transition. A concurrent insert for the same
// (user, space) surfaces as InvalidState.
func (s *Service) apply(ctx context.Context, t membership.Transition) (store.Membership, error) {
	switch t.Op {
	case membership.OpInsert:
		saved, err := s.store.InsertMembership(ctx, t.Membership)
		if errors.Is(err, store.ErrConflict) {
			return store.Membership{}, apperr.InvalidState("Request already pending")
		}
		return saved, err
	case membership.OpUpdate:
		return s.store.UpdateMembership(ctx, t.Membership.ID, t.Membership.Status, t.Membership.LastUpdated)
	case membership.OpDelete:
		if err := s.store.DeleteMembership(ctx, t.Membership.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.Membership{}, err
		}
		return t.Membership, nil
	case membership.OpNone:
		return t.Membership, nil
	default:
		return store.Membership{}, fmt.Errorf("apply membership: unknown op %q", t.Op)
	}
}

func requireCaller(callerID string) error {
	if callerID == "" {
		return apperr.Unauthenticated("User not authenticated")
	}
	return nil
}
