package app

import (
	"context"
	"errors"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/notify"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

func (s *Service) SendFriendRequest(ctx context.Context, callerID, toUserID string) (FriendshipView, error) {
	if err := requireCaller(callerID); err != nil {
		return FriendshipView{}, err
	}
	toID, ok := util.NormalizeID(toUserID)
	if !ok {
		return FriendshipView{}, apperr.NotFound("User not found")
	}
	if toID == callerID {
		return FriendshipView{}, apperr.InvalidState("Cannot send a friend request to yourself")
	}
	if _, err := s.store.GetUserByID(ctx, toID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return FriendshipView{}, apperr.NotFound("User not found")
		}
		return FriendshipView{}, err
	}

	_, err := s.store.FindFriendship(ctx, callerID, toID)
	switch {
	case err == nil:
		return FriendshipView{}, apperr.InvalidState("Friendship already exists")
	case !errors.Is(err, store.ErrNotFound):
		return FriendshipView{}, err
	}

	saved, err := s.store.InsertFriendship(ctx, store.Friendship{
		FromID:      callerID,
		ToID:        toID,
		Status:      store.FriendshipPending,
		LastUpdated: s.now(),
	})
	if err != nil {
		return FriendshipView{}, err
	}
	s.emit(ctx, []notify.Event{notify.FriendRequest(toID, saved.ID, callerID)})
	return friendshipView(saved), nil
}

// incoming loads a pending friendship addressed to the caller.
func (s *Service) incoming(ctx context.Context, callerID, friendshipID string) (store.Friendship, error) {
	if err := requireCaller(callerID); err != nil {
		return store.Friendship{}, err
	}
	id, ok := util.NormalizeID(friendshipID)
	if !ok {
		return store.Friendship{}, apperr.NotFound("Friend request not found")
	}
	friendship, err := s.store.GetFriendship(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Friendship{}, apperr.NotFound("Friend request not found")
	}
	if err != nil {
		return store.Friendship{}, err
	}
	if friendship.ToID != callerID {
		return store.Friendship{}, apperr.AccessDenied("Only the recipient can answer a friend request")
	}
	if friendship.Status != store.FriendshipPending {
		return store.Friendship{}, apperr.InvalidState("Friend request is not pending")
	}
	return friendship, nil
}

func (s *Service) AcceptFriendRequest(ctx context.Context, callerID, friendshipID string) (FriendshipView, error) {
	friendship, err := s.incoming(ctx, callerID, friendshipID)
	if err != nil {
		return FriendshipView{}, err
	}
	saved, err := s.store.UpdateFriendshipStatus(ctx, friendship.ID, store.FriendshipAccepted, s.now())
	if err != nil {
		return FriendshipView{}, err
	}
	s.emit(ctx, []notify.Event{notify.FriendAccepted(saved.FromID, saved.ID, saved.ToID)})
	return friendshipView(saved), nil
}

func (s *Service) RejectFriendRequest(ctx context.Context, callerID, friendshipID string) error {
	friendship, err := s.incoming(ctx, callerID, friendshipID)
	if err != nil {
		return err
	}
	return s.store.DeleteFriendship(ctx, friendship.ID)
}

// RemoveFriend deletes the friendship; either party may do it.
func (s *Service) RemoveFriend(ctx context.Context, callerID, friendshipID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	id, ok := util.NormalizeID(friendshipID)
	if !ok {
		return apperr.NotFound("Friendship not found")
	}
	friendship, err := s.store.GetFriendship(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Friendship not found")
	}
	if err != nil {
		return err
	}
	if friendship.FromID != callerID && friendship.ToID != callerID {
		return apperr.NotFound("Friendship not found")
	}
	return s.store.DeleteFriendship(ctx, id)
}

func (s *Service) ListFriends(ctx context.Context, callerID string) ([]FriendView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListFriendships(ctx, callerID, store.FriendshipAccepted)
	if err != nil {
		return nil, err
	}
	return s.friendViews(ctx, callerID, rows)
}

func (s *Service) ListPendingFriendRequests(ctx context.Context, callerID string) ([]FriendView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListIncomingFriendships(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return s.friendViews(ctx, callerID, rows)
}

// GetFriendshipWith returns the friendship between the caller and userID, or nil.
func (s *Service) GetFriendshipWith(ctx context.Context, callerID, userID string) (*FriendshipView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	otherID, ok := util.NormalizeID(userID)
	if !ok {
		return nil, nil
	}
	friendship, err := s.store.FindFriendship(ctx, callerID, otherID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	view := friendshipView(friendship)
	return &view, nil
}

// friendViews resolves the other party of each row. Rows whose user is gone are skipped.
func (s *Service) friendViews(ctx context.Context, callerID string, rows []store.Friendship) ([]FriendView, error) {
	out := make([]FriendView, 0, len(rows))
	for _, row := range rows {
		otherID := row.FromID
		if otherID == callerID {
			otherID = row.ToID
		}
		other, err := s.store.GetUserByID(ctx, otherID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, FriendView{FriendshipID: row.ID, Status: row.Status, Since: row.LastUpdated, User: other.Profile()})
	}
	return out, nil
}
