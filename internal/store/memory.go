package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/angelurano/tr3s/internal/util"
)

// MemoryStore keeps every table in maps guarded by one mutex. It honours the
// same uniqueness and ordering rules as PostgresStore.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]User
	spaces        map[string]Space
	memberships   map[string]Membership
	presences     map[string]Presence
	messages      map[string]Message
	friendships   map[string]Friendship
	notifications map[string]Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]User{},
		spaces:        map[string]Space{},
		memberships:   map[string]Membership{},
		presences:     map[string]Presence{},
		messages:      map[string]Message{},
		friendships:   map[string]Friendship{},
		notifications: map[string]Notification{},
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) profileLocked(userID string) *Profile {
	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	profile := user.Profile()
	return &profile
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return User{}, fmt.Errorf("get user: %w", ErrNotFound)
	}
	return user, nil
}

func (s *MemoryStore) GetUserByExternalID(_ context.Context, externalID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.ExternalID == externalID {
			return user, nil
		}
	}
	return User{}, fmt.Errorf("get user by external id: %w", ErrNotFound)
}

func (s *MemoryStore) UpsertUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range s.users {
		if existing.ExternalID != user.ExternalID {
			continue
		}
		existing.Name = user.Name
		existing.Username = user.Username
		existing.Email = user.Email
		existing.ImageURL = user.ImageURL
		existing.UpdatedAt = now
		s.users[id] = existing
		return existing, nil
	}
	if user.ID == "" {
		user.ID = util.NewID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetSpace(_ context.Context, spaceID string) (Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	space, ok := s.spaces[spaceID]
	if !ok {
		return Space{}, fmt.Errorf("get space: %w", ErrNotFound)
	}
	return space, nil
}

func (s *MemoryStore) CreateSpace(_ context.Context, space Space, owner Membership) (Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if space.ID == "" {
		space.ID = util.NewID()
	}
	if _, exists := s.spaces[space.ID]; exists {
		return Space{}, fmt.Errorf("insert space: %w", ErrConflict)
	}
	if owner.ID == "" {
		owner.ID = util.NewID()
	}
	owner.SpaceID = space.ID
	s.spaces[space.ID] = space
	s.memberships[owner.ID] = owner
	return space, nil
}

func (s *MemoryStore) UpdateSpace(_ context.Context, spaceID, title string, imageRef int) (Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	space, ok := s.spaces[spaceID]
	if !ok {
		return Space{}, fmt.Errorf("update space: %w", ErrNotFound)
	}
	space.Title = title
	space.ImageRef = imageRef
	s.spaces[spaceID] = space
	return space, nil
}

func (s *MemoryStore) SetSpaceActive(_ context.Context, spaceID string, active bool, lastActive *time.Time) (Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	space, ok := s.spaces[spaceID]
	if !ok {
		return Space{}, fmt.Errorf("set space active: %w", ErrNotFound)
	}
	space.IsActive = active
	if lastActive != nil {
		t := *lastActive
		space.LastActive = &t
	}
	s.spaces[spaceID] = space
	return space, nil
}

// DeleteSpace removes the space with its memberships, presence rows and messages.
func (s *MemoryStore) DeleteSpace(_ context.Context, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[spaceID]; !ok {
		return fmt.Errorf("delete space: %w", ErrNotFound)
	}
	delete(s.spaces, spaceID)
	for id, m := range s.memberships {
		if m.SpaceID == spaceID {
			delete(s.memberships, id)
		}
	}
	for id, p := range s.presences {
		if p.SpaceID == spaceID {
			delete(s.presences, id)
		}
	}
	for id, m := range s.messages {
		if m.SpaceID == spaceID {
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *MemoryStore) filterSpaces(keep func(Space) bool) []Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Space{}
	for _, space := range s.spaces {
		if keep(space) {
			out = append(out, space)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) ListSpacesByOwner(_ context.Context, ownerID string) ([]Space, error) {
	return s.filterSpaces(func(space Space) bool { return space.OwnerID == ownerID }), nil
}

func (s *MemoryStore) CountSpacesByOwner(ctx context.Context, ownerID string) (int, error) {
	spaces, _ := s.ListSpacesByOwner(ctx, ownerID)
	return len(spaces), nil
}

func (s *MemoryStore) ListActiveSpaces(context.Context) ([]Space, error) {
	return s.filterSpaces(func(space Space) bool { return space.IsActive }), nil
}

func (s *MemoryStore) GetMembership(_ context.Context, userID, spaceID string) (Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.SpaceID == spaceID {
			return m, nil
		}
	}
	return Membership{}, fmt.Errorf("get membership: %w", ErrNotFound)
}

func (s *MemoryStore) InsertMembership(_ context.Context, membership Membership) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.UserID == membership.UserID && m.SpaceID == membership.SpaceID {
			return Membership{}, fmt.Errorf("insert membership: %w", ErrConflict)
		}
	}
	if membership.ID == "" {
		membership.ID = util.NewID()
	}
	s.memberships[membership.ID] = membership
	return membership, nil
}

func (s *MemoryStore) UpdateMembership(_ context.Context, membershipID string, status MembershipStatus, at time.Time) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return Membership{}, fmt.Errorf("update membership: %w", ErrNotFound)
	}
	m.Status = status
	m.LastUpdated = at
	s.memberships[membershipID] = m
	return m, nil
}

func (s *MemoryStore) DeleteMembership(_ context.Context, membershipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[membershipID]; !ok {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}
	delete(s.memberships, membershipID)
	return nil
}

func (s *MemoryStore) ListMemberships(_ context.Context, spaceID string, statuses ...MembershipStatus) ([]MemberWithUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []MemberWithUser{}
	for _, m := range s.memberships {
		if m.SpaceID != spaceID || !hasStatus(statuses, m.Status) {
			continue
		}
		out = append(out, MemberWithUser{Membership: m, User: s.profileLocked(m.UserID)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastUpdated.Before(out[j].LastUpdated)
	})
	return out, nil
}

func hasStatus(statuses []MembershipStatus, status MembershipStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpsertPresence(_ context.Context, presence Presence) (Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.presences {
		if existing.UserID != presence.UserID || existing.SpaceID != presence.SpaceID {
			continue
		}
		if existing.LastUpdated.After(presence.LastUpdated) {
			return existing, nil
		}
		presence.ID = id
		s.presences[id] = presence
		return presence, nil
	}
	if presence.ID == "" {
		presence.ID = util.NewID()
	}
	s.presences[presence.ID] = presence
	return presence, nil
}

func (s *MemoryStore) ListPresence(_ context.Context, spaceID string, since time.Time) ([]PresenceWithUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []PresenceWithUser{}
	for _, p := range s.presences {
		if p.SpaceID != spaceID || p.LastUpdated.Before(since) {
			continue
		}
		out = append(out, PresenceWithUser{Presence: p, User: s.profileLocked(p.UserID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out, nil
}

func (s *MemoryStore) DeletePresence(_ context.Context, userID, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.presences {
		if p.UserID == userID && p.SpaceID == spaceID {
			delete(s.presences, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteSpacePresence(_ context.Context, spaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.presences {
		if p.SpaceID == spaceID {
			delete(s.presences, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkSpacePresenceAbsent(_ context.Context, spaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.presences {
		if p.SpaceID == spaceID && p.Present {
			p.Present = false
			s.presences[id] = p
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, message Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == "" {
		message.ID = util.NewID()
	}
	s.messages[message.ID] = message
	return message, nil
}

func (s *MemoryStore) GetMessage(_ context.Context, messageID string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	message, ok := s.messages[messageID]
	if !ok {
		return Message{}, fmt.Errorf("get message: %w", ErrNotFound)
	}
	return message, nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[messageID]; !ok {
		return fmt.Errorf("delete message: %w", ErrNotFound)
	}
	delete(s.messages, messageID)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, spaceID string, since time.Time, limit int) ([]MessageWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []MessageWithAuthor{}
	for _, m := range s.messages {
		if m.SpaceID != spaceID || m.CreatedAt.Before(since) {
			continue
		}
		out = append(out, MessageWithAuthor{Message: m, Author: s.profileLocked(m.AuthorID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetFriendship(_ context.Context, friendshipID string) (Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	friendship, ok := s.friendships[friendshipID]
	if !ok {
		return Friendship{}, fmt.Errorf("get friendship: %w", ErrNotFound)
	}
	return friendship, nil
}

func (s *MemoryStore) FindFriendship(_ context.Context, userA, userB string) (Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.friendships {
		if (f.FromID == userA && f.ToID == userB) || (f.FromID == userB && f.ToID == userA) {
			return f, nil
		}
	}
	return Friendship{}, fmt.Errorf("find friendship: %w", ErrNotFound)
}

func (s *MemoryStore) InsertFriendship(_ context.Context, friendship Friendship) (Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if friendship.ID == "" {
		friendship.ID = util.NewID()
	}
	s.friendships[friendship.ID] = friendship
	return friendship, nil
}

func (s *MemoryStore) UpdateFriendshipStatus(_ context.Context, friendshipID string, status FriendshipStatus, at time.Time) (Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[friendshipID]
	if !ok {
		return Friendship{}, fmt.Errorf("update friendship: %w", ErrNotFound)
	}
	f.Status = status
	f.LastUpdated = at
	s.friendships[friendshipID] = f
	return f, nil
}

func (s *MemoryStore) DeleteFriendship(_ context.Context, friendshipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.friendships[friendshipID]; !ok {
		return fmt.Errorf("delete friendship: %w", ErrNotFound)
	}
	delete(s.friendships, friendshipID)
	return nil
}

func (s *MemoryStore) filterFriendships(keep func(Friendship) bool) []Friendship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Friendship{}
	for _, f := range s.friendships {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out
}

func (s *MemoryStore) ListFriendships(_ context.Context, userID string, status FriendshipStatus) ([]Friendship, error) {
	return s.filterFriendships(func(f Friendship) bool {
		return (f.FromID == userID || f.ToID == userID) && f.Status == status
	}), nil
}

func (s *MemoryStore) ListIncomingFriendships(_ context.Context, userID string) ([]Friendship, error) {
	return s.filterFriendships(func(f Friendship) bool {
		return f.ToID == userID && f.Status == FriendshipPending
	}), nil
}

func (s *MemoryStore) InsertNotification(_ context.Context, notification Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = util.NewID()
	}
	if notification.Payload != nil {
		payload := *notification.Payload
		notification.Payload = &payload
	}
	s.notifications[notification.ID] = notification
	return notification, nil
}

func (s *MemoryStore) GetNotification(_ context.Context, notificationID string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return Notification{}, fmt.Errorf("get notification: %w", ErrNotFound)
	}
	return notification, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, before time.Time, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if !before.IsZero() && !n.CreatedAt.Before(before) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, notificationID string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok {
		return Notification{}, fmt.Errorf("mark notification read: %w", ErrNotFound)
	}
	n.Read = true
	s.notifications[notificationID] = n
	return n, nil
}

func (s *MemoryStore) DeleteNotification(_ context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[notificationID]; !ok {
		return fmt.Errorf("delete notification: %w", ErrNotFound)
	}
	delete(s.notifications, notificationID)
	return nil
}
