package app

import (
	"time"

	"github.com/angelurano/tr3s/internal/store"
)

type UserView struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ImageURL   string `json:"imageUrl"`
}

func userView(u store.User) UserView {
	return UserView{ID: u.ID, ExternalID: u.ExternalID, Name: u.Name, Username: u.Username, Email: u.Email, ImageURL: u.ImageURL}
}

type SpaceView struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	ImageRef   int        `json:"imageRef"`
	OwnerID    string     `json:"ownerId"`
	IsActive   bool       `json:"isActive"`
	LastActive *time.Time `json:"lastActive,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func spaceView(s store.Space) SpaceView {
	return SpaceView{
		ID:         s.ID,
		Title:      s.Title,
		ImageRef:   s.ImageRef,
		OwnerID:    s.OwnerID,
		IsActive:   s.IsActive,
		LastActive: s.LastActive,
		CreatedAt:  s.CreatedAt,
	}
}

type MembershipView struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	SpaceID     string                 `json:"spaceId"`
	Status      store.MembershipStatus `json:"status"`
	LastUpdated time.Time              `json:"lastUpdated"`
	User        *store.Profile         `json:"user,omitempty"`
}

func membershipView(m store.Membership, profile *store.Profile) MembershipView {
	return MembershipView{ID: m.ID, UserID: m.UserID, SpaceID: m.SpaceID, Status: m.Status, LastUpdated: m.LastUpdated, User: profile}
}

type PresenceView struct {
	UserID         string               `json:"userId"`
	SpaceID        string               `json:"spaceId"`
	Present        bool                 `json:"present"`
	CursorPosition store.CursorPosition `json:"cursorPosition"`
	Typing         bool                 `json:"typing"`
	LastUpdated    time.Time            `json:"lastUpdated"`
	User           *store.Profile       `json:"user,omitempty"`
}

func presenceView(p store.Presence, profile *store.Profile) PresenceView {
	return PresenceView{
		UserID:         p.UserID,
		SpaceID:        p.SpaceID,
		Present:        p.Present,
		CursorPosition: p.CursorPosition,
		Typing:         p.Typing,
		LastUpdated:    p.LastUpdated,
		User:           profile,
	}
}

type MessageView struct {
	ID        string        `json:"id"`
	SpaceID   string        `json:"spaceId"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"createdAt"`
	Author    store.Profile `json:"author"`
}

var unknownAuthor = store.Profile{Name: "Unknown"}

func messageView(m store.Message, author *store.Profile) MessageView {
	view := MessageView{ID: m.ID, SpaceID: m.SpaceID, Body: m.Body, CreatedAt: m.CreatedAt, Author: unknownAuthor}
	if author != nil {
		view.Author = *author
	} else {
		view.Author.ID = m.AuthorID
	}
	return view
}

type FriendshipView struct {
	ID          string                 `json:"id"`
	FromID      string                 `json:"fromId"`
	ToID        string                 `json:"toId"`
	Status      store.FriendshipStatus `json:"status"`
	LastUpdated time.Time              `json:"lastUpdated"`
}

func friendshipView(f store.Friendship) FriendshipView {
	return FriendshipView{ID: f.ID, FromID: f.FromID, ToID: f.ToID, Status: f.Status, LastUpdated: f.LastUpdated}
}

// FriendView pairs a friendship with the profile of the other party.
type FriendView struct {
	FriendshipID string                 `json:"friendshipId"`
	Status       store.FriendshipStatus `json:"status"`
	Since        time.Time              `json:"since"`
	User         store.Profile          `json:"user"`
}

type NotificationView struct {
	ID        string                     `json:"id"`
	Content   string                     `json:"content"`
	Read      bool                       `json:"read"`
	Payload   *store.NotificationPayload `json:"payload,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
}

func notificationView(n store.Notification) NotificationView {
	return NotificationView{ID: n.ID, Content: n.Content, Read: n.Read, Payload: n.Payload, CreatedAt: n.CreatedAt}
}
