package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

type User struct {
	ID         string
	ExternalID string
	Name       string
	Username   string
	Email      string
	ImageURL   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile is the public slice of a user that other members may see.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Username: u.Username, ImageURL: u.ImageURL}
}

type Space struct {
	ID         string
	Title      string
	ImageRef   int
	OwnerID    string
	IsActive   bool
	LastActive *time.Time
	CreatedAt  time.Time
}

type MembershipStatus string

const (
	MembershipOwner    MembershipStatus = "owner"
	MembershipPending  MembershipStatus = "pending"
	MembershipAccepted MembershipStatus = "accepted"
	MembershipRejected MembershipStatus = "rejected"
)

type Membership struct {
	ID          string
	UserID      string
	SpaceID     string
	Status      MembershipStatus
	LastUpdated time.Time
}

// MemberWithUser joins a membership row with the member's public profile.
type MemberWithUser struct {
	Membership
	User *Profile
}

type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Presence struct {
	ID             string
	UserID         string
	SpaceID        string
	Present        bool
	CursorPosition CursorPosition
	Typing         bool
	LastUpdated    time.Time
}

type PresenceWithUser struct {
	Presence
	User *Profile
}

type Message struct {
	ID        string
	AuthorID  string
	SpaceID   string
	Body      string
	CreatedAt time.Time
}

type MessageWithAuthor struct {
	Message
	Author *Profile
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

type Friendship struct {
	ID          string
	FromID      string
	ToID        string
	Status      FriendshipStatus
	LastUpdated time.Time
}

type PayloadType string

const (
	PayloadSpaceAccess    PayloadType = "spaceAccess"
	PayloadSpaceRequest   PayloadType = "spaceRequest"
	PayloadFriendRequest  PayloadType = "friendRequest"
	PayloadFriendAccepted PayloadType = "friendAccepted"
)

// NotificationPayload is a tagged union keyed by Type. Only the fields that
// belong to the tag are set.
type NotificationPayload struct {
	Type PayloadType         `json:"type"`
	Data NotificationPayData `json:"data"`
}

type NotificationPayData struct {
	SpaceID      string `json:"spaceId,omitempty"`
	UserID       string `json:"userId,omitempty"`
	FriendshipID string `json:"friendshipId,omitempty"`
	FromID       string `json:"fromId,omitempty"`
	ToID         string `json:"toId,omitempty"`
}

type Notification struct {
	ID        string
	UserID    string
	Content   string
	Read      bool
	Payload   *NotificationPayload
	CreatedAt time.Time
}
