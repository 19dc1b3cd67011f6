package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelurano/tr3s/internal/util"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, external_id, name, username, email, image_url, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.ExternalID, &user.Name, &user.Username, &user.Email, &user.ImageURL, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", notFound(err))
	}
	return user, nil
}

func (s *PostgresStore) GetUserByExternalID(ctx context.Context, externalID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id=$1`, externalID))
	if err != nil {
		return User{}, fmt.Errorf("get user by external id: %w", notFound(err))
	}
	return user, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = util.NewID()
	}
	const query = `
		INSERT INTO users (id, external_id, name, username, email, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			name=EXCLUDED.name,
			username=EXCLUDED.username,
			email=EXCLUDED.email,
			image_url=EXCLUDED.image_url,
			updated_at=NOW()
		RETURNING ` + userColumns
	saved, err := scanUser(s.db.QueryRowContext(ctx, query, user.ID, user.ExternalID, user.Name, user.Username, user.Email, user.ImageURL))
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return saved, nil
}

const spaceColumns = `id, title, image_ref, owner_id, is_active, last_active, created_at`

func scanSpace(row rowScanner) (Space, error) {
	var (
		space      Space
		lastActive sql.NullTime
	)
	if err := row.Scan(&space.ID, &space.Title, &space.ImageRef, &space.OwnerID, &space.IsActive, &lastActive, &space.CreatedAt); err != nil {
		return Space{}, err
	}
	if lastActive.Valid {
		t := lastActive.Time
		space.LastActive = &t
	}
	return space, nil
}

func (s *PostgresStore) querySpaces(ctx context.Context, query string, args ...any) ([]Space, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spaces := []Space{}
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, space)
	}
	return spaces, rows.Err()
}

func (s *PostgresStore) GetSpace(ctx context.Context, spaceID string) (Space, error) {
	space, err := scanSpace(s.db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id=$1`, spaceID))
	if err != nil {
		return Space{}, fmt.Errorf("get space: %w", notFound(err))
	}
	return space, nil
}

// CreateSpace inserts the space and its owner membership in one transaction.
func (s *PostgresStore) CreateSpace(ctx context.Context, space Space, owner Membership) (Space, error) {
	if space.ID == "" {
		space.ID = util.NewID()
	}
	if owner.ID == "" {
		owner.ID = util.NewID()
	}
	owner.SpaceID = space.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Space{}, fmt.Errorf("begin create space tx: %w", err)
	}
	defer tx.Rollback()

	created, err := scanSpace(tx.QueryRowContext(ctx, `
		INSERT INTO spaces (id, title, image_ref, owner_id, is_active, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+spaceColumns,
		space.ID, space.Title, space.ImageRef, space.OwnerID, space.IsActive, space.LastActive, space.CreatedAt,
	))
	if err != nil {
		return Space{}, fmt.Errorf("insert space: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO spaces_users (id, user_id, space_id, status, last_updated)
		VALUES ($1, $2, $3, $4, $5)
	`, owner.ID, owner.UserID, owner.SpaceID, owner.Status, owner.LastUpdated); err != nil {
		if isUniqueViolation(err) {
			return Space{}, fmt.Errorf("insert owner membership: %w", ErrConflict)
		}
		return Space{}, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Space{}, fmt.Errorf("commit create space: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateSpace(ctx context.Context, spaceID, title string, imageRef int) (Space, error) {
	space, err := scanSpace(s.db.QueryRowContext(ctx, `
		UPDATE spaces SET title=$2, image_ref=$3 WHERE id=$1
		RETURNING `+spaceColumns, spaceID, title, imageRef))
	if err != nil {
		return Space{}, fmt.Errorf("update space: %w", notFound(err))
	}
	return space, nil
}

// SetSpaceActive flips is_active. A nil lastActive keeps the stored value.
func (s *PostgresStore) SetSpaceActive(ctx context.Context, spaceID string, active bool, lastActive *time.Time) (Space, error) {
	space, err := scanSpace(s.db.QueryRowContext(ctx, `
		UPDATE spaces SET is_active=$2, last_active=COALESCE($3, last_active) WHERE id=$1
		RETURNING `+spaceColumns, spaceID, active, lastActive))
	if err != nil {
		return Space{}, fmt.Errorf("set space active: %w", notFound(err))
	}
	return space, nil
}

func (s *PostgresStore) DeleteSpace(ctx context.Context, spaceID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spaces WHERE id=$1`, spaceID)
	if err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete space: %w", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListSpacesByOwner(ctx context.Context, ownerID string) ([]Space, error) {
	spaces, err := s.querySpaces(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE owner_id=$1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list spaces by owner: %w", err)
	}
	return spaces, nil
}

func (s *PostgresStore) CountSpacesByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces WHERE owner_id=$1`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count spaces by owner: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListActiveSpaces(ctx context.Context) ([]Space, error) {
	spaces, err := s.querySpaces(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE is_active ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active spaces: %w", err)
	}
	return spaces, nil
}

const membershipColumns = `m.id, m.user_id, m.space_id, m.status, m.last_updated`

func scanMembership(row rowScanner) (Membership, error) {
	var membership Membership
	err := row.Scan(&membership.ID, &membership.UserID, &membership.SpaceID, &membership.Status, &membership.LastUpdated)
	return membership, err
}

func (s *PostgresStore) GetMembership(ctx context.Context, userID, spaceID string) (Membership, error) {
	membership, err := scanMembership(s.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM spaces_users m WHERE m.user_id=$1 AND m.space_id=$2
	`, userID, spaceID))
	if err != nil {
		return Membership{}, fmt.Errorf("get membership: %w", notFound(err))
	}
	return membership, nil
}

// InsertMembership fails with ErrConflict when the (user, space) pair exists.
func (s *PostgresStore) InsertMembership(ctx context.Context, membership Membership) (Membership, error) {
	if membership.ID == "" {
		membership.ID = util.NewID()
	}
	saved, err := scanMembership(s.db.QueryRowContext(ctx, `
		INSERT INTO spaces_users AS m (id, user_id, space_id, status, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+membershipColumns,
		membership.ID, membership.UserID, membership.SpaceID, membership.Status, membership.LastUpdated,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Membership{}, fmt.Errorf("insert membership: %w", ErrConflict)
		}
		return Membership{}, fmt.Errorf("insert membership: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) UpdateMembership(ctx context.Context, membershipID string, status MembershipStatus, at time.Time) (Membership, error) {
	saved, err := scanMembership(s.db.QueryRowContext(ctx, `
		UPDATE spaces_users AS m SET status=$2, last_updated=$3 WHERE m.id=$1
		RETURNING `+membershipColumns, membershipID, status, at))
	if err != nil {
		return Membership{}, fmt.Errorf("update membership: %w", notFound(err))
	}
	return saved, nil
}

func (s *PostgresStore) DeleteMembership(ctx context.Context, membershipID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spaces_users WHERE id=$1`, membershipID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, spaceID string, statuses ...MembershipStatus) ([]MemberWithUser, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+membershipColumns+`, u.id, u.name, u.username, u.image_url
		FROM spaces_users m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.space_id=$1 AND (cardinality($2::text[]) = 0 OR m.status = ANY($2::text[]))
		ORDER BY m.last_updated ASC
	`, spaceID, values)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	members := []MemberWithUser{}
	for rows.Next() {
		var (
			member  MemberWithUser
			profile nullProfile
		)
		if err := rows.Scan(&member.ID, &member.UserID, &member.SpaceID, &member.Status, &member.LastUpdated,
			&profile.id, &profile.name, &profile.username, &profile.imageURL); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		member.User = profile.profile()
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return members, nil
}

type nullProfile struct {
	id       sql.NullString
	name     sql.NullString
	username sql.NullString
	imageURL sql.NullString
}

func (p nullProfile) profile() *Profile {
	if !p.id.Valid {
		return nil
	}
	return &Profile{ID: p.id.String, Name: p.name.String, Username: p.username.String, ImageURL: p.imageURL.String}
}

const presenceColumns = `p.id, p.user_id, p.space_id, p.present, p.cursor_x, p.cursor_y, p.typing, p.last_updated`

func scanPresence(row rowScanner, dest *Presence, extra ...any) error {
	args := append([]any{&dest.ID, &dest.UserID, &dest.SpaceID, &dest.Present,
		&dest.CursorPosition.X, &dest.CursorPosition.Y, &dest.Typing, &dest.LastUpdated}, extra...)
	return row.Scan(args...)
}

// UpsertPresence writes the row for (user, space) unless the stored row carries
// a newer last_updated, in which case the stored row is returned unchanged.
func (s *PostgresStore) UpsertPresence(ctx context.Context, presence Presence) (Presence, error) {
	if presence.ID == "" {
		presence.ID = util.NewID()
	}
	var saved Presence
	err := scanPresence(s.db.QueryRowContext(ctx, `
		INSERT INTO spaces_presences AS p (id, user_id, space_id, present, cursor_x, cursor_y, typing, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, space_id) DO UPDATE SET
			present=EXCLUDED.present,
			cursor_x=EXCLUDED.cursor_x,
			cursor_y=EXCLUDED.cursor_y,
			typing=EXCLUDED.typing,
			last_updated=EXCLUDED.last_updated
		WHERE p.last_updated <= EXCLUDED.last_updated
		RETURNING `+presenceColumns,
		presence.ID, presence.UserID, presence.SpaceID, presence.Present,
		presence.CursorPosition.X, presence.CursorPosition.Y, presence.Typing, presence.LastUpdated,
	), &saved)
	if errors.Is(err, sql.ErrNoRows) {
		// The conflict guard skipped the update; report what is stored.
		err = scanPresence(s.db.QueryRowContext(ctx, `
			SELECT `+presenceColumns+` FROM spaces_presences p WHERE p.user_id=$1 AND p.space_id=$2
		`, presence.UserID, presence.SpaceID), &saved)
	}
	if err != nil {
		return Presence{}, fmt.Errorf("upsert presence: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) ListPresence(ctx context.Context, spaceID string, since time.Time) ([]PresenceWithUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+presenceColumns+`, u.id, u.name, u.username, u.image_url
		FROM spaces_presences p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.space_id=$1 AND p.last_updated >= $2
		ORDER BY p.last_updated DESC
	`, spaceID, since)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	defer rows.Close()

	out := []PresenceWithUser{}
	for rows.Next() {
		var (
			row     PresenceWithUser
			profile nullProfile
		)
		if err := scanPresence(rows, &row.Presence, &profile.id, &profile.name, &profile.username, &profile.imageURL); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		row.User = profile.profile()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeletePresence(ctx context.Context, userID, spaceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM spaces_presences WHERE user_id=$1 AND space_id=$2`, userID, spaceID); err != nil {
		return fmt.Errorf("delete presence: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSpacePresence(ctx context.Context, spaceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spaces_presences WHERE space_id=$1`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("delete space presence: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) MarkSpacePresenceAbsent(ctx context.Context, spaceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE spaces_presences SET present=FALSE WHERE space_id=$1 AND present`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("mark space presence absent: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	if message.ID == "" {
		message.ID = util.NewID()
	}
	var saved Message
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, author_id, space_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, author_id, space_id, body, created_at
	`, message.ID, message.AuthorID, message.SpaceID, message.Body, message.CreatedAt).
		Scan(&saved.ID, &saved.AuthorID, &saved.SpaceID, &saved.Body, &saved.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (Message, error) {
	var message Message
	err := s.db.QueryRowContext(ctx, `SELECT id, author_id, space_id, body, created_at FROM messages WHERE id=$1`, messageID).
		Scan(&message.ID, &message.AuthorID, &message.SpaceID, &message.Body, &message.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("get message: %w", notFound(err))
	}
	return message, nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete message: %w", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, spaceID string, since time.Time, limit int) ([]MessageWithAuthor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.author_id, m.space_id, m.body, m.created_at, u.id, u.name, u.username, u.image_url
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.space_id=$1 AND m.created_at >= $2
		ORDER BY m.created_at DESC
		LIMIT $3
	`, spaceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []MessageWithAuthor{}
	for rows.Next() {
		var (
			message MessageWithAuthor
			profile nullProfile
		)
		if err := rows.Scan(&message.ID, &message.AuthorID, &message.SpaceID, &message.Body, &message.CreatedAt,
			&profile.id, &profile.name, &profile.username, &profile.imageURL); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.Author = profile.profile()
		out = append(out, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

const friendshipColumns = `id, from_id, to_id, status, last_updated`

func scanFriendship(row rowScanner) (Friendship, error) {
	var friendship Friendship
	err := row.Scan(&friendship.ID, &friendship.FromID, &friendship.ToID, &friendship.Status, &friendship.LastUpdated)
	return friendship, err
}

func (s *PostgresStore) GetFriendship(ctx context.Context, friendshipID string) (Friendship, error) {
	friendship, err := scanFriendship(s.db.QueryRowContext(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE id=$1`, friendshipID))
	if err != nil {
		return Friendship{}, fmt.Errorf("get friendship: %w", notFound(err))
	}
	return friendship, nil
}

// FindFriendship looks the pair up in either direction.
func (s *PostgresStore) FindFriendship(ctx context.Context, userA, userB string) (Friendship, error) {
	friendship, err := scanFriendship(s.db.QueryRowContext(ctx, `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE (from_id=$1 AND to_id=$2) OR (from_id=$2 AND to_id=$1)
		ORDER BY last_updated DESC
		LIMIT 1
	`, userA, userB))
	if err != nil {
		return Friendship{}, fmt.Errorf("find friendship: %w", notFound(err))
	}
	return friendship, nil
}

func (s *PostgresStore) InsertFriendship(ctx context.Context, friendship Friendship) (Friendship, error) {
	if friendship.ID == "" {
		friendship.ID = util.NewID()
	}
	saved, err := scanFriendship(s.db.QueryRowContext(ctx, `
		INSERT INTO friendships (id, from_id, to_id, status, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+friendshipColumns,
		friendship.ID, friendship.FromID, friendship.ToID, friendship.Status, friendship.LastUpdated,
	))
	if err != nil {
		return Friendship{}, fmt.Errorf("insert friendship: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) UpdateFriendshipStatus(ctx context.Context, friendshipID string, status FriendshipStatus, at time.Time) (Friendship, error) {
	saved, err := scanFriendship(s.db.QueryRowContext(ctx, `
		UPDATE friendships SET status=$2, last_updated=$3 WHERE id=$1
		RETURNING `+friendshipColumns, friendshipID, status, at))
	if err != nil {
		return Friendship{}, fmt.Errorf("update friendship: %w", notFound(err))
	}
	return saved, nil
}

func (s *PostgresStore) DeleteFriendship(ctx context.Context, friendshipID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM friendships WHERE id=$1`, friendshipID)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete friendship: %w", ErrNotFound)
	}
	return nil
}

// ListFriendships returns rows with the given status where userID is either side.
func (s *PostgresStore) ListFriendships(ctx context.Context, userID string, status FriendshipStatus) ([]Friendship, error) {
	return s.queryFriendships(ctx, "list friendships", `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE (from_id=$1 OR to_id=$1) AND status=$2
		ORDER BY last_updated DESC
	`, userID, status)
}

func (s *PostgresStore) ListIncomingFriendships(ctx context.Context, userID string) ([]Friendship, error) {
	return s.queryFriendships(ctx, "list incoming friendships", `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE to_id=$1 AND status='pending'
		ORDER BY last_updated DESC
	`, userID)
}

func (s *PostgresStore) queryFriendships(ctx context.Context, op, query string, args ...any) ([]Friendship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []Friendship{}
	for rows.Next() {
		friendship, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, friendship)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

const notificationColumns = `id, user_id, content, read, payload, created_at`

func scanNotification(row rowScanner) (Notification, error) {
	var (
		notification Notification
		payload      []byte
	)
	if err := row.Scan(&notification.ID, &notification.UserID, &notification.Content, &notification.Read, &payload, &notification.CreatedAt); err != nil {
		return Notification{}, err
	}
	if len(payload) > 0 {
		var decoded NotificationPayload
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return Notification{}, fmt.Errorf("decode notification payload: %w", err)
		}
		notification.Payload = &decoded
	}
	return notification, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) (Notification, error) {
	if notification.ID == "" {
		notification.ID = util.NewID()
	}
	var payload []byte
	if notification.Payload != nil {
		encoded, err := json.Marshal(notification.Payload)
		if err != nil {
			return Notification{}, fmt.Errorf("encode notification payload: %w", err)
		}
		payload = encoded
	}
	saved, err := scanNotification(s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, content, read, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		notification.ID, notification.UserID, notification.Content, notification.Read, payload, notification.CreatedAt,
	))
	if err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, notificationID string) (Notification, error) {
	notification, err := scanNotification(s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, notificationID))
	if err != nil {
		return Notification{}, fmt.Errorf("get notification: %w", notFound(err))
	}
	return notification, nil
}

// ListNotifications pages newest first. A zero before returns the first page.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, before time.Time, limit int) ([]Notification, error) {
	var beforeArg any
	if !before.IsZero() {
		beforeArg = before
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id=$1 AND ($2::timestamptz IS NULL OR created_at < $2::timestamptz)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, beforeArg, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID string) (Notification, error) {
	notification, err := scanNotification(s.db.QueryRowContext(ctx, `
		UPDATE notifications SET read=TRUE WHERE id=$1
		RETURNING `+notificationColumns, notificationID))
	if err != nil {
		return Notification{}, fmt.Errorf("mark notification read: %w", notFound(err))
	}
	return notification, nil
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id=$1`, notificationID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete notification: %w", ErrNotFound)
	}
	return nil
}
