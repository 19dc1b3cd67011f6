package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/realtime"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

const (
	wsReadLimit      = 4096
	wsCommandTimeout = 5 * time.Second
)

type clientMessage struct {
	Type           string                `json:"type"`
	SpaceID        string                `json:"spaceId"`
	CursorPosition *store.CursorPosition `json:"cursorPosition"`
	Present        bool                  `json:"present"`
	Typing         bool                  `json:"typing"`
}

type serverMessage struct {
	Type    string `json:"type"`
	SpaceID string `json:"spaceId,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *HTTPServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.corsOrigin == "*" || origin == s.corsOrigin
}

// handleWebsocket authenticates before upgrading; browsers cannot set headers
// on websocket requests, so the token may also come from the query string.
func (s *HTTPServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = bearerToken(r)
	}
	user, err := s.service.Authenticate(r.Context(), token)
	if err != nil {
		fail(w, r, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade for %s failed: %v", user.ID, err)
		return
	}
	conn := realtime.NewConn(user.ID, ws)
	s.hub.Register(conn)
	defer s.hub.Unregister(conn)

	go conn.WriteLoop()
	conn.ReadLoop(wsReadLimit, func(data []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
		defer cancel()
		s.handleClientMessage(ctx, conn, data)
	})
}

func (s *HTTPServer) handleClientMessage(ctx context.Context, conn *realtime.Conn, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		push(conn, serverMessage{Type: "error", Code: "INVALID_BODY", Error: "invalid JSON message"})
		return
	}

	switch msg.Type {
	case "subscribe":
		spaceID, ok := util.NormalizeID(msg.SpaceID)
		if !ok {
			push(conn, serverMessage{Type: "error", Code: "NOT_FOUND", Error: "Space not found"})
			return
		}
		// Viewers without access still subscribe so they learn when it is granted.
		s.hub.View(conn, spaceID)
		pushSnapshot(ctx, s.service, conn, spaceID)
	case "unsubscribe":
		s.hub.View(conn, "")
	case "presence":
		spaceID := s.hub.Viewing(conn)
		if spaceID == "" {
			push(conn, serverMessage{Type: "error", Code: "INVALID_STATE", Error: "Not subscribed to a space"})
			return
		}
		input := PresenceInput{CursorPosition: msg.CursorPosition, Present: msg.Present, Typing: msg.Typing}
		if _, err := s.service.UpsertPresence(ctx, conn.UserID, spaceID, input); err != nil {
			_, code, message, _ := mapError(err)
			push(conn, serverMessage{Type: "error", SpaceID: spaceID, Code: code, Error: message})
		}
	default:
		push(conn, serverMessage{Type: "error", Code: "INVALID_BODY", Error: "unknown message type"})
	}
}

// Pusher turns feed events into per-viewer payloads. Every payload is
// evaluated for the viewer, so a connection only ever sees what its user may see.
type Pusher struct {
	service  *Service
	hub      *realtime.Hub
	interval time.Duration
}

func NewPusher(service *Service, hub *realtime.Hub) *Pusher {
	interval := service.cfg.PresenceStaleness / 2
	if interval <= 0 {
		interval = time.Second
	}
	return &Pusher{service: service, hub: hub, interval: interval}
}

// Run blocks until ctx is done or the feed closes. Presence rows expire
// without producing events, so viewers also get a periodic refresh.
func (p *Pusher) Run(ctx context.Context) error {
	events, cancel, err := p.service.Bus().Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			p.dispatch(ctx, event)
		case <-ticker.C:
			for _, spaceID := range p.hub.Spaces() {
				p.pushPresence(ctx, spaceID)
			}
		}
	}
}

func (p *Pusher) dispatch(ctx context.Context, event feed.Event) {
	switch event.Kind {
	case feed.KindPresenceChanged:
		p.pushPresence(ctx, event.SpaceID)
	case feed.KindSpaceChanged, feed.KindMembershipChanged:
		for _, conn := range p.hub.InSpace(event.SpaceID) {
			pushSnapshot(ctx, p.service, conn, event.SpaceID)
		}
	case feed.KindMessageCreated, feed.KindMessageDeleted:
		for _, conn := range p.hub.InSpace(event.SpaceID) {
			pushMessages(ctx, p.service, conn, event.SpaceID)
		}
	case feed.KindNotificationCreated:
		for _, conn := range p.hub.OfUser(event.UserID) {
			page, err := p.service.ListNotifications(ctx, conn.UserID, time.Time{}, 0)
			if err != nil {
				log.Printf("push notifications to %s failed: %v", conn.UserID, err)
				continue
			}
			push(conn, serverMessage{Type: "notification", Data: page})
		}
	}
}

func (p *Pusher) pushPresence(ctx context.Context, spaceID string) {
	for _, conn := range p.hub.InSpace(spaceID) {
		pushPresence(ctx, p.service, conn, spaceID)
	}
}

// pushSnapshot sends access first, then the space contents the viewer may see.
func pushSnapshot(ctx context.Context, service *Service, conn *realtime.Conn, spaceID string) {
	result, err := service.GetSpaceAccess(ctx, conn.UserID, spaceID)
	if err != nil {
		log.Printf("push access to %s failed: %v", conn.UserID, err)
		return
	}
	push(conn, serverMessage{Type: "access", SpaceID: spaceID, Data: result})
	if !result.CanAccess {
		return
	}
	pushPresence(ctx, service, conn, spaceID)
	pushMessages(ctx, service, conn, spaceID)
}

func pushPresence(ctx context.Context, service *Service, conn *realtime.Conn, spaceID string) {
	rows, err := service.GetSpacePresence(ctx, conn.UserID, spaceID)
	if err != nil {
		log.Printf("push presence to %s failed: %v", conn.UserID, err)
		return
	}
	push(conn, serverMessage{Type: "presence", SpaceID: spaceID, Data: rows})
}

func pushMessages(ctx context.Context, service *Service, conn *realtime.Conn, spaceID string) {
	rows, err := service.GetSpaceMessages(ctx, conn.UserID, spaceID)
	if apperr.KindOf(err) != "" {
		return
	}
	if err != nil {
		log.Printf("push messages to %s failed: %v", conn.UserID, err)
		return
	}
	push(conn, serverMessage{Type: "messages", SpaceID: spaceID, Data: rows})
}

func push(conn *realtime.Conn, msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("encode %s message failed: %v", msg.Type, err)
		return
	}
	_ = conn.Send(payload)
}
