package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/angelurano/tr3s/internal/realtime"
	"github.com/angelurano/tr3s/internal/store"
)

type HTTPServer struct {
	service    *Service
	hub        *realtime.Hub
	corsOrigin string
	upgrader   websocket.Upgrader
}

func NewHTTPServer(service *Service, hub *realtime.Hub, corsOrigin string) *HTTPServer {
	s := &HTTPServer{service: service, hub: hub, corsOrigin: corsOrigin}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Post("/users/me", s.handleSyncUser)
		r.Get("/ws", s.handleWebsocket)

		r.Group(func(r chi.Router) {
			r.Use(s.identify)
			authed := r.With(requireUser)

			authed.Get("/users/me", s.handleMe)
			authed.Get("/users/{userID}/friendship", s.handleFriendshipWith)
			authed.Get("/users/{userID}/spaces", s.handleUserSpaces)

			authed.Get("/spaces", s.handleListSpaces)
			authed.Post("/spaces", s.handleCreateSpace)
			r.Route("/spaces/{spaceID}", func(r chi.Router) {
				// Access queries answer with a status instead of failing.
				r.Get("/access", s.handleSpaceAccess)
				r.Get("/navigation", s.handleNavigation)
				r.Get("/presence", s.handleListPresence)

				authed := r.With(requireUser)
				authed.Patch("/", s.handleUpdateSpace)
				authed.Delete("/", s.handleDeleteSpace)
				authed.Post("/activate", s.handleActivateSpace)
				authed.Post("/heartbeat", s.handleHeartbeat)

				authed.Post("/join", s.handleRequestJoin)
				authed.Delete("/join", s.handleCancelJoin)
				authed.Get("/requests", s.handleListRequests)
				authed.Post("/requests/{userID}/accept", s.handleAcceptRequest)
				authed.Post("/requests/{userID}/reject", s.handleRejectRequest)
				authed.Get("/members", s.handleListMembers)
				authed.Delete("/members/{userID}", s.handleKick)
				authed.Post("/leave", s.handleLeave)

				authed.Put("/presence", s.handleUpsertPresence)
				authed.Get("/messages", s.handleListMessages)
				authed.Post("/messages", s.handleSendMessage)
			})
			authed.Delete("/messages/{messageID}", s.handleDeleteMessage)

			authed.Get("/friends", s.handleListFriends)
			authed.Post("/friends", s.handleSendFriendRequest)
			authed.Get("/friends/requests", s.handleListFriendRequests)
			authed.Post("/friends/{friendshipID}/accept", s.handleAcceptFriend)
			authed.Post("/friends/{friendshipID}/reject", s.handleRejectFriend)
			authed.Delete("/friends/{friendshipID}", s.handleRemoveFriend)

			authed.Get("/notifications", s.handleListNotifications)
			authed.Post("/notifications/{notificationID}/read", s.handleReadNotification)
			authed.Delete("/notifications/{notificationID}", s.handleDeleteNotification)
		})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSyncUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.SyncUser(r.Context(), bearerToken(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	writeJSON(w, http.StatusOK, userView(user))
}

func (s *HTTPServer) handleSpaceAccess(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetSpaceAccess(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleNavigation(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetSpaceForNavigation(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.service.ListMySpaces(r.Context(), callerID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": spaces})
}

func (s *HTTPServer) handleUserSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.service.ListUserSpaces(r.Context(), callerID(r), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": spaces})
}

func (s *HTTPServer) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var body SpaceInput
	if !readBody(w, r, &body) {
		return
	}
	space, err := s.service.CreateSpace(r.Context(), callerID(r), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, space)
}

func (s *HTTPServer) handleUpdateSpace(w http.ResponseWriter, r *http.Request) {
	var body SpaceInput
	if !readBody(w, r, &body) {
		return
	}
	space, err := s.service.UpdateSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID"), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, space)
}

func (s *HTTPServer) handleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleActivateSpace(w http.ResponseWriter, r *http.Request) {
	space, err := s.service.ActivateSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, space)
}

func (s *HTTPServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.service.HeartbeatSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRequestJoin(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.RequestJoinSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *HTTPServer) handleCancelJoin(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelJoinRequest(r.Context(), callerID(r), chi.URLParam(r, "spaceID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListRequests(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListSpaceRequests(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *HTTPServer) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.AcceptSpaceRequest(r.Context(), callerID(r), chi.URLParam(r, "spaceID"), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *HTTPServer) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.RejectSpaceRequest(r.Context(), callerID(r), chi.URLParam(r, "spaceID"), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListSpaceMembers(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *HTTPServer) handleKick(w http.ResponseWriter, r *http.Request) {
	if err := s.service.KickUserFromSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID"), chi.URLParam(r, "userID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.service.LeaveSpace(r.Context(), callerID(r), chi.URLParam(r, "spaceID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleUpsertPresence(w http.ResponseWriter, r *http.Request) {
	var body PresenceInput
	if !readBody(w, r, &body) {
		return
	}
	row, err := s.service.UpsertPresence(r.Context(), callerID(r), chi.URLParam(r, "spaceID"), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *HTTPServer) handleListPresence(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.GetSpacePresence(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *HTTPServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.GetSpaceMessages(r.Context(), callerID(r), chi.URLParam(r, "spaceID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageInput
	if !readBody(w, r, &body) {
		return
	}
	row, err := s.service.SendMessage(r.Context(), callerID(r), chi.URLParam(r, "spaceID"), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *HTTPServer) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteMessage(r.Context(), callerID(r), chi.URLParam(r, "messageID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleFriendshipWith(w http.ResponseWriter, r *http.Request) {
	friendship, err := s.service.GetFriendshipWith(r.Context(), callerID(r), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"friendship": friendship})
}

func (s *HTTPServer) handleListFriends(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListFriends(r.Context(), callerID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *HTTPServer) handleSendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	row, err := s.service.SendFriendRequest(r.Context(), callerID(r), body.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *HTTPServer) handleListFriendRequests(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListPendingFriendRequests(r.Context(), callerID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *HTTPServer) handleAcceptFriend(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.AcceptFriendRequest(r.Context(), callerID(r), chi.URLParam(r, "friendshipID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *HTTPServer) handleRejectFriend(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RejectFriendRequest(r.Context(), callerID(r), chi.URLParam(r, "friendshipID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveFriend(r.Context(), callerID(r), chi.URLParam(r, "friendshipID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var before time.Time
	if raw := strings.TrimSpace(query.Get("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "before must be an RFC 3339 timestamp", nil)
			return
		}
		before = parsed
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a number", nil)
			return
		}
		limit = parsed
	}
	page, err := s.service.ListNotifications(r.Context(), callerID(r), before, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.MarkNotificationRead(r.Context(), callerID(r), chi.URLParam(r, "notificationID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *HTTPServer) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteNotification(r.Context(), callerID(r), chi.URLParam(r, "notificationID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type userKey struct{}

// identify attaches the authenticated user when the request carries a valid
// token. Requests without one continue anonymously.
func (s *HTTPServer) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.service.Authenticate(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "User not authenticated", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(ctx context.Context) (store.User, bool) {
	user, ok := ctx.Value(userKey{}).(store.User)
	return user, ok
}

func callerID(r *http.Request) string {
	user, _ := userFrom(r.Context())
	return user.ID
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := middleware.GetReqID(r.Context())
		writer := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		status := writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			status,
			time.Since(started).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	if seconds, ok := retryAfter(details); ok {
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	writeError(w, status, code, message, details)
}

func retryAfter(details any) (int, bool) {
	m, ok := details.(map[string]any)
	if !ok {
		return 0, false
	}
	seconds, ok := m["retryAfterSeconds"].(int)
	return seconds, ok
}

func readBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
