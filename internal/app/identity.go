package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/auth"
	"github.com/angelurano/tr3s/internal/store"
)

// Authenticate maps a bearer token to the synced local user.
func (s *Service) Authenticate(ctx context.Context, token string) (store.User, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return store.User{}, apperr.Unauthenticated("User not authenticated")
	}
	user, err := s.store.GetUserByExternalID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, apperr.Unauthenticated("User not found")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("authenticate: %w", err)
	}
	return user, nil
}

// SyncUser creates or refreshes the local user from the token's profile claims.
func (s *Service) SyncUser(ctx context.Context, token string) (store.User, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return store.User{}, apperr.Unauthenticated("User not authenticated")
	}
	user, err := s.store.UpsertUser(ctx, store.User{
		ExternalID: claims.Subject,
		Name:       strings.TrimSpace(claims.Name),
		Username:   strings.TrimSpace(claims.Username),
		Email:      strings.TrimSpace(claims.Email),
		ImageURL:   strings.TrimSpace(claims.ImageURL),
	})
	if err != nil {
		return store.User{}, fmt.Errorf("sync user: %w", err)
	}
	return user, nil
}
