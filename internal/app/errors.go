package app

import (
	"errors"
	"net/http"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/auth"
	"github.com/angelurano/tr3s/internal/store"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthenticated: http.StatusUnauthorized,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindAccessDenied:    http.StatusForbidden,
	apperr.KindInvalidState:    http.StatusConflict,
	apperr.KindRateLimited:     http.StatusTooManyRequests,
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindCapacity:        http.StatusConflict,
}

func mapError(err error) (status int, code, message string, details any) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status, ok := statusByKind[appErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, appErr.Code, appErr.Message, appErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
