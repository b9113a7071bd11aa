package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"skillswap-auth/internal/service"
	"skillswap-auth/internal/util"
)

// Response is the body of every auth endpoint
type Response struct {
	Message           string `json:"message"`
	UserID            string `json:"userId,omitempty"`
	Token             string `json:"token,omitempty"`
	LockTimeRemaining int    `json:"lockTimeRemaining,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError maps a service error onto its status and public message
func respondWithError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusCode(err)
	body := Response{Message: service.PublicMessage(err)}

	var lockErr *service.LockoutError
	if errors.As(err, &lockErr) {
		body.LockTimeRemaining = lockErr.SecondsRemaining
		w.Header().Set("Retry-After", strconv.Itoa(lockErr.SecondsRemaining))
	}

	if status >= http.StatusInternalServerError {
		logger.Error("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", status),
			util.String("path", r.URL.Path))
	} else {
		logger.Debug("HTTP error response",
			util.String("code", errorCode(err)),
			util.Int("status_code", status),
			util.String("path", r.URL.Path))
	}
	respondWithJSON(w, status, body)
}

// statusCode determines the HTTP status for a service error
func statusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, service.ErrPasswordReused):
		return http.StatusBadRequest
	}

	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindLockout:
		return http.StatusTooManyRequests
	case service.KindPolicy:
		return http.StatusForbidden
	case service.KindDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var e *service.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return service.ErrInternal.Code
}
