package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"skillswap-auth/internal/service"
)

// AuthService is the business API behind the auth endpoints
type AuthService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error)
	LoginStepOne(ctx context.Context, req service.LoginRequest) (*service.PendingMFA, error)
	LoginStepTwo(ctx context.Context, req service.VerifyMFARequest) (*service.LoginResult, error)
	UpdatePassword(ctx context.Context, req service.UpdatePasswordRequest) error
	ForgotPassword(ctx context.Context, req service.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req service.ResetPasswordRequest) error
	Authenticate(ctx context.Context, bearer, resource string) (string, error)
}

type userIDKey struct{}

// UserIDFromContext returns the account id set by RequireAuth
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	auth   AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// RegisterRoutes mounts the public auth endpoints
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/mfa", h.VerifyMFA)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password", h.ResetPassword)
}

// RegisterUserRoutes mounts the endpoints that need a bearer token
func (h *AuthHandler) RegisterUserRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/update-password", h.UpdatePassword)
		r.Put("/update-password", h.UpdatePassword)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.Register(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, Response{Message: "User registered successfully", UserID: res.UserID})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.LoginStepOne(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Message: "OTP sent to your email.", UserID: res.UserID})
}

func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyMFARequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.LoginStepTwo(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Message: "Login successful", Token: res.Token})
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req service.UpdatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = UserIDFromContext(r.Context())
	if err := h.auth.UpdatePassword(r.Context(), req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Message: "Password updated successfully"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Message: "Reset OTP sent to your email."})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Message: "Password has been reset successfully."})
}

// RequireAuth accepts "Authorization: Bearer <token>" and stores the account
// id in the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.auth.Authenticate(r.Context(), bearerToken(r), r.URL.Path)
		if err != nil {
			respondWithError(w, r, h.logger, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// decode reads a JSON body into dst and answers 400 on malformed input
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("Invalid request body", zap.String("path", r.URL.Path))
		respondWithJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return false
	}
	return true
}
