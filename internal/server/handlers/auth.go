package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/middleware"
	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/token"
	"github.com/iudanet/gophauth/pkg/api"
)

// maxBodyBytes ограничивает размер тела запроса авторизации
const maxBodyBytes = 1 << 16

// AuthService is the auth orchestration used by AuthHandler.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*models.User, *session.TokenPair, error)
	Signin(ctx context.Context, email, password string) (*models.User, *session.TokenPair, error)
	Signout(ctx context.Context, claims token.AccessClaims) error
	Refresh(ctx context.Context, claims token.RefreshClaims) (*session.TokenPair, error)
	CurrentUser(ctx context.Context, claims token.AccessClaims) (*models.User, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service AuthService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, service AuthService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

// Signup обрабатывает POST /api/v1/auth/signup
// Регистрация нового пользователя и выдача первой пары токенов
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SignupRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode signup request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, pair, err := h.service.Signup(ctx, req.Email, req.Password)
	if err != nil {
		h.sendServiceError(ctx, w, "signup", err)
		return
	}

	sendJSON(h.logger, w, authResponse(user, pair), http.StatusCreated)
}

// Signin обрабатывает POST /api/v1/auth/signin
// Аутентификация пользователя и начало новой сессии
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SigninRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode signin request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		sendError(h.logger, w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, pair, err := h.service.Signin(ctx, req.Email, req.Password)
	if err != nil {
		h.sendServiceError(ctx, w, "signin", err)
		return
	}

	sendJSON(h.logger, w, authResponse(user, pair), http.StatusOK)
}

// Signout обрабатывает POST /api/v1/auth/signout
// Требует access token; отзывает корень сессии
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.AccessClaimsFrom(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Signout(ctx, claims); err != nil {
		h.sendServiceError(ctx, w, "signout", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Refresh обрабатывает POST /api/v1/auth/refresh
// Требует refresh token; возвращает новую пару в той же сессии
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.RefreshClaimsFrom(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	pair, err := h.service.Refresh(ctx, claims)
	if err != nil {
		h.sendServiceError(ctx, w, "refresh", err)
		return
	}

	sendJSON(h.logger, w, tokenResponse(pair), http.StatusOK)
}

// Me обрабатывает GET /api/v1/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.AccessClaimsFrom(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(ctx, claims)
	if err != nil {
		h.sendServiceError(ctx, w, "current user", err)
		return
	}

	sendJSON(h.logger, w, userResponse(user), http.StatusOK)
}

// sendServiceError переводит ошибки сервиса в HTTP статусы
func (h *AuthHandler) sendServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var verr *auth.ValidationError

	switch {
	case errors.As(err, &verr):
		sendError(h.logger, w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrConflict):
		sendError(h.logger, w, "email already registered", http.StatusConflict)
	case errors.Is(err, auth.ErrInvalidCredentials):
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, session.ErrUnauthorized):
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
	default:
		h.logger.ErrorContext(ctx, "auth operation failed",
			slog.String("op", op),
			slog.Bool("fatal", session.IsFatal(err)),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func userResponse(user *models.User) api.UserResponse {
	return api.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func tokenResponse(pair *session.TokenPair) api.TokenResponse {
	return api.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(pair.Access.ExpiresAt.Sub(pair.Access.IssuedAt).Seconds()),
		RefreshExpiresIn: int64(pair.Refresh.ExpiresAt.Sub(pair.Refresh.IssuedAt).Seconds()),
	}
}

func authResponse(user *models.User, pair *session.TokenPair) api.AuthResponse {
	return api.AuthResponse{
		User:   userResponse(user),
		Tokens: tokenResponse(pair),
	}
}
