package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/token"
	"github.com/iudanet/gophauth/pkg/api"
)

type contextKey string

const (
	accessClaimsKey  contextKey = "access_claims"
	refreshClaimsKey contextKey = "refresh_claims"
)

// Verifier checks a bearer token of the expected kind.
type Verifier interface {
	Verify(ctx context.Context, tokenString string, expected token.Kind) (token.Claims, error)
}

// WithClaims stores verified claims in ctx under their kind.
func WithClaims(ctx context.Context, claims token.Claims) context.Context {
	switch c := claims.(type) {
	case token.AccessClaims:
		return context.WithValue(ctx, accessClaimsKey, c)
	case token.RefreshClaims:
		return context.WithValue(ctx, refreshClaimsKey, c)
	default:
		return ctx
	}
}

// AccessClaimsFrom returns the access claims stored by RequireToken.
func AccessClaimsFrom(ctx context.Context) (token.AccessClaims, bool) {
	c, ok := ctx.Value(accessClaimsKey).(token.AccessClaims)
	return c, ok
}

// RefreshClaimsFrom returns the refresh claims stored by RequireToken.
func RefreshClaimsFrom(ctx context.Context) (token.RefreshClaims, bool) {
	c, ok := ctx.Value(refreshClaimsKey).(token.RefreshClaims)
	return c, ok
}

// bearerToken извлекает токен из заголовка "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	tokenString := strings.TrimSpace(parts[1])
	return tokenString, tokenString != ""
}

// RequireToken создает middleware, пропускающий только запросы с действующим
// токеном заданного типа. Claims кладутся в контекст запроса.
// Клиент получает одинаковый 401 независимо от причины отказа.
func RequireToken(logger *slog.Logger, verifier Verifier, kind token.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, ok := bearerToken(r)
			if !ok {
				logger.DebugContext(ctx, "Missing or malformed Authorization header",
					slog.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := verifier.Verify(ctx, tokenString, kind)
			if err != nil {
				if errors.Is(err, session.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				logger.ErrorContext(ctx, "Token verification failed",
					slog.String("kind", kind.String()),
					slog.Any("error", err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			logger.DebugContext(ctx, "Token accepted",
				slog.String("kind", kind.String()),
				slog.String("user_id", claims.Chain().Subject))

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
