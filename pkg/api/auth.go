package api

import "time"

// SignupRequest представляет запрос на регистрацию нового пользователя
type SignupRequest struct {
	Email    string `json:"email"`    // email пользователя
	Password string `json:"password"` // пароль в открытом виде (только по TLS)
}

// SigninRequest представляет запрос на аутентификацию
type SigninRequest struct {
	Email    string `json:"email"`    // email пользователя
	Password string `json:"password"` // пароль в открытом виде (только по TLS)
}

// TokenResponse представляет пару токенов одной сессии
type TokenResponse struct {
	AccessToken      string `json:"access_token"`       // JWT access token
	RefreshToken     string `json:"refresh_token"`      // JWT refresh token
	TokenType        string `json:"token_type"`         // всегда "Bearer"
	ExpiresIn        int64  `json:"expires_in"`         // время жизни access token в секундах
	RefreshExpiresIn int64  `json:"refresh_expires_in"` // время жизни refresh token в секундах
}

// UserResponse представляет публичные данные пользователя
type UserResponse struct {
	CreatedAt time.Time `json:"created_at"` // время регистрации
	ID        string    `json:"id"`         // UUID пользователя
	Email     string    `json:"email"`      // email в нижнем регистре
}

// AuthResponse представляет ответ на signup и signin
type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
