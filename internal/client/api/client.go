package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/gophauth/pkg/api"
)

// ErrUnauthorized is returned when the server rejects the presented credentials or token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response of the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrUnauthorized) true for 401 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Signup регистрирует нового пользователя и возвращает первую пару токенов
func (c *Client) Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/signup", "", req, &resp); err != nil {
		return nil, fmt.Errorf("signup request failed: %w", err)
	}
	return &resp, nil
}

// Signin выполняет аутентификацию пользователя
func (c *Client) Signin(ctx context.Context, req api.SigninRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/signin", "", req, &resp); err != nil {
		return nil, fmt.Errorf("signin request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", refreshToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Signout завершает сессию, которой принадлежит access token
func (c *Client) Signout(ctx context.Context, accessToken string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/signout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("signout request failed: %w", err)
	}
	return nil
}

// Me возвращает текущего пользователя
func (c *Client) Me(ctx context.Context, accessToken string) (*api.UserResponse, error) {
	var resp api.UserResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/users/me", accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("current user request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, bearer string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
		} else {
			statusErr.Message = strings.TrimSpace(string(respBody))
		}
		return statusErr
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
