// Package auth implements signup, signin, signout and refresh on top of the
// session engine.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/server/token"
	"github.com/iudanet/gophauth/internal/validation"
)

// PasswordHasher hashes and checks passwords with a slow salted hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Sessions is the part of the session engine used by the service.
type Sessions interface {
	Issue(ctx context.Context, userID string) (*session.TokenPair, error)
	Rotate(ctx context.Context, claims token.RefreshClaims) (*session.TokenPair, error)
	EndSession(ctx context.Context, sessionRootID string) error
}

// Recorder receives signup/signin outcomes.
type Recorder interface {
	AuthAttempt(op, result string)
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(_, _ string) {}

// Service orchestrates user credentials and session chains.
type Service struct {
	users    storage.UserStorage
	hasher   PasswordHasher
	sessions Sessions
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	// dummyHash выравнивает время ответа для неизвестного email
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(s *Service) {
		s.recorder = rec
	}
}

// NewService creates an auth service.
func NewService(users storage.UserStorage, hasher PasswordHasher, sessions Sessions, logger *slog.Logger, opts ...Option) (*Service, error) {
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	s := &Service{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		logger:    logger,
		recorder:  nopRecorder{},
		now:       time.Now,
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Signup registers a user and starts a session.
func (s *Service) Signup(ctx context.Context, email, password string) (*models.User, *session.TokenPair, error) {
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateEmail(email); err != nil {
		s.recorder.AuthAttempt("signup", "invalid")
		return nil, nil, &ValidationError{Field: "email", Message: err.Error()}
	}
	if err := validation.ValidatePassword(password); err != nil {
		s.recorder.AuthAttempt("signup", "invalid")
		return nil, nil, &ValidationError{Field: "password", Message: err.Error()}
	}

	// Проверяем существование до дорогого хеширования
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		s.recorder.AuthAttempt("signup", "conflict")
		return nil, nil, ErrConflict
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("failed to check user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// Параллельная регистрация с тем же email
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			s.recorder.AuthAttempt("signup", "conflict")
			return nil, nil, ErrConflict
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.recorder.AuthAttempt("signup", "ok")
	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID))

	return user, pair, nil
}

// Signin checks credentials and starts a new session.
func (s *Service) Signin(ctx context.Context, email, password string) (*models.User, *session.TokenPair, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("failed to get user: %w", err)
		}
		// Тратим столько же времени, сколько на существующего пользователя
		_, _ = s.hasher.Verify(password, s.dummyHash)
		s.recorder.AuthAttempt("signin", "invalid_credentials")
		return nil, nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.recorder.AuthAttempt("signin", "invalid_credentials")
		s.logger.WarnContext(ctx, "Invalid password",
			slog.String("user_id", user.ID))
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.recorder.AuthAttempt("signin", "ok")
	s.logger.InfoContext(ctx, "User signed in",
		slog.String("user_id", user.ID))

	return user, pair, nil
}

// Signout ends the session the access token belongs to.
func (s *Service) Signout(ctx context.Context, claims token.AccessClaims) error {
	return s.sessions.EndSession(ctx, claims.SessionRootID)
}

// Refresh rotates the chain of verified refresh claims.
func (s *Service) Refresh(ctx context.Context, claims token.RefreshClaims) (*session.TokenPair, error) {
	return s.sessions.Rotate(ctx, claims)
}

// CurrentUser returns the token subject. A deleted user is unauthorized.
func (s *Service) CurrentUser(ctx context.Context, claims token.AccessClaims) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, session.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
