// Package session issues, verifies, rotates and ends session chains.
//
// A chain is one session root plus the rotation links created by refreshes.
// Both ids travel inside every token; a token is rejected as soon as either
// its root or its link is revoked in the ledger.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/server/token"
)

// Codec signs and verifies tokens.
type Codec interface {
	Sign(kind token.Kind, b token.Binding) (string, token.Claims, error)
	Verify(tokenString string, expected token.Kind) (token.Claims, error)
	TTL(kind token.Kind) time.Duration
}

// TokenPair is an access token and a refresh token bound to the same chain link.
type TokenPair struct {
	Access       token.AccessClaims
	Refresh      token.RefreshClaims
	AccessToken  string
	RefreshToken string
}

// Engine orchestrates the token codec and the chain ledger.
type Engine struct {
	codec    Codec
	ledger   storage.ChainLedger
	revoker  *Revoker
	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// NewEngine creates a session engine. Superseded links are revoked through revoker.
func NewEngine(codec Codec, ledger storage.ChainLedger, revoker *Revoker, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		codec:    codec,
		ledger:   ledger,
		revoker:  revoker,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Issue starts a new chain for userID: a session root, its first link and a
// token pair. Root and link are written together or not at all.
func (e *Engine) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	root, link, err := e.ledger.CreateSession(ctx, userID, e.codec.TTL(token.KindRefresh))
	if err != nil {
		return nil, fatal("issue", err)
	}

	pair, err := e.signPair(token.Binding{
		Subject:       userID,
		SessionRootID: root.ID,
		LinkID:        link.ID,
	})
	if err != nil {
		return nil, fatal("issue", err)
	}

	e.recorder.SessionIssued()
	e.logger.DebugContext(ctx, "Session issued",
		slog.String("user_id", userID),
		slog.String("session_root_id", root.ID))

	return pair, nil
}

func (e *Engine) signPair(b token.Binding) (*TokenPair, error) {
	accessToken, access, err := e.codec.Sign(token.KindAccess, b)
	if err != nil {
		return nil, err
	}

	refreshToken, refresh, err := e.codec.Sign(token.KindRefresh, b)
	if err != nil {
		return nil, err
	}

	ac, ok := access.(token.AccessClaims)
	if !ok {
		return nil, token.ErrSignerMisconfigured
	}
	rc, ok := refresh.(token.RefreshClaims)
	if !ok {
		return nil, token.ErrSignerMisconfigured
	}

	return &TokenPair{
		Access:       ac,
		Refresh:      rc,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Verify checks the token signature, kind and expiry, then that neither its
// session root nor its link is revoked. Every rejection is ErrUnauthorized;
// a ledger failure is fatal and still returns no claims.
func (e *Engine) Verify(ctx context.Context, tokenString string, expected token.Kind) (token.Claims, error) {
	claims, err := e.codec.Verify(tokenString, expected)
	if err != nil {
		e.recorder.TokenVerified(expected.String(), "invalid")
		e.logger.DebugContext(ctx, "Token rejected",
			slog.String("kind", expected.String()),
			slog.String("reason", err.Error()))
		return nil, ErrUnauthorized
	}

	chain := claims.Chain()
	revoked, err := e.ledger.IsAnyRevoked(ctx, chain.SessionRootID, chain.LinkID)
	if err != nil {
		e.recorder.TokenVerified(expected.String(), "error")
		return nil, fatal("verify", err)
	}
	if revoked {
		e.recorder.TokenVerified(expected.String(), "revoked")
		e.logger.DebugContext(ctx, "Token chain revoked",
			slog.String("kind", expected.String()),
			slog.String("session_root_id", chain.SessionRootID),
			slog.String("link_id", chain.LinkID))
		return nil, ErrUnauthorized
	}

	e.recorder.TokenVerified(expected.String(), "ok")
	return claims, nil
}

// VerifyAccess verifies an access token.
func (e *Engine) VerifyAccess(ctx context.Context, tokenString string) (token.AccessClaims, error) {
	claims, err := e.Verify(ctx, tokenString, token.KindAccess)
	if err != nil {
		return token.AccessClaims{}, err
	}
	ac, ok := claims.(token.AccessClaims)
	if !ok {
		return token.AccessClaims{}, ErrUnauthorized
	}
	return ac, nil
}

// VerifyRefresh verifies a refresh token.
func (e *Engine) VerifyRefresh(ctx context.Context, tokenString string) (token.RefreshClaims, error) {
	claims, err := e.Verify(ctx, tokenString, token.KindRefresh)
	if err != nil {
		return token.RefreshClaims{}, err
	}
	rc, ok := claims.(token.RefreshClaims)
	if !ok {
		return token.RefreshClaims{}, ErrUnauthorized
	}
	return rc, nil
}

// Rotate replaces the link of verified refresh claims with a new link under
// the same session root and returns a new pair.
//
// The old link is revoked in the background after the pair is returned, so
// the old refresh token stays usable until that task completes. Concurrent
// rotations of one token each get their own sibling link.
func (e *Engine) Rotate(ctx context.Context, claims token.RefreshClaims) (*TokenPair, error) {
	link, err := e.ledger.CreateLink(ctx, claims.Subject, e.codec.TTL(token.KindRefresh))
	if err != nil {
		return nil, fatal("rotate", err)
	}

	pair, err := e.signPair(token.Binding{
		Subject:       claims.Subject,
		SessionRootID: claims.SessionRootID,
		LinkID:        link.ID,
	})
	if err != nil {
		return nil, fatal("rotate", err)
	}

	// Ошибка фонового отзыва не влияет на результат ротации
	e.revoker.Enqueue(claims.LinkID)

	e.recorder.SessionRotated()
	e.logger.DebugContext(ctx, "Session rotated",
		slog.String("session_root_id", claims.SessionRootID),
		slog.String("old_link_id", claims.LinkID),
		slog.String("new_link_id", link.ID))

	return pair, nil
}

// EndSession revokes the session root. All tokens of the chain become invalid,
// whatever link they carry. Ending an unknown or already ended session is not
// an error.
func (e *Engine) EndSession(ctx context.Context, sessionRootID string) error {
	found, err := e.ledger.RevokeKind(ctx, sessionRootID, models.NodeSessionRoot)
	if err != nil {
		return fatal("end session", err)
	}
	if !found {
		e.logger.WarnContext(ctx, "Session root not found",
			slog.String("session_root_id", sessionRootID))
		return nil
	}

	e.recorder.SessionEnded()
	e.logger.DebugContext(ctx, "Session ended",
		slog.String("session_root_id", sessionRootID))

	return nil
}

// IsFatal reports whether err is a fatal engine failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
