package cli

import (
	"context"
	"errors"
	"fmt"

	apiclient "github.com/iudanet/gophauth/internal/client/api"
)

// sessionError подсказывает, что делать при отказе сервера
func sessionError(err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return fmt.Errorf("%w (token expired or session ended, run 'gophauth signin')", err)
	}
	return err
}

func (c *Cli) runRefresh(ctx context.Context) error {
	refreshToken, err := c.refreshToken()
	if err != nil {
		return fmt.Errorf("failed to get refresh token: %w", err)
	}

	tokens, err := c.api.Refresh(ctx, refreshToken)
	if err != nil {
		return sessionError(err)
	}

	c.printTokens(*tokens)
	return nil
}

func (c *Cli) runSignout(ctx context.Context) error {
	accessToken, err := c.accessToken()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	if err := c.api.Signout(ctx, accessToken); err != nil {
		return sessionError(err)
	}

	c.io.Println("✓ Signout successful!")
	c.io.Println("All tokens of this session are revoked.")
	return nil
}

func (c *Cli) runWhoami(ctx context.Context) error {
	accessToken, err := c.accessToken()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	user, err := c.api.Me(ctx, accessToken)
	if err != nil {
		return sessionError(err)
	}

	c.io.Printf("User ID: %s\n", user.ID)
	c.io.Printf("Email: %s\n", user.Email)
	c.io.Printf("Registered: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
