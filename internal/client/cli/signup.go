package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/gophauth/internal/validation"
	"github.com/iudanet/gophauth/pkg/api"
)

func (c *Cli) readEmail() (string, error) {
	email := c.opts.Email
	if email == "" {
		var err error
		email, err = c.io.ReadInput("Email: ")
		if err != nil {
			return "", fmt.Errorf("failed to read email: %w", err)
		}
	}
	return validation.NormalizeEmail(email), nil
}

func (c *Cli) runSignup(ctx context.Context) error {
	c.io.Println("=== Signup ===")

	email, err := c.readEmail()
	if err != nil {
		return err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}

	password, prompted, err := c.getSecret(EnvPassword, c.opts.PasswordFile, "",
		fmt.Sprintf("Password (min %d chars): ", validation.MinPasswordLen))
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	// Подтверждение только при ручном вводе
	if prompted {
		confirm, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if confirm != password {
			return fmt.Errorf("passwords do not match")
		}
	}

	resp, err := c.api.Signup(ctx, api.SignupRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	c.io.Println("✓ Signup successful!")
	c.io.Printf("User ID: %s\n", resp.User.ID)
	c.io.Printf("Email: %s\n", resp.User.Email)
	c.printTokens(resp.Tokens)

	return nil
}
