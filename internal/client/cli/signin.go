package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/gophauth/pkg/api"
)

func (c *Cli) runSignin(ctx context.Context) error {
	c.io.Println("=== Signin ===")

	email, err := c.readEmail()
	if err != nil {
		return err
	}

	password, _, err := c.getSecret(EnvPassword, c.opts.PasswordFile, "", "Password: ")
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}

	resp, err := c.api.Signin(ctx, api.SigninRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	c.io.Println("✓ Signin successful!")
	c.io.Printf("User ID: %s\n", resp.User.ID)
	c.printTokens(resp.Tokens)

	return nil
}
