// Package cli implements the commands of the gophauth client.
//
// The client keeps nothing on disk: tokens are printed after signup, signin
// and refresh, and read back from the environment, a file, a flag or a
// prompt by the commands that need them.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iudanet/gophauth/internal/client/iocli"
	"github.com/iudanet/gophauth/pkg/api"
)

// Environment variables read before falling back to files, flags and prompts.
const (
	EnvPassword     = "GOPHAUTH_PASSWORD"
	EnvAccessToken  = "GOPHAUTH_ACCESS_TOKEN"
	EnvRefreshToken = "GOPHAUTH_REFRESH_TOKEN"
)

// ErrUnknownCommand is returned by Run for an unsupported command.
var ErrUnknownCommand = errors.New("unknown command")

// API is the part of the HTTP client used by the commands.
type API interface {
	Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error)
	Signin(ctx context.Context, req api.SigninRequest) (*api.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
	Signout(ctx context.Context, accessToken string) error
	Me(ctx context.Context, accessToken string) (*api.UserResponse, error)
}

// Options holds the non-interactive inputs given on the command line.
type Options struct {
	Email        string
	PasswordFile string
	Token        string
	TokenFile    string
}

type Cli struct {
	api  API
	io   iocli.IO
	opts Options
}

func New(apiClient API, io iocli.IO, opts Options) *Cli {
	return &Cli{
		api:  apiClient,
		io:   io,
		opts: opts,
	}
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string) error {
	switch command {
	case "signup":
		return c.runSignup(ctx)
	case "signin":
		return c.runSignin(ctx)
	case "refresh":
		return c.runRefresh(ctx)
	case "signout":
		return c.runSignout(ctx)
	case "whoami":
		return c.runWhoami(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// getSecret retrieves a secret from various sources with priority:
// 1. Environment variable envVar
// 2. File at path file
// 3. Command-line value fromArgs
// 4. Interactive prompt (fallback)
// prompted reports whether the value was typed by the user.
func (c *Cli) getSecret(envVar, file, fromArgs, prompt string) (secret string, prompted bool, err error) {
	// Priority 1: Environment variable
	if v := os.Getenv(envVar); v != "" {
		return v, false, nil
	}

	// Priority 2: File
	if file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read %s: %w", file, err)
		}
		// Убираем trailing newline/whitespace
		v := strings.TrimSpace(string(content))
		if v == "" {
			return "", false, fmt.Errorf("file %s is empty", file)
		}
		return v, false, nil
	}

	// Priority 3: CLI parameter
	if fromArgs != "" {
		return fromArgs, false, nil
	}

	// Priority 4: Interactive prompt (fallback)
	v, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", false, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if v == "" {
		return "", false, errors.New("value cannot be empty")
	}

	return v, true, nil
}

func (c *Cli) accessToken() (string, error) {
	tok, _, err := c.getSecret(EnvAccessToken, c.opts.TokenFile, c.opts.Token, "Access token: ")
	return strings.TrimSpace(tok), err
}

func (c *Cli) refreshToken() (string, error) {
	tok, _, err := c.getSecret(EnvRefreshToken, c.opts.TokenFile, c.opts.Token, "Refresh token: ")
	return strings.TrimSpace(tok), err
}

// printTokens печатает пару в виде, пригодном для export в shell
func (c *Cli) printTokens(tokens api.TokenResponse) {
	c.io.Printf("%s=%s\n", EnvAccessToken, tokens.AccessToken)
	c.io.Printf("%s=%s\n", EnvRefreshToken, tokens.RefreshToken)
	c.io.Printf("# access token expires in %d seconds, refresh token in %d seconds\n",
		tokens.ExpiresIn, tokens.RefreshExpiresIn)
}

func PrintUsage(w io.Writer) {
	lines := []string{
		"GophAuth Client",
		"",
		"Usage:",
		"  gophauth [OPTIONS] COMMAND",
		"",
		"Options:",
		"  --version              Show version information",
		"  --server URL           Server URL (default: http://localhost:8080)",
		"  --email EMAIL          Email for signup and signin",
		"  --password-file PATH   Path to file containing the password",
		"  --token TOKEN          Access or refresh token (not recommended, use env var or file)",
		"  --token-file PATH      Path to file containing the token",
		"",
		"Secret Priority (highest to lowest):",
		"  1. " + EnvPassword + ", " + EnvAccessToken + ", " + EnvRefreshToken,
		"  2. --password-file / --token-file",
		"  3. --token",
		"  4. Interactive prompt (fallback)",
		"",
		"Commands:",
		"  signup     Register a new user and start a session",
		"  signin     Start a new session",
		"  refresh    Exchange the refresh token for a new pair",
		"  signout    End the session of the access token",
		"  whoami     Show the user of the access token",
		"",
		"Tokens are printed, never stored. Examples:",
		"  gophauth --email alice@example.com signin",
		"  export " + EnvRefreshToken + "=...",
		"  gophauth refresh",
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
}
