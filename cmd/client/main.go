package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/gophauth/internal/client/api"
	"github.com/iudanet/gophauth/internal/client/cli"
	"github.com/iudanet/gophauth/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	email := flag.String("email", "", "Email for signup and signin")
	passwordFile := flag.String("password-file", "", "Path to file containing the password")
	token := flag.String("token", "", "Access or refresh token (not recommended, use env var or file)")
	tokenFile := flag.String("token-file", "", "Path to file containing the token")

	flag.Usage = func() {
		cli.PrintUsage(os.Stderr)
	}
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Получаем команду
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cli.New(api.NewClient(*serverURL), iocli.NewStdio(), cli.Options{
		Email:        *email,
		PasswordFile: *passwordFile,
		Token:        *token,
		TokenFile:    *tokenFile,
	})

	if err := c.Run(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUnknownCommand) {
			cli.PrintUsage(os.Stderr)
		}
		stop()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("GophAuth Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
