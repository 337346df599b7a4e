package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
	"github.com/GEGE-UNESP/ismr-downloader/internal/auth"
	"github.com/GEGE-UNESP/ismr-downloader/internal/config"
)

func runLogin(args []string) int {
	fs := flag.NewFlagSet("login", flag.ExitOnError)

	envFile := fs.String("env", ".env", "Path to .env file with credentials")
	tokenFile := fs.String("token-file", ".token.json", "Where to cache the token")
	baseURL := fs.String("base-url", "", "API base URL (default: production)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ismrget login [options]

Exchange ISMR_EMAIL/ISMR_PASSWORD for a token and cache it, replacing
any cached token. fetch does this on demand; login just verifies the
credentials up front.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	_ = godotenv.Load(*envFile)

	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitAuthFailed
	}

	opts := api.DefaultOptions()
	if *baseURL != "" {
		opts.BaseURL = *baseURL
	}
	client := api.NewClient(opts)

	tokens := auth.NewStore(auth.Options{
		CachePath:    *tokenFile,
		Authenticate: client.AuthFunc(api.Credentials{Email: creds.Email, Password: creds.Password}),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	tok, err := tokens.ForceRefresh(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitAuthFailed
	}

	fmt.Printf("Logged in as %s, token valid until %s\n",
		creds.Email, tok.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return ExitSuccess
}

func runLogout(args []string) int {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)

	tokenFile := fs.String("token-file", ".token.json", "Token cache to remove")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ismrget logout [options]

Remove the cached token. The next fetch authenticates from scratch.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if err := os.Remove(*tokenFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	return ExitSuccess
}
