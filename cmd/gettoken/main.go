// Package main runs the one-time offline consent flow for the Drive account
// and prints the refresh token to put in GOOGLE_OAUTH_REFRESH_TOKEN.
//
// GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET must be set.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinyakov/CertTrack/internal/config"
	"github.com/atinyakov/CertTrack/internal/drive"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"
)

// redirectOOB asks the consent page to display the code instead of
// redirecting to a local server.
const redirectOOB = "urn:ietf:wg:oauth:2.0:oob"

var errNoRefreshToken = errors.New("no refresh token returned; revoke the app's access and retry")

func main() {
	var creds config.Google
	if err := envconfig.Process("GOOGLE_OAUTH", &creds); err != nil {
		fmt.Fprintf(os.Stderr, "read environment: %v\n", err)
		os.Exit(1)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		fmt.Fprintln(os.Stderr, "GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET are required")
		os.Exit(1)
	}

	conf := drive.NewOAuthConfig(creds.ClientID, creds.ClientSecret)
	if err := run(context.Background(), conf, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "get token: %v\n", err)
		os.Exit(1)
	}
}

// run prints the consent URL, reads the code from in and exchanges it.
func run(ctx context.Context, conf *oauth2.Config, in io.Reader, out io.Writer) error {
	conf.RedirectURL = redirectOOB
	url := conf.AuthCodeURL("certtrack",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	fmt.Fprintf(out, "Authorize this app by visiting:\n\n%s\n\nCode: ", url)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read code: %w", err)
		}
		return errors.New("no code entered")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return errors.New("no code entered")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if tok.RefreshToken == "" {
		return errNoRefreshToken
	}

	fmt.Fprintf(out, "\nGOOGLE_OAUTH_REFRESH_TOKEN=%s\n", tok.RefreshToken)
	return nil
}
