// Command condivise-journal-auth authorizes the journal worker to write to
// a spreadsheet with a user account instead of a service account. It runs
// the OAuth installed-app flow once and saves the token for the worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"condivise/internal/cli"
	"condivise/internal/config"
	"condivise/internal/log"
	gsheet "condivise/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentSheets)

	tokenFile := cfg.GoogleOAuthTokenFile
	if tokenFile == "" {
		tokenFile = "token.json"
	}
	clientJSON, err := readClient(cfg)
	cli.ExitOnError(logger, "OAuth client unavailable", err)

	redirectURL := "http://localhost:" + cfg.OAuthRedirectPort + "/callback"
	oc, err := gsheet.OAuthConfig(clientJSON, redirectURL)
	cli.ExitOnError(logger, "Invalid OAuth client", err)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	code, err := awaitCode(ctx, ":"+cfg.OAuthRedirectPort, oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline))
	if err != nil {
		logger.Error("Authorization failed", log.FieldError, err)
		os.Exit(1)
	}

	tok, err := oc.Exchange(ctx, code)
	cli.ExitOnError(logger, "Token exchange failed", err)
	cli.ExitOnError(logger, "Saving token failed", gsheet.SaveToken(tokenFile, tok))
	fmt.Printf("Saved token to %s. Set GOOGLE_OAUTH_TOKEN_FILE=%s for the worker.\n", tokenFile, tokenFile)
}

func readClient(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		return os.ReadFile(cfg.GoogleOAuthClientFile)
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
}

// awaitCode serves the redirect URI until the consent screen calls back.
func awaitCode(ctx context.Context, addr, authURL string) (string, error) {
	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if e := r.URL.Query().Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			done <- result{err: fmt.Errorf("oauth error: %s", e)}
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		done <- result{code: r.URL.Query().Get("code")}
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- result{err: err}
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", authURL)
	select {
	case r := <-done:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
