package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/oauth2"

	"kinetic/config"
	"kinetic/session"
)

const (
	tokenFile    = "token.json"
	callbackAddr = ":8400"
	callbackURL  = "http://localhost:8400/callback"
)

// WebAuthenticator implements the interactive authorization-code flow.
// Login runs a one-shot callback server and caches the token under the
// config directory; Authenticate reuses and refreshes the cached token
// without touching a browser.
type WebAuthenticator struct {
	creds      Credentials
	apiVersion string
}

func NewWebAuthenticator(creds Credentials, apiVersion string) *WebAuthenticator {
	return &WebAuthenticator{creds: creds, apiVersion: apiVersion}
}

func (a *WebAuthenticator) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		RedirectURL:  callbackURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authorizeURL(a.creds.LoginURL),
			TokenURL: tokenURL(a.creds.LoginURL),
		},
	}
}

// Login walks the user through the browser flow and caches the
// resulting token. It blocks until the callback arrives, the context
// is cancelled, or two minutes pass.
func (a *WebAuthenticator) Login(ctx context.Context) error {
	cfg := a.oauthConfig()
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Println("Visit the URL for the auth dialog:")
	fmt.Println()
	fmt.Println(authURL)
	fmt.Println()

	codeCh := make(chan string, 1)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/callback", func(c echo.Context) error {
		codeCh <- c.QueryParam("code")
		return c.HTML(http.StatusOK,
			"<h2>Authentication complete! Now you can close this window and return to the terminal.</h2>")
	})

	go func() {
		if err := e.Start(callbackAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			codeCh <- ""
		}
	}()

	fmt.Println("Authentication will complete after you log on via browser...")

	select {
	case code := <-codeCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)

		if code == "" {
			return fmt.Errorf("callback server failed to start on %s", callbackAddr)
		}

		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to exchange token: %w", err)
		}

		return saveToken(token)

	case <-ctx.Done():
		_ = e.Shutdown(context.Background())
		return ctx.Err()

	case <-time.After(2 * time.Minute):
		_ = e.Shutdown(context.Background())
		return fmt.Errorf("authorization timed out")
	}
}

// Authenticate builds a session from the cached token, refreshing it
// when expired. Run Login first.
func (a *WebAuthenticator) Authenticate(ctx context.Context) (*session.Session, error) {
	token, err := loadToken()
	if err != nil {
		return nil, err
	}

	instanceURL, _ := token.Extra("instance_url").(string)

	fresh, err := a.oauthConfig().TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if fresh.AccessToken != token.AccessToken {
		if url, ok := fresh.Extra("instance_url").(string); ok && url != "" {
			instanceURL = url
		}
		_ = saveToken(fresh)
	}

	if instanceURL == "" {
		return nil, fmt.Errorf("cached token carries no instance_url; run login again")
	}

	return session.New(instanceURL, fresh.AccessToken, a.apiVersion), nil
}

// cachedToken keeps instance_url next to the standard token fields;
// oauth2.Token does not serialize extras on its own.
type cachedToken struct {
	oauth2.Token
	InstanceURL string `json:"instance_url,omitempty"`
}

func tokenPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, tokenFile), nil
}

func saveToken(token *oauth2.Token) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}

	cached := cachedToken{Token: *token}
	if url, ok := token.Extra("instance_url").(string); ok {
		cached.InstanceURL = url
	}

	b, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Printf("Token saved to %s\n", path)
	return nil
}

func loadToken() (*oauth2.Token, error) {
	path, err := tokenPath()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth needed. Please run 'kinetic auth login' first: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal(b, &cached); err != nil {
		return nil, fmt.Errorf("failed to parse cached token: %w", err)
	}

	token := cached.Token
	if cached.InstanceURL != "" {
		return token.WithExtra(map[string]any{"instance_url": cached.InstanceURL}), nil
	}

	return &token, nil
}
