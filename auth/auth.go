// Package auth produces authenticated sessions through the platform's
// OAuth flows: JWT bearer for servers, username-password for scripts,
// and a browser flow for interactive use.
package auth

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"kinetic/session"
)

// Authenticator turns credentials into a live session.
type Authenticator interface {
	Authenticate(ctx context.Context) (*session.Session, error)
}

// Credentials carries everything the non-interactive flows need,
// loadable from SF_* environment variables.
type Credentials struct {
	ClientID     string `env:"SF_CLIENT_ID"`
	ClientSecret string `env:"SF_CLIENT_SECRET"`
	Username     string `env:"SF_USERNAME"`
	Password     string `env:"SF_PASSWORD"`
	// PrivateKeyPath points at the PEM-encoded RSA key registered
	// with the connected app, for the JWT bearer flow.
	PrivateKeyPath string `env:"SF_PRIVATE_KEY"`
	LoginURL       string `env:"SF_LOGIN_URL" envDefault:"https://login.salesforce.com"`
}

// LoadCredentials reads SF_* variables from the environment.
func LoadCredentials() (Credentials, error) {
	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials from environment: %w", err)
	}

	return creds, nil
}

// FromEnv picks the strongest flow the environment supports: JWT
// bearer when a private key is configured, username-password
// otherwise.
func FromEnv(apiVersion string) (Authenticator, error) {
	creds, err := LoadCredentials()
	if err != nil {
		return nil, err
	}

	return FromCredentials(creds, apiVersion)
}

// FromCredentials is FromEnv for credentials the caller has already
// loaded or adjusted.
func FromCredentials(creds Credentials, apiVersion string) (Authenticator, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("SF_CLIENT_ID is not set")
	}

	if creds.PrivateKeyPath != "" {
		return NewJWTAuthenticator(creds, apiVersion), nil
	}

	if creds.Username != "" && creds.Password != "" {
		return NewPasswordAuthenticator(creds, apiVersion), nil
	}

	return nil, fmt.Errorf("set SF_PRIVATE_KEY or SF_USERNAME/SF_PASSWORD to authenticate")
}

func tokenURL(loginURL string) string {
	return loginURL + "/services/oauth2/token"
}

func authorizeURL(loginURL string) string {
	return loginURL + "/services/oauth2/authorize"
}
