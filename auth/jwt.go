package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"kinetic/session"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionLifetime is deliberately short; the platform rejects
// assertions older than a few minutes anyway.
const assertionLifetime = 3 * time.Minute

// JWTAuthenticator implements the OAuth JWT bearer flow: a short-lived
// RS256 assertion signed with the connected app's private key, traded
// directly for an access token. No user interaction, no refresh token.
type JWTAuthenticator struct {
	creds      Credentials
	apiVersion string

	client *http.Client
}

func NewJWTAuthenticator(creds Credentials, apiVersion string) *JWTAuthenticator {
	return &JWTAuthenticator{
		creds:      creds,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context) (*session.Session, error) {
	assertion, err := a.buildAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	return requestToken(ctx, a.client, tokenURL(a.creds.LoginURL), form, a.apiVersion)
}

func (a *JWTAuthenticator) buildAssertion() (string, error) {
	pem, err := os.ReadFile(a.creds.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.creds.ClientID,
		Subject:   a.creds.Username,
		Audience:  jwt.ClaimStrings{a.creds.LoginURL},
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	return signed, nil
}

// requestToken posts a token request and builds a session from the
// access_token and instance_url fields of the response.
func requestToken(ctx context.Context, client *http.Client, endpoint string, form url.Values, apiVersion string) (*session.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, session.NewAPIError(resp.StatusCode, body)
	}

	accessToken := gjson.GetBytes(body, "access_token").String()
	instanceURL := gjson.GetBytes(body, "instance_url").String()
	if accessToken == "" || instanceURL == "" {
		return nil, &session.DecodeError{
			What: "token response",
			Err:  fmt.Errorf("missing access_token or instance_url"),
		}
	}

	return session.New(instanceURL, accessToken, apiVersion), nil
}
