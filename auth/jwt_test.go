package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"kinetic/session"
)

func writeTestKey(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}

	path := filepath.Join(t.TempDir(), "server.key")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

	return path, &key.PublicKey
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	keyPath, pubKey := writeTestKey(t)

	var seenAssertion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, jwtBearerGrant, r.PostFormValue("grant_type"))
		seenAssertion = r.PostFormValue("assertion")

		fmt.Fprintf(w, `{"access_token":"00Dxx!fresh","instance_url":"https://acme.my.salesforce.com","token_type":"Bearer"}`)
	}))
	t.Cleanup(srv.Close)

	creds := Credentials{
		ClientID:       "3MVG9client",
		Username:       "ops@acme.example",
		PrivateKeyPath: keyPath,
		LoginURL:       srv.URL,
	}

	sess, err := NewJWTAuthenticator(creds, "v60.0").Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://acme.my.salesforce.com", sess.InstanceURL)
	require.Equal(t, "00Dxx!fresh", sess.AccessToken)

	// the assertion must verify against the registered key and carry
	// the right parties
	parsed, err := jwt.ParseWithClaims(seenAssertion, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return pubKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	require.Equal(t, "3MVG9client", claims.Issuer)
	require.Equal(t, "ops@acme.example", claims.Subject)
	require.Equal(t, jwt.ClaimStrings{srv.URL}, claims.Audience)
	require.NotNil(t, claims.ExpiresAt)
}

func TestJWTAuthenticator_RejectionIsAPIError(t *testing.T) {
	t.Parallel()

	keyPath, _ := writeTestKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"user hasn't approved this consumer"}`)
	}))
	t.Cleanup(srv.Close)

	creds := Credentials{ClientID: "c", Username: "u", PrivateKeyPath: keyPath, LoginURL: srv.URL}

	_, err := NewJWTAuthenticator(creds, "v60.0").Authenticate(context.Background())

	var apiErr *session.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "invalid_grant", apiErr.ErrorCode)
	require.Equal(t, session.CategoryBadRequest, apiErr.Category)
}

func TestJWTAuthenticator_MissingKeyFile(t *testing.T) {
	t.Parallel()

	creds := Credentials{
		ClientID:       "c",
		Username:       "u",
		PrivateKeyPath: filepath.Join(t.TempDir(), "nope.key"),
		LoginURL:       "https://login.salesforce.com",
	}

	_, err := NewJWTAuthenticator(creds, "v60.0").Authenticate(context.Background())
	require.Error(t, err)
}

func TestFromEnv_PrefersJWTOverPassword(t *testing.T) {
	keyPath, _ := writeTestKey(t)

	t.Setenv("SF_CLIENT_ID", "3MVG9client")
	t.Setenv("SF_USERNAME", "ops@acme.example")
	t.Setenv("SF_PASSWORD", "hunter2")
	t.Setenv("SF_PRIVATE_KEY", keyPath)

	a, err := FromEnv("v60.0")
	require.NoError(t, err)
	require.IsType(t, &JWTAuthenticator{}, a)
}

func TestFromEnv_FallsBackToPassword(t *testing.T) {
	t.Setenv("SF_CLIENT_ID", "3MVG9client")
	t.Setenv("SF_USERNAME", "ops@acme.example")
	t.Setenv("SF_PASSWORD", "hunter2")
	t.Setenv("SF_PRIVATE_KEY", "")

	a, err := FromEnv("v60.0")
	require.NoError(t, err)
	require.IsType(t, &PasswordAuthenticator{}, a)
}

func TestFromEnv_NoCredentials(t *testing.T) {
	t.Setenv("SF_CLIENT_ID", "")
	t.Setenv("SF_USERNAME", "")
	t.Setenv("SF_PASSWORD", "")
	t.Setenv("SF_PRIVATE_KEY", "")

	_, err := FromEnv("v60.0")
	require.Error(t, err)
}
