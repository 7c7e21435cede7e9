package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostFormValue("grant_type"))
		require.Equal(t, "ops@acme.example", r.PostFormValue("username"))
		require.Equal(t, "hunter2", r.PostFormValue("password"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"00Dxx!pwd","instance_url":"https://acme.my.salesforce.com","token_type":"Bearer"}`)
	}))
	t.Cleanup(srv.Close)

	creds := Credentials{
		ClientID:     "3MVG9client",
		ClientSecret: "secret",
		Username:     "ops@acme.example",
		Password:     "hunter2",
		LoginURL:     srv.URL,
	}

	sess, err := NewPasswordAuthenticator(creds, "v60.0").Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://acme.my.salesforce.com", sess.InstanceURL)
	require.Equal(t, "00Dxx!pwd", sess.AccessToken)
	require.Equal(t, "v60.0", sess.APIVersion)
}

func TestPasswordAuthenticator_MissingInstanceURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"00Dxx!pwd","token_type":"Bearer"}`)
	}))
	t.Cleanup(srv.Close)

	creds := Credentials{ClientID: "c", Username: "u", Password: "p", LoginURL: srv.URL}

	_, err := NewPasswordAuthenticator(creds, "v60.0").Authenticate(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "instance_url")
}
