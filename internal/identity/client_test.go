package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURLs(srv.URL, srv.URL), WithHTTPClient(srv.Client()))
}

func TestSignIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "anna@canfonda.cat", body["email"])
		assert.Equal(t, true, body["returnSecureToken"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"idToken":"id-1","refreshToken":"rt-1","expiresIn":"3600","localId":"uid-1","email":"anna@canfonda.cat","displayName":"Anna"}`))
	})

	creds, err := c.SignIn(context.Background(), "anna@canfonda.cat", "secret")
	require.NoError(t, err)
	assert.Equal(t, "id-1", creds.IDToken)
	assert.Equal(t, "rt-1", creds.RefreshToken)
	assert.Equal(t, "uid-1", creds.UID)
	assert.Equal(t, "Anna", creds.DisplayName)
	assert.Equal(t, time.Hour, creds.ExpiresIn)
}

func TestSignInProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled"}}`))
	})

	_, err := c.SignIn(context.Background(), "anna@canfonda.cat", "bad")
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "TOO_MANY_ATTEMPTS_TRY_LATER", perr.Code)
	assert.True(t, IsCredentialError(err))
	assert.Equal(t, "Massa intents. Torna-ho a provar més tard.", UserMessage(err))
}

func TestSendPasswordReset(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:sendOobCode", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"email":"anna@canfonda.cat"}`))
	})

	require.NoError(t, c.SendPasswordReset(context.Background(), "anna@canfonda.cat"))
	assert.Equal(t, "PASSWORD_RESET", got["requestType"])
	assert.Equal(t, "anna@canfonda.cat", got["email"])
}

func TestRefresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		w.Write([]byte(`{"id_token":"id-2","refresh_token":"rt-2","expires_in":"3600","user_id":"uid-1"}`))
	})

	creds, err := c.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "id-2", creds.IDToken)
	assert.Equal(t, "rt-2", creds.RefreshToken)
	assert.Equal(t, "uid-1", creds.UID)
}

func TestRefreshPlainErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := c.Refresh(context.Background(), "gone")
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "INVALID_GRANT", perr.Code)
	assert.Equal(t, genericMessage, UserMessage(err))
}

func TestServerErrorIsNotCredentialError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`oops`))
	})

	_, err := c.SignIn(context.Background(), "a@b.cat", "x")
	require.Error(t, err)
	assert.False(t, IsCredentialError(err))
	assert.Equal(t, genericMessage, UserMessage(err))
}

func TestUserMessages(t *testing.T) {
	for code := range messages {
		assert.NotEqual(t, genericMessage, UserMessage(&Error{Status: 400, Code: code}), code)
	}
	assert.Equal(t, genericMessage, UserMessage(errors.New("network")))
}
