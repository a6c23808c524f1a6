package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacuina/content-service/internal/identity"
	"github.com/lacuina/content-service/internal/profiles"
	"github.com/lacuina/content-service/internal/sessions"
	"github.com/lacuina/content-service/internal/store"
	"github.com/lacuina/content-service/pkg/middleware"
)

// fakeIdentity implements IdentityProvider
type fakeIdentity struct {
	signInErr  error
	refreshErr error
	resetErr   error
	resets     []string
	refreshed  []string
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*identity.Credentials, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &identity.Credentials{IDToken: "goodtoken", RefreshToken: "rt-1", UID: "uid-1", Email: email, ExpiresIn: time.Hour}, nil
}

func (f *fakeIdentity) SendPasswordReset(ctx context.Context, email string) error {
	f.resets = append(f.resets, email)
	return f.resetErr
}

func (f *fakeIdentity) Refresh(ctx context.Context, refreshToken string) (*identity.Credentials, error) {
	f.refreshed = append(f.refreshed, refreshToken)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &identity.Credentials{IDToken: "fresh", RefreshToken: "rt-2", UID: "uid-1", ExpiresIn: time.Hour}, nil
}

type mapToken map[string]interface{}

func (t mapToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = map[string]interface{}(t)
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts "goodtoken" and "admintoken".
type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	switch raw {
	case "goodtoken", "admintoken":
		return mapToken{"user_id": "uid-1", "sub": "uid-1", "email": "anna@canfonda.cat"}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type authFixture struct {
	router   *gin.Engine
	idp      *fakeIdentity
	sessions *sessions.Service
	profiles *profiles.Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &authFixture{
		idp:      &fakeIdentity{},
		sessions: sessions.NewService(sessions.NewMemoryRepository(), time.Hour),
		profiles: profiles.NewService(store.NewMemoryStore()),
	}
	f.router = gin.New()
	NewAuthHandler(f.idp, fakeVerifier{}, f.sessions, f.profiles).Register(f.router.Group("/"))
	return f
}

func postJSON(r http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestLoginOpensSessionAndSeedsProfile(t *testing.T) {
	f := newAuthFixture(t)

	w := postJSON(f.router, "/auth/login", `{"email":" anna@canfonda.cat ","password":"x"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody(t, w)
	assert.Equal(t, "goodtoken", got["idToken"])
	assert.Equal(t, float64(3600), got["expiresIn"])
	assert.Equal(t, "anna", got["displayName"])

	sid, _ := got["sessionId"].(string)
	require.Len(t, sid, 64)
	sess, err := f.sessions.Lookup(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", sess.ProviderRefresh)
	assert.Equal(t, "uid-1", sess.UID)

	name, err := f.profiles.DisplayName(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "anna", name)
}

func TestLoginProviderErrorIsTranslated(t *testing.T) {
	f := newAuthFixture(t)
	f.idp.signInErr = &identity.Error{Status: 400, Code: "INVALID_PASSWORD"}

	w := postJSON(f.router, "/auth/login", `{"email":"anna@canfonda.cat","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "La contrasenya no és correcta.", decodeBody(t, w)["error"])
}

func TestLoginProviderOutage(t *testing.T) {
	f := newAuthFixture(t)
	f.idp.signInErr = fmt.Errorf("identity: dial tcp: refused")

	w := postJSON(f.router, "/auth/login", `{"email":"anna@canfonda.cat","password":"x"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLoginRequiresFields(t *testing.T) {
	f := newAuthFixture(t)
	w := postJSON(f.router, "/auth/login", `{"email":"anna@canfonda.cat"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshRotatesProviderToken(t *testing.T) {
	f := newAuthFixture(t)
	sess, err := f.sessions.Open(context.Background(), "uid-1", "anna@canfonda.cat", "rt-1")
	require.NoError(t, err)

	w := postJSON(f.router, "/auth/refresh", fmt.Sprintf(`{"sessionId":%q}`, sess.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", decodeBody(t, w)["idToken"])
	assert.Equal(t, []string{"rt-1"}, f.idp.refreshed)

	again, err := f.sessions.Lookup(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "rt-2", again.ProviderRefresh)
}

func TestRefreshUnknownSession(t *testing.T) {
	f := newAuthFixture(t)
	w := postJSON(f.router, "/auth/refresh", `{"sessionId":"does-not-exist"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.idp.refreshed)
}

func TestRefreshRevokedUpstreamClosesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.idp.refreshErr = &identity.Error{Status: 400, Code: "USER_DISABLED"}
	sess, err := f.sessions.Open(context.Background(), "uid-1", "", "rt-1")
	require.NoError(t, err)

	w := postJSON(f.router, "/auth/refresh", fmt.Sprintf(`{"sessionId":%q}`, sess.ID))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Aquest compte està desactivat.", decodeBody(t, w)["error"])

	_, err = f.sessions.Lookup(context.Background(), sess.ID)
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	w := postJSON(f.router, "/auth/password-reset", `{"email":"anna@canfonda.cat"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"anna@canfonda.cat"}, f.idp.resets)

	f.idp.resetErr = &identity.Error{Status: 400, Code: "EMAIL_NOT_FOUND"}
	w = postJSON(f.router, "/auth/password-reset", `{"email":"nobody@canfonda.cat"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No hi ha cap compte amb aquest correu.", decodeBody(t, w)["error"])
}

func TestLogoutBlacklistsIDTokenAndClosesSession(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	f := newAuthFixture(t)
	sess, err := f.sessions.Open(context.Background(), "uid-1", "", "rt-1")
	require.NoError(t, err)

	exp := time.Now().Add(2 * time.Minute).Unix()
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"user_id":"uid-1","exp":%d}`, exp)))
	idToken := "eyJhbGciOiJub25lIn0." + payload + ".sig"

	w := postJSON(f.router, "/auth/logout", fmt.Sprintf(`{"sessionId":%q}`, sess.ID), "Authorization", "Bearer "+idToken)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = f.sessions.Lookup(context.Background(), sess.ID)
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
	assert.True(t, m.Exists("blacklist:idtoken:"+idToken))
}
