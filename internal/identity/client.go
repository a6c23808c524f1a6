// Package identity talks to the identity provider's REST API (Firebase
// Authentication): password sign-in, password-reset emails and ID token
// refresh.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lacuina/content-service/pkg/logger"
)

const (
	DefaultIdentityURL = "https://identitytoolkit.googleapis.com"
	DefaultTokenURL    = "https://securetoken.googleapis.com"
)

// Credentials are the tokens issued by a sign-in or refresh.
type Credentials struct {
	IDToken      string        `json:"idToken"`
	RefreshToken string        `json:"-"`
	UID          string        `json:"uid"`
	Email        string        `json:"email,omitempty"`
	DisplayName  string        `json:"displayName,omitempty"`
	ExpiresIn    time.Duration `json:"-"`
}

type Client struct {
	apiKey      string
	identityURL string
	tokenURL    string
	http        *http.Client
}

type Option func(*Client)

// WithBaseURLs points the client at another host (emulator, tests).
func WithBaseURLs(identityURL, tokenURL string) Option {
	return func(c *Client) {
		c.identityURL = strings.TrimRight(identityURL, "/")
		c.tokenURL = strings.TrimRight(tokenURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		identityURL: DefaultIdentityURL,
		tokenURL:    DefaultTokenURL,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
}

// SignIn exchanges email and password for tokens.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	var resp signInResponse
	err := c.postJSON(ctx, c.identityURL+"/v1/accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		ExpiresIn:    seconds(resp.ExpiresIn),
	}, nil
}

// SendPasswordReset asks the provider to email a reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.postJSON(ctx, c.identityURL+"/v1/accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Refresh trades a refresh token for a fresh ID token. The provider may
// rotate the refresh token too.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.tokenURL+"/v1/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp refreshResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &Credentials{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		UID:          resp.UserID,
		ExpiresIn:    seconds(resp.ExpiresIn),
	}, nil
}

func (c *Client) endpoint(u string) string {
	return u + "?key=" + url.QueryEscape(c.apiKey)
}

func (c *Client) postJSON(ctx context.Context, u string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(u), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("identity: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		perr := parseError(resp.StatusCode, b)
		logger.Debugf("identity: %s returned %d (%s)", req.URL.Path, resp.StatusCode, perr.Code)
		return perr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("identity: decode response: %w", err)
	}
	return nil
}

func seconds(s string) time.Duration {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}
