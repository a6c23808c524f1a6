// Package profiles keeps per-admin settings under adminProfiles/{uid}.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lacuina/content-service/internal/store"
)

const (
	Collection     = "adminProfiles"
	MaxDisplayName = 60
)

var ErrInvalidName = fmt.Errorf("display name must be 1 to %d characters", MaxDisplayName)

// Profile is the node stored for one admin.
type Profile struct {
	UID         string `json:"uid,omitempty"`
	DisplayName string `json:"displayName"`
}

// Service encapsulates profile reads and writes. Callers pass the uid of the
// verified token, so every admin only reaches their own node.
type Service struct {
	profiles *store.Collection[Profile]
	st       store.Store
}

func NewService(st store.Store) *Service {
	return &Service{profiles: store.NewCollection[Profile](st, Collection), st: st}
}

// Get returns the profile; a missing node is an empty profile.
func (s *Service) Get(ctx context.Context, uid string) (Profile, error) {
	p, err := s.profiles.Get(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return Profile{UID: uid}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", uid, err)
	}
	p.UID = uid
	return p, nil
}

func (s *Service) DisplayName(ctx context.Context, uid string) (string, error) {
	p, err := s.Get(ctx, uid)
	return p.DisplayName, err
}

func (s *Service) SetDisplayName(ctx context.Context, uid, name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxDisplayName {
		return Profile{}, ErrInvalidName
	}
	if err := s.st.Update(ctx, store.Join(Collection, uid), map[string]interface{}{"displayName": name}); err != nil {
		return Profile{}, fmt.Errorf("set display name %s: %w", uid, err)
	}
	return Profile{UID: uid, DisplayName: name}, nil
}

// SeedFromClaims fills an unset display name from the token's name (or the
// local part of the email) on sign-in.
func (s *Service) SeedFromClaims(ctx context.Context, uid string, claims map[string]interface{}) (Profile, error) {
	p, err := s.Get(ctx, uid)
	if err != nil || p.DisplayName != "" {
		return p, err
	}
	name, _ := claims["name"].(string)
	if strings.TrimSpace(name) == "" {
		email, _ := claims["email"].(string)
		name, _, _ = strings.Cut(email, "@")
	}
	if strings.TrimSpace(name) == "" {
		return p, nil
	}
	if utf8.RuneCountInString(name) > MaxDisplayName {
		name = string([]rune(name)[:MaxDisplayName])
	}
	return s.SetDisplayName(ctx, uid, name)
}
