package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{repo: r, ttl: ttl}
}

// Open stores a new session holding the provider refresh token and returns
// the opaque session id handed to the client.
func (s *Service) Open(ctx context.Context, uid, email, providerRefresh string) (*Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:              hex.EncodeToString(b),
		UID:             uid,
		Email:           email,
		ProviderRefresh: providerRefresh,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Lookup returns the session if it exists and has not expired.
func (s *Service) Lookup(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(time.Now().UTC()) {
		// cleanup expired session
		_ = s.repo.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Rotate records the refresh token the provider issued on the last refresh.
func (s *Service) Rotate(ctx context.Context, sess *Session, providerRefresh string) error {
	if providerRefresh == "" || providerRefresh == sess.ProviderRefresh {
		return nil
	}
	sess.ProviderRefresh = providerRefresh
	return s.repo.Save(ctx, sess)
}

func (s *Service) Close(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
