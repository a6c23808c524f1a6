package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/lacuina/content-service/pkg/middleware"
)

// SecureTokenIssuer is the issuer of Firebase Authentication ID tokens.
const SecureTokenIssuer = "https://securetoken.google.com/"

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier creates a new OIDC verifier for the given issuer and client ID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// NewSecureTokenVerifier verifies ID tokens of a Firebase project through
// plain OIDC discovery, without Admin SDK credentials.
func NewSecureTokenVerifier(ctx context.Context, projectID string) (*Verifier, error) {
	return NewVerifier(ctx, SecureTokenIssuer+projectID, projectID)
}

// Verify verifies the provided raw ID token using the provided context and returns a middleware.Token
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
