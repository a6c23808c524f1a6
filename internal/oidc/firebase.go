package oidc

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"github.com/lacuina/content-service/pkg/middleware"
)

// FirebaseVerifier checks ID tokens with the Admin SDK, which also honours
// revocations when checkRevoked is set.
type FirebaseVerifier struct {
	client       *auth.Client
	checkRevoked bool
}

func NewFirebaseVerifier(client *auth.Client, checkRevoked bool) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, checkRevoked: checkRevoked}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	var (
		tok *auth.Token
		err error
	)
	if v.checkRevoked {
		tok, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, raw)
	} else {
		tok, err = v.client.VerifyIDToken(ctx, raw)
	}
	if err != nil {
		return nil, err
	}
	return firebaseClaims(tok), nil
}

// firebaseClaims flattens an Admin SDK token into the claim set the
// middleware reads.
func firebaseClaims(tok *auth.Token) middleware.Token {
	claims := make(map[string]interface{}, len(tok.Claims)+4)
	for k, v := range tok.Claims {
		claims[k] = v
	}
	claims["sub"] = tok.Subject
	claims["user_id"] = tok.UID
	claims["iss"] = tok.Issuer
	claims["exp"] = tok.Expires
	return &claimsToken{claims: claims}
}
