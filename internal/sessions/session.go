package sessions

import "time"

// Session is an admin sign-in. The client only ever sees ID; the identity
// provider's refresh token stays server side.
type Session struct {
	ID              string    `bson:"_id" json:"id"`
	UID             string    `bson:"uid" json:"uid"`
	Email           string    `bson:"email" json:"email"`
	ProviderRefresh string    `bson:"providerRefresh" json:"providerRefresh"`
	ExpiresAt       time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }
