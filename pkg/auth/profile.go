package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim namespaces used by the upstream identity provider.
const (
	authClaimKey    = "https://api.openai.com/auth"
	profileClaimKey = "https://api.openai.com/profile"
)

// Profile is the derived, read-only identity view of a decoded access
// token.
type Profile struct {
	UserID  string
	Email   string
	Expires time.Time
}

// DecodeProfile extracts identity claims from an access token without
// verifying its signature. The upstream provider holds the signing
// keys, not this gateway; the token is only ever trusted as far as the
// upstream accepts it on the next call.
func DecodeProfile(accessToken string) (*Profile, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("%w: not a decodable token", ErrInvalidCredential)
	}

	profile := &Profile{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		profile.Expires = exp.Time
	}
	if authClaims, ok := claims[authClaimKey].(map[string]any); ok {
		if userID, ok := authClaims["user_id"].(string); ok {
			profile.UserID = userID
		}
	}
	if profileClaims, ok := claims[profileClaimKey].(map[string]any); ok {
		if email, ok := profileClaims["email"].(string); ok {
			profile.Email = email
		}
	}
	return profile, nil
}
