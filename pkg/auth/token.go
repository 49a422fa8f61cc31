package auth

import "time"

// RenewalThreshold is the remaining-lifetime boundary at or below which
// an access token is proactively refreshed. Tokens with more life left
// are used as-is.
const RenewalThreshold = 21600 * time.Second

// TokenKind discriminates the two credential shapes the upstream
// identity provider issues.
type TokenKind string

const (
	// TokenKindOAuth is a bare OAuth access token from the password
	// grant. It carries no refresh token through this gateway.
	TokenKindOAuth TokenKind = "oauth"

	// TokenKindSession is an access token backed by an upstream browser
	// session, renewable through a refresh token where one was issued.
	TokenKindSession TokenKind = "session"
)

// AccessToken is the credential produced by a login exchange and
// consumed by every authenticated upstream call. Tokens are never
// mutated in place, only replaced by a fresh exchange.
type AccessToken struct {
	Kind         TokenKind
	Value        string
	Expires      time.Time
	RefreshToken string // session tokens only, may be empty
}

// ExpiredAt reports whether the token is unusable at the given instant.
func (t *AccessToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.Expires)
}

// NeedsRenewalAt reports whether the remaining lifetime at the given
// instant has fallen to or below the renewal threshold.
func (t *AccessToken) NeedsRenewalAt(now time.Time) bool {
	return t.Expires.Sub(now) <= RenewalThreshold
}
