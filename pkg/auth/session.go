package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SessionCookieName is the gateway's client-facing session cookie.
const SessionCookieName = "ninja_session"

// Session is the client-held view of an authenticated credential,
// serialized into the session cookie. It is created at login, re-issued
// whenever a near-expiry access triggers renewal, and destroyed on
// logout.
type Session struct {
	AccessToken  string `json:"access_token"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Expires      int64  `json:"expires"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AuthSession  string `json:"auth_session,omitempty"`
}

// NewSession builds the client-facing session for a freshly exchanged
// token. Identity fields come from the token's decoded profile when one
// is available.
func NewSession(token *AccessToken, profile *Profile) *Session {
	session := &Session{
		AccessToken:  token.Value,
		Expires:      token.Expires.Unix(),
		RefreshToken: token.RefreshToken,
	}
	if profile != nil {
		session.UserID = profile.UserID
		session.Email = profile.Email
	}
	return session
}

// ExpiresTime returns the session expiry as a time.Time.
func (s *Session) ExpiresTime() time.Time {
	return time.Unix(s.Expires, 0)
}

// Encode serializes the session into the opaque cookie value.
func (s *Session) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeSession parses a cookie value produced by Encode. Undecodable
// values are invalid credentials, never internal errors.
func DecodeSession(value string) (*Session, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed session cookie", ErrInvalidCredential)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%w: malformed session cookie", ErrInvalidCredential)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("%w: session carries no token", ErrInvalidCredential)
	}
	return &session, nil
}

// Cookie builds the Set-Cookie value carrying this session. The cookie
// expires exactly when the token does.
func (s *Session) Cookie() (*http.Cookie, error) {
	value, err := s.Encode()
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  s.ExpiresTime(),
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
		HttpOnly: false,
	}, nil
}

// ExpiredSessionCookie returns the cookie that clears a client's
// session on logout or revocation.
func ExpiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	}
}

// SessionFromRequest extracts and decodes the session cookie from an
// inbound request.
func SessionFromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, fmt.Errorf("%w: no session cookie", ErrMissingCredential)
	}
	return DecodeSession(cookie.Value)
}
