package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
	"github.com/xhd193694/ninja/pkg/upstream"
)

// upstreamSessionCookie is the upstream's own browser-session cookie,
// exchanged for an access token in the cookie-based flow.
const upstreamSessionCookie = "__Secure-next-auth.session-token"

// Account carries one set of login credentials.
type Account struct {
	Username string
	Password string
	// MFACode is the one-time code for accounts with MFA enabled.
	MFACode string
}

// Validate checks the account is usable for a login exchange.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidCredential)
	}
	if a.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredential)
	}
	return nil
}

// ClientConfig configures the identity exchange client.
type ClientConfig struct {
	// BaseURL is the identity provider endpoint. Required.
	BaseURL string

	// ClientID identifies this gateway to the identity provider.
	// Required.
	ClientID string
}

// Client performs the identity exchanges behind login, refresh, revoke,
// and the cookie-based session flow. All calls go through the shared
// upstream client and inherit its retry and health behavior.
//
// Each Client carries a per-process device id, sent on every exchange
// so the provider sees one consistent device rather than a new one per
// call.
type Client struct {
	http     *upstream.Client
	config   ClientConfig
	deviceID string
	logger   *logging.Logger
}

// NewClient creates an identity exchange client.
func NewClient(httpClient *upstream.Client, cfg ClientConfig, logger *logging.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("identity base URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("identity client id is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		http:     httpClient,
		config:   cfg,
		deviceID: uuid.NewString(),
		logger:   logger.Component("auth.client"),
	}, nil
}

// DeviceID returns the per-process device identifier sent on exchanges.
func (c *Client) DeviceID() string { return c.deviceID }

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	MFACode      string `json:"mfa_code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionToken string `json:"session_token,omitempty"`
}

type sessionResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Expires     string `json:"expires"`
	AccessToken string `json:"accessToken"`
}

func (c *Client) exchangeHeaders() map[string]string {
	return map[string]string{"OAI-Device-Id": c.deviceID}
}

// Login performs the password-grant exchange. A response carrying a
// refresh or session token becomes a session credential; otherwise a
// plain OAuth credential.
func (c *Client) Login(ctx context.Context, account Account) (*AccessToken, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	req := tokenRequest{
		GrantType: "password",
		ClientID:  c.config.ClientID,
		Username:  account.Username,
		Password:  account.Password,
		MFACode:   account.MFACode,
	}
	var resp tokenResponse
	if err := c.http.DoJSON(ctx, "POST", c.config.BaseURL+"/oauth/token", req, &resp, c.exchangeHeaders()); err != nil {
		return nil, err
	}
	token, err := c.tokenFromResponse(&resp)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "login exchange succeeded",
		"username", account.Username,
		"kind", string(token.Kind),
		"expires", token.Expires,
	)
	return token, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrMissingCredential)
	}

	req := tokenRequest{
		GrantType:    "refresh_token",
		ClientID:     c.config.ClientID,
		RefreshToken: refreshToken,
	}
	var resp tokenResponse
	if err := c.http.DoJSON(ctx, "POST", c.config.BaseURL+"/oauth/token", req, &resp, c.exchangeHeaders()); err != nil {
		return nil, err
	}
	// The provider may rotate the refresh token; keep the old one when
	// it does not.
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	return c.tokenFromResponse(&resp)
}

// Revoke invalidates a refresh token server-side.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", ErrMissingCredential)
	}

	req := struct {
		ClientID string `json:"client_id"`
		Token    string `json:"token"`
	}{ClientID: c.config.ClientID, Token: refreshToken}

	return c.http.DoJSON(ctx, "POST", c.config.BaseURL+"/oauth/revoke", req, nil, c.exchangeHeaders())
}

// SessionFromCookie exchanges an upstream browser-session cookie for an
// access token.
func (c *Client) SessionFromCookie(ctx context.Context, cookieValue string) (*AccessToken, error) {
	if cookieValue == "" {
		return nil, fmt.Errorf("%w: session cookie is required", ErrMissingCredential)
	}

	headers := c.exchangeHeaders()
	headers["Cookie"] = upstreamSessionCookie + "=" + cookieValue

	var resp sessionResponse
	if err := c.http.DoJSON(ctx, "GET", c.http.WebURL().String()+"/api/auth/session", nil, &resp, headers); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: upstream session carries no token", ErrInvalidCredential)
	}

	expires, err := time.Parse(time.RFC3339, resp.Expires)
	if err != nil {
		// Fall back to the token's own exp claim.
		if profile, perr := DecodeProfile(resp.AccessToken); perr == nil && !profile.Expires.IsZero() {
			expires = profile.Expires
		} else {
			return nil, fmt.Errorf("%w: upstream session carries no expiry", ErrInvalidCredential)
		}
	}

	return &AccessToken{
		Kind:    TokenKindSession,
		Value:   resp.AccessToken,
		Expires: expires,
	}, nil
}

// tokenFromResponse normalizes a token exchange response.
func (c *Client) tokenFromResponse(resp *tokenResponse) (*AccessToken, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: exchange returned no token", ErrInvalidCredential)
	}

	token := &AccessToken{
		Kind:         TokenKindOAuth,
		Value:        resp.AccessToken,
		Expires:      time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		RefreshToken: resp.RefreshToken,
	}
	if resp.RefreshToken != "" || resp.SessionToken != "" {
		token.Kind = TokenKindSession
	}
	if resp.ExpiresIn <= 0 {
		// Some exchanges omit expires_in; the token's exp claim is
		// authoritative then.
		profile, err := DecodeProfile(resp.AccessToken)
		if err != nil || profile.Expires.IsZero() {
			return nil, fmt.Errorf("%w: exchange returned no expiry", ErrInvalidCredential)
		}
		token.Expires = profile.Expires
	}
	return token, nil
}
