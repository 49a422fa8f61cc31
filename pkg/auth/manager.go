package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// State is the credential lifecycle state tracked by the Manager.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
	StateRevoked         State = "revoked"
)

// IdentityClient is the set of upstream identity exchanges the Manager
// drives. *Client implements it; tests substitute fakes.
type IdentityClient interface {
	Login(ctx context.Context, account Account) (*AccessToken, error)
	Refresh(ctx context.Context, refreshToken string) (*AccessToken, error)
	Revoke(ctx context.Context, refreshToken string) error
	SessionFromCookie(ctx context.Context, cookieValue string) (*AccessToken, error)
}

// Manager owns the credential lifecycle: login, proactive renewal,
// revocation, and the cookie-based session flow. Exchanged tokens are
// additionally persisted to the token store, keyed by account identity,
// so restarts do not force a full re-login of every account.
//
// Renewal is not single-flighted: concurrent near-expiry requests may
// each trigger a refresh, and each either succeeds independently or is
// superseded by a fresher token. The state machine only refuses to move
// backward: a refresh failure never downgrades a concurrently adopted
// newer credential.
type Manager struct {
	client IdentityClient
	store  TokenStore
	logger *logging.Logger
	clock  func() time.Time

	mu    sync.RWMutex
	state State
	token *AccessToken
}

// NewManager creates a credential manager. A nil store falls back to
// in-process storage.
func NewManager(client IdentityClient, store TokenStore, logger *logging.Logger) (*Manager, error) {
	return NewManagerWithClock(client, store, logger, time.Now)
}

// NewManagerWithClock creates a manager with an explicit time source.
// Exported for tests that pin the renewal boundary.
func NewManagerWithClock(client IdentityClient, store TokenStore, logger *logging.Logger, clock func() time.Time) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("identity client is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		client: client,
		store:  store,
		logger: logger.Component("auth"),
		clock:  clock,
		state:  StateUnauthenticated,
	}, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentToken returns the most recently adopted credential, if any.
func (m *Manager) CurrentToken() (*AccessToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil, false
	}
	token := *m.token
	return &token, true
}

// Store exposes the underlying token store.
func (m *Manager) Store() TokenStore {
	return m.store
}

// Login performs the upstream login exchange. On success the manager
// adopts the credential; a failed exchange leaves state untouched.
func (m *Manager) Login(ctx context.Context, account Account) (*AccessToken, error) {
	token, err := m.client.Login(ctx, account)
	if err != nil {
		return nil, err
	}

	m.adopt(token)
	m.persist(ctx, token, account.Username)
	return token, nil
}

// Refresh exchanges a refresh token for a fresh credential. On failure
// the previous state is restored and the caller keeps using its
// still-valid token; only true expiry forces re-login.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrMissingCredential)
	}

	m.mu.Lock()
	previous := m.state
	m.state = StateRefreshing
	m.mu.Unlock()

	token, err := m.client.Refresh(ctx, refreshToken)
	if err != nil {
		m.mu.Lock()
		// A concurrent renewal may have adopted a fresher token in the
		// meantime; only roll back our own transition.
		if m.state == StateRefreshing {
			m.state = previous
		}
		m.mu.Unlock()
		return nil, err
	}

	m.adopt(token)
	m.persist(ctx, token, "")
	return token, nil
}

// Revoke invalidates a refresh token. Server-side revocation is best
// effort: failures are logged, never escalated, because the client-side
// session is cleared regardless. Revoking an already-revoked token is a
// no-op.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", ErrMissingCredential)
	}

	if err := m.client.Revoke(ctx, refreshToken); err != nil {
		m.logger.WarnContext(ctx, "upstream revoke failed", "error", err)
	}

	m.mu.Lock()
	var revoked *AccessToken
	if m.token != nil && m.token.RefreshToken == refreshToken {
		revoked = m.token
		m.token = nil
	}
	m.state = StateRevoked
	m.mu.Unlock()

	if revoked != nil {
		m.unpersist(ctx, revoked)
	}
	return nil
}

// SessionFromCookie exchanges an upstream browser-session cookie for an
// access token and adopts it.
func (m *Manager) SessionFromCookie(ctx context.Context, cookieValue string) (*AccessToken, error) {
	token, err := m.client.SessionFromCookie(ctx, cookieValue)
	if err != nil {
		return nil, err
	}

	m.adopt(token)
	m.persist(ctx, token, "")
	return token, nil
}

// RenewIfNeeded drives proactive renewal for a client session. Sessions
// above the renewal threshold pass through untouched. At or below it, a
// refresh is attempted when a refresh token exists; refresh failure
// keeps the still-valid session. A session past true expiry gets one
// final refresh attempt before the caller is forced to re-authenticate.
func (m *Manager) RenewIfNeeded(ctx context.Context, session *Session) (*Session, bool, error) {
	now := m.clock()
	expires := session.ExpiresTime()

	if !now.Before(expires) {
		if session.RefreshToken != "" {
			if renewed, ok := m.tryRenew(ctx, session); ok {
				return renewed, true, nil
			}
		}
		return nil, false, ErrSessionExpired
	}

	if expires.Sub(now) > RenewalThreshold {
		return session, false, nil
	}
	if session.RefreshToken == "" {
		// Nothing to renew with; the session rides out its remaining
		// lifetime.
		return session, false, nil
	}

	if renewed, ok := m.tryRenew(ctx, session); ok {
		return renewed, true, nil
	}
	return session, false, nil
}

func (m *Manager) tryRenew(ctx context.Context, session *Session) (*Session, bool) {
	token, err := m.Refresh(ctx, session.RefreshToken)
	if err != nil {
		m.logger.WarnContext(ctx, "proactive renewal failed, keeping current token",
			"user", session.UserID,
			"error", err,
		)
		return nil, false
	}

	profile, err := DecodeProfile(token.Value)
	if err != nil {
		profile = &Profile{UserID: session.UserID, Email: session.Email}
	}
	renewed := NewSession(token, profile)
	renewed.AuthSession = session.AuthSession
	return renewed, true
}

func (m *Manager) adopt(token *AccessToken) {
	m.mu.Lock()
	m.state = StateAuthenticated
	m.token = token
	m.mu.Unlock()
}

// persist writes the token through to the store, keyed by the account's
// email when the token decodes, else by the provided fallback identity.
func (m *Manager) persist(ctx context.Context, token *AccessToken, fallback string) {
	identity := fallback
	var userID string
	if profile, err := DecodeProfile(token.Value); err == nil {
		userID = profile.UserID
		if profile.Email != "" {
			identity = profile.Email
		}
	}
	if identity == "" {
		return
	}

	stored := &StoredToken{
		Identity:     identity,
		UserID:       userID,
		Kind:         token.Kind,
		Value:        token.Value,
		RefreshToken: token.RefreshToken,
		Expires:      token.Expires,
	}
	if err := m.store.Put(ctx, stored); err != nil {
		m.logger.WarnContext(ctx, "failed to persist token",
			"identity", identity,
			"error", err,
		)
	}
}

func (m *Manager) unpersist(ctx context.Context, token *AccessToken) {
	profile, err := DecodeProfile(token.Value)
	if err != nil || profile.Email == "" {
		return
	}
	if err := m.store.Delete(ctx, profile.Email); err != nil {
		m.logger.WarnContext(ctx, "failed to drop revoked token",
			"identity", profile.Email,
			"error", err,
		)
	}
}
