package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/telemetry/metrics"
)

// loginRequest is the body of POST /auth/token. AuthKey is the
// pre-shared login key, required only when a keyring is loaded. Type
// selects the response shape: "session" sets the gateway session
// cookie, anything else returns the bare OAuth grant.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
	AuthKey  string `json:"auth_key,omitempty"`
	Type     string `json:"type,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type oauthResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type sessionResponse struct {
	User        sessionUser `json:"user"`
	Expires     string      `json:"expires"`
	AccessToken string      `json:"accessToken"`
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) authMetrics() *metrics.AuthMetrics {
	if s.deps.Metrics == nil {
		return nil
	}
	return s.deps.Metrics.Auth
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		proxy.WriteErrorResponse(w, types.NewServerError("authentication is not configured"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError("request body is not valid JSON", "", ""))
		return
	}

	if s.deps.Keyring != nil && s.deps.Keyring.Enabled() {
		name, ok := s.deps.Keyring.Verify(req.AuthKey)
		if !ok {
			s.logger.Warn("Login rejected by key gate", "remote", r.RemoteAddr)
			proxy.WriteErrorResponse(w, types.NewAuthenticationError("invalid or missing auth key"))
			return
		}
		s.logger.Debug("Login key accepted", "key", name)
	}

	account := auth.Account{
		Username: req.Username,
		Password: req.Password,
		MFACode:  req.MFACode,
	}
	if err := account.Validate(); err != nil {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError(err.Error(), "", ""))
		return
	}

	token, err := s.deps.Auth.Login(r.Context(), account)
	s.authMetrics().RecordExchange(metrics.ExchangeLogin, err)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	if req.Type == "session" {
		s.writeSessionResponse(w, token)
		return
	}
	s.writeOAuthResponse(w, token)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		proxy.WriteErrorResponse(w, types.NewServerError("authentication is not configured"))
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError("refresh_token is required", "refresh_token", ""))
		return
	}

	token, err := s.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	s.authMetrics().RecordExchange(metrics.ExchangeRefresh, err)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.writeOAuthResponse(w, token)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		proxy.WriteErrorResponse(w, types.NewServerError("authentication is not configured"))
		return
	}

	if _, ok := auth.BearerToken(r); !ok {
		proxy.WriteErrorResponse(w, types.NewAuthenticationError("bearer token required"))
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError("refresh_token is required", "refresh_token", ""))
		return
	}

	err := s.deps.Auth.Revoke(r.Context(), req.RefreshToken)
	s.authMetrics().RecordExchange(metrics.ExchangeRevoke, err)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	http.SetCookie(w, auth.ExpiredSessionCookie())
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]bool{"revoked": true})
}

// handleSession reports (and silently renews) the caller's session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		proxy.WriteErrorResponse(w, types.NewServerError("authentication is not configured"))
		return
	}

	session, err := auth.SessionFromRequest(r)
	if err != nil {
		proxy.WriteErrorResponse(w, types.NewAuthenticationError("no valid session"))
		return
	}

	renewed, changed, err := s.deps.Auth.RenewIfNeeded(r.Context(), session)
	if err != nil {
		http.SetCookie(w, auth.ExpiredSessionCookie())
		proxy.WriteErrorResponse(w, types.NewSessionExpiredError("session expired, log in again"))
		return
	}
	if changed {
		if cookie, err := renewed.Cookie(); err == nil {
			http.SetCookie(w, cookie)
		}
	}

	proxy.WriteJSONResponse(w, http.StatusOK, sessionResponse{
		User: sessionUser{
			ID:    renewed.UserID,
			Email: renewed.Email,
		},
		Expires:     renewed.ExpiresTime().UTC().Format(time.RFC3339),
		AccessToken: renewed.AccessToken,
	})
}

func (s *Server) writeOAuthResponse(w http.ResponseWriter, token *auth.AccessToken) {
	proxy.WriteJSONResponse(w, http.StatusOK, oauthResponse{
		AccessToken:  token.Value,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(token.Expires).Seconds()),
		RefreshToken: token.RefreshToken,
	})
}

func (s *Server) writeSessionResponse(w http.ResponseWriter, token *auth.AccessToken) {
	var profile *auth.Profile
	if p, err := auth.DecodeProfile(token.Value); err == nil {
		profile = p
	}
	session := auth.NewSession(token, profile)

	cookie, err := session.Cookie()
	if err != nil {
		proxy.WriteErrorResponse(w, types.NewServerError("failed to issue session cookie"))
		return
	}
	http.SetCookie(w, cookie)

	proxy.WriteJSONResponse(w, http.StatusOK, sessionResponse{
		User: sessionUser{
			ID:    session.UserID,
			Email: session.Email,
		},
		Expires:     session.ExpiresTime().UTC().Format(time.RFC3339),
		AccessToken: session.AccessToken,
	})
}

// writeAuthError maps identity failures onto the wire error model.
// Upstream exchange failures keep their upstream-derived mapping.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError("missing credential", "", ""))
	case errors.Is(err, auth.ErrInvalidCredential):
		proxy.WriteErrorResponse(w, types.NewAuthenticationError("invalid credential"))
	case errors.Is(err, auth.ErrSessionExpired):
		proxy.WriteErrorResponse(w, types.NewSessionExpiredError("session expired, log in again"))
	default:
		proxy.WriteErrorResponse(w, proxy.HandleError(err))
	}
}
