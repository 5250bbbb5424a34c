package http

import (
	"net/http"
	"time"

	"teamapp/internal/auth"
)

type loginRequest struct {
	Key        string `json:"key"`
	RememberMe bool   `json:"rememberMe"`
}

type userView struct {
	Username       string           `json:"username"`
	Permissions    auth.Permissions `json:"permissions"`
	Method         auth.Method      `json:"method,omitempty"`
	SessionID      *string          `json:"sessionId,omitempty"`
	SessionExpires *time.Time       `json:"sessionExpires,omitempty"`
}

func (s *Server) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	return c
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		ErrorFrom(r.Context(), "log in", err).Write(w)
		return
	}

	client := s.detector.ExtractClientIP(r)
	res, err := s.deps.Auth.Login(r.Context(), client, sanitizeInput(req.Key), req.RememberMe)
	if err != nil {
		ErrorFrom(r.Context(), "log in", err).Write(w)
		return
	}

	user := userView{
		Username:    res.Principal.Username,
		Permissions: res.Principal.Permissions,
		Method:      res.Principal.Method,
	}
	resp := NewJSONResponse()
	if res.Session != nil {
		user.SessionID = &res.Session.ID
		user.SessionExpires = &res.Session.ExpiresAt
		resp.Cookie(s.sessionCookie(res.Session.ID, res.Session.ExpiresAt))
	}
	resp.Success("login successful", map[string]any{"user": user}).Write(w)
}

// handleVerify reports who the credentials on the request belong to.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	bearer, session := auth.Credentials(r)
	p, err := s.deps.Auth.Authenticate(bearer, session)
	if err != nil {
		ErrorFrom(r.Context(), "verify session", err).Write(w)
		return
	}
	NewJSONResponse().Success("", map[string]any{"user": userView{
		Username:       p.Username,
		Permissions:    p.Permissions,
		Method:         p.Method,
		SessionExpires: p.SessionExpires,
	}}).Write(w)
}

// handleLogout forgets the session cookie if there is one. It always
// succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, session := auth.Credentials(r)
	s.deps.Auth.Logout(session)
	NewJSONResponse().
		Cookie(s.sessionCookie("", time.Time{})).
		Success("logged out", nil).
		Write(w)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys := s.deps.Auth.Keys()
	NewJSONResponse().Body(map[string]any{
		"keys":      keys,
		"totalKeys": len(keys),
	}).Write(w)
}

func (s *Server) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	var req auth.GenerateKeyRequest
	if err := DecodeJSON(r, &req); err != nil {
		ErrorFrom(r.Context(), "generate key", err).Write(w)
		return
	}
	gen, err := s.deps.Auth.GenerateKey(req)
	if err != nil {
		ErrorFrom(r.Context(), "generate key", err).Write(w)
		return
	}
	s.logger.InfoContext(r.Context(), "Auth key generated",
		"key_id", gen.ID,
		"by", auth.UsernameFromContext(r.Context()))
	NewJSONResponse().Status(http.StatusCreated).Success("key generated", map[string]any{"key": gen}).Write(w)
}

// handleToggleKey exists for clients of the key admin screen. Keys live in
// the environment, so it always answers 501.
func (s *Server) handleToggleKey(w http.ResponseWriter, r *http.Request) {
	if _, err := PathID(r, "id"); err != nil {
		ErrorFrom(r.Context(), "toggle key", err).Write(w)
		return
	}
	ErrorFrom(r.Context(), "toggle key", auth.ErrKeysReadOnly).Write(w)
}
