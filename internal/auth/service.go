package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"teamapp/internal/cache"
	"teamapp/internal/core"
)

// MinKeyLength is the shortest key accepted at login.
const MinKeyLength = 10

var (
	ErrInvalidKey      = fmt.Errorf("%w: invalid authentication key", core.ErrUnauthorized)
	ErrInvalidSession  = fmt.Errorf("%w: invalid or expired session", core.ErrUnauthorized)
	ErrNoCredentials   = fmt.Errorf("%w: authentication required", core.ErrUnauthorized)
	ErrTooManyAttempts = errors.New("too many failed attempts, try again later")
	ErrKeysReadOnly    = errors.New("keys are managed through the environment; edit AUTH_KEY_<n> and restart")
)

// Method tells how a request was authenticated.
type Method string

const (
	MethodKey     Method = "key"
	MethodSession Method = "session"
)

// Principal is the authenticated caller.
type Principal struct {
	Username       string      `json:"username"`
	KeyID          int         `json:"keyId"`
	Method         Method      `json:"method"`
	Permissions    Permissions `json:"permissions"`
	SessionID      string      `json:"-"`
	SessionExpires *time.Time  `json:"sessionExpires,omitempty"`
}

func (p Principal) IsAdmin() bool {
	return p.Username == MasterUser || p.Permissions.Admin
}

// Session is a remembered login.
type Session struct {
	ID        string
	KeyID     int
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Config struct {
	SessionTTL  time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * 24 * time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Lockout <= 0 {
		c.Lockout = 15 * time.Minute
	}
	return c
}

const maxTrackedEntries = 10000

// Service validates keys, manages sessions and throttles failed logins.
type Service struct {
	keys     []Key
	cfg      Config
	sessions *cache.LRUCache[Session]
	attempts *cache.LRUCache[int]
	now      func() time.Time

	attemptsMu sync.Mutex // serializes read-increment-write on attempts
}

func NewService(keys []Key, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		keys:     keys,
		cfg:      cfg,
		sessions: cache.NewLRUCache[Session](maxTrackedEntries, cfg.SessionTTL),
		attempts: cache.NewLRUCache[int](maxTrackedEntries, cfg.Lockout),
		now:      time.Now,
	}
}

// SetClock replaces the time source for the service and its caches.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.sessions.SetClock(now)
	s.attempts.SetClock(now)
}

// RegisterCaches hands the session and attempt caches to a cleanup manager.
func (s *Service) RegisterCaches(m *cache.Manager) {
	m.Register("auth_sessions", s.sessions)
	m.Register("auth_attempts", s.attempts)
}

// lookup compares the candidate against every active key in constant time.
func (s *Service) lookup(secret string) (Key, bool) {
	var (
		found Key
		ok    bool
	)
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k.Secret), []byte(secret)) == 1 && k.Active {
			found, ok = k, true
		}
	}
	return found, ok
}

func (s *Service) keyByID(id int) (Key, bool) {
	for _, k := range s.keys {
		if k.ID == id && k.Active {
			return k, true
		}
	}
	return Key{}, false
}

// AuthenticateKey resolves a bearer key.
func (s *Service) AuthenticateKey(secret string) (Principal, error) {
	k, ok := s.lookup(secret)
	if !ok {
		return Principal{}, ErrInvalidKey
	}
	return Principal{
		Username:    k.Username(),
		KeyID:       k.ID,
		Method:      MethodKey,
		Permissions: k.Permissions,
	}, nil
}

// AuthenticateSession resolves a session id. A session whose key has been
// removed from configuration is rejected.
func (s *Service) AuthenticateSession(id string) (Principal, error) {
	if id == "" {
		return Principal{}, ErrNoCredentials
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return Principal{}, ErrInvalidSession
	}
	k, ok := s.keyByID(sess.KeyID)
	if !ok {
		s.sessions.Delete(id)
		return Principal{}, ErrInvalidSession
	}
	expires := sess.ExpiresAt
	return Principal{
		Username:       sess.Username,
		KeyID:          k.ID,
		Method:         MethodSession,
		Permissions:    k.Permissions,
		SessionID:      sess.ID,
		SessionExpires: &expires,
	}, nil
}

// Authenticate tries the bearer key first, then the session cookie.
func (s *Service) Authenticate(bearer, sessionID string) (Principal, error) {
	if bearer != "" {
		if p, err := s.AuthenticateKey(bearer); err == nil {
			return p, nil
		}
	}
	if sessionID != "" {
		return s.AuthenticateSession(sessionID)
	}
	if bearer != "" {
		return Principal{}, ErrInvalidKey
	}
	return Principal{}, ErrNoCredentials
}

// Blocked reports whether a client is locked out after repeated failures.
func (s *Service) Blocked(client string) bool {
	n, ok := s.attempts.Get(client)
	return ok && n >= s.cfg.MaxAttempts
}

func (s *Service) recordFailure(client string) int {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	n, _ := s.attempts.Get(client)
	n++
	s.attempts.Set(client, n)
	return n
}

// LoginResult is returned by Login.
type LoginResult struct {
	Principal Principal
	Session   *Session
}

// Login checks a key on behalf of client (usually the remote IP) and opens
// a session when rememberMe is set.
func (s *Service) Login(ctx context.Context, client, key string, rememberMe bool) (LoginResult, error) {
	if s.Blocked(client) {
		slog.WarnContext(ctx, "Blocked login attempt", "client", client)
		return LoginResult{}, ErrTooManyAttempts
	}

	key = strings.TrimSpace(key)
	if len(key) < MinKeyLength {
		s.recordFailure(client)
		return LoginResult{}, core.NewValidationError("key", fmt.Errorf("must be at least %d characters", MinKeyLength))
	}

	k, ok := s.lookup(key)
	if !ok {
		n := s.recordFailure(client)
		slog.WarnContext(ctx, "Failed login", "client", client, "attempts", n)
		return LoginResult{}, ErrInvalidKey
	}
	s.attempts.Delete(client)

	p := Principal{
		Username:    k.Username(),
		KeyID:       k.ID,
		Method:      MethodKey,
		Permissions: k.Permissions,
	}
	result := LoginResult{Principal: p}

	if rememberMe {
		sess, err := s.newSession(k, p.Username)
		if err != nil {
			return LoginResult{}, err
		}
		result.Session = &sess
		result.Principal.Method = MethodSession
		result.Principal.SessionID = sess.ID
		result.Principal.SessionExpires = &sess.ExpiresAt
	}

	slog.InfoContext(ctx, "Successful login",
		"client", client,
		"username", p.Username,
		"session", result.Session != nil)
	return result, nil
}

func (s *Service) newSession(k Key, username string) (Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	now := s.now()
	sess := Session{
		ID:        hex.EncodeToString(buf),
		KeyID:     k.ID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	s.sessions.SetWithTTL(sess.ID, sess, s.cfg.SessionTTL)
	return sess, nil
}

// Logout forgets a session. Unknown ids are ignored.
func (s *Service) Logout(sessionID string) {
	if sessionID != "" {
		s.sessions.Delete(sessionID)
	}
}

// Keys returns metadata for every configured key.
func (s *Service) Keys() []KeyInfo {
	out := make([]KeyInfo, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k.Info())
	}
	return out
}

// GenerateKeyRequest describes a key to mint.
type GenerateKeyRequest struct {
	Name         string       `json:"name"`
	AllowedUsers []string     `json:"allowedUsers"`
	Permissions  *Permissions `json:"permissions"`
}

// GeneratedKey carries a fresh key and the environment lines that enable it.
// Keys are not persisted; an operator adds them to the environment.
type GeneratedKey struct {
	ID           int               `json:"id"`
	Key          string            `json:"key"`
	Name         string            `json:"name"`
	AllowedUsers []string          `json:"allowedUsers"`
	Permissions  Permissions       `json:"permissions"`
	EnvVariables map[string]string `json:"envVariables"`
	Instructions string            `json:"instructions"`
}

func (s *Service) GenerateKey(req GenerateKeyRequest) (GeneratedKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return GeneratedKey{}, core.NewValidationError("name", errors.New("is required"))
	}
	var users []string
	for _, u := range req.AllowedUsers {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	if len(users) == 0 {
		return GeneratedKey{}, core.NewValidationError("allowedUsers", errors.New("at least one user is required"))
	}
	perms := Permissions{Read: true, Write: true}
	if req.Permissions != nil {
		perms = *req.Permissions
	}

	secret := "teamapp-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	id := len(s.keys) + 1
	prefix := fmt.Sprintf("AUTH_KEY_%d", id)
	env := map[string]string{
		prefix:                  secret,
		prefix + "_NAME":        name,
		prefix + "_USERS":       strings.Join(users, ","),
		prefix + "_PERMISSIONS": strings.Join(perms.Names(), ","),
	}

	var b strings.Builder
	b.WriteString("Add these lines to your .env file and restart the server:\n")
	for _, k := range []string{prefix, prefix + "_NAME", prefix + "_USERS", prefix + "_PERMISSIONS"} {
		fmt.Fprintf(&b, "%s=%s\n", k, env[k])
	}

	return GeneratedKey{
		ID:           id,
		Key:          secret,
		Name:         name,
		AllowedUsers: users,
		Permissions:  perms,
		EnvVariables: env,
		Instructions: b.String(),
	}, nil
}
