package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultRefreshSkew = time.Minute

// Session is the process-wide sign-in state. It is created once at startup,
// torn down on logout, and tells subscribers about every change.
type Session struct {
	provider Provider
	profiles ProfileLookup
	log      *logrus.Entry
	skew     time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	creds *Credentials
	user  *User
	// sid is the browser credential handed out at sign-in
	sid string

	refreshMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

func NewSession(provider Provider, log *logrus.Logger) *Session {
	return &Session{
		provider:  provider,
		log:       log.WithField("component", "auth"),
		skew:      defaultRefreshSkew,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// UseProfileLookup wires the backend profile endpoint. It is set after
// construction because the backend client itself takes its tokens from s.
func (s *Session) UseProfileLookup(p ProfileLookup) {
	s.mu.Lock()
	s.profiles = p
	s.mu.Unlock()
}

// Subscribe registers l for session events and returns its unsubscribe func.
func (s *Session) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Session) notify(ev Event) {
	s.listenersMu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenersMu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}

// Login signs in without handing out a browser credential.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	u, _, err := s.StartSession(ctx, email, password)
	return u, err
}

// StartSession signs in and returns the session id the browser must present
// on every guarded request. A new sign-in invalidates the previous id.
func (s *Session) StartSession(ctx context.Context, email, password string) (*User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	creds, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	sid := uuid.NewString()

	s.mu.Lock()
	s.creds = &creds
	s.sid = sid
	s.user = &User{ID: creds.UserID, Email: creds.Email}
	if s.user.Email == "" {
		s.user.Email = email
	}
	s.mu.Unlock()

	role := s.resolveRole(ctx, creds.AccessToken)

	s.mu.Lock()
	if s.user == nil || s.sid != sid {
		// logged out or replaced while resolving
		s.mu.Unlock()
		return nil, "", ErrNotAuthenticated
	}
	s.user.Role = role
	u := *s.user
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"user": u.Email, "role": u.Role}).Info("signed in")
	s.notify(Event{Type: EventSignedIn, User: &u})
	return &u, sid, nil
}

func (s *Session) resolveRole(ctx context.Context, accessToken string) Role {
	if role, ok := RoleFromToken(accessToken); ok {
		return role
	}

	s.mu.RLock()
	profiles := s.profiles
	s.mu.RUnlock()
	if profiles == nil {
		return RoleNone
	}

	p, err := profiles.Profile(ctx)
	if err != nil {
		s.log.WithError(err).Warn("profile lookup failed")
		return RoleNone
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == "" {
		s.user.ID = p.ID
	}
	s.mu.Unlock()

	if !p.Role.Valid() {
		return RoleNone
	}
	return p.Role
}

// Logout always clears local state; a provider failure is only logged.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	creds := s.creds
	s.creds = nil
	s.user = nil
	s.sid = ""
	s.mu.Unlock()

	if creds == nil {
		return
	}

	if err := s.provider.SignOut(ctx, creds.AccessToken); err != nil {
		s.log.WithError(err).Warn("provider sign-out failed")
	}

	s.log.Info("signed out")
	s.notify(Event{Type: EventSignedOut})
}

// Token returns a valid access token, refreshing it when it is about to expire.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	creds := s.creds
	s.mu.RUnlock()

	if creds == nil {
		return "", ErrNotAuthenticated
	}
	if s.now().Add(s.skew).Before(creds.ExpiresAt) {
		return creds.AccessToken, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// another caller may have refreshed already
	s.mu.RLock()
	creds = s.creds
	s.mu.RUnlock()
	if creds == nil {
		return "", ErrNotAuthenticated
	}
	if s.now().Add(s.skew).Before(creds.ExpiresAt) {
		return creds.AccessToken, nil
	}

	fresh, err := s.provider.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		s.log.WithError(err).Warn("token refresh failed")
		return "", err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = creds.RefreshToken
	}

	s.mu.Lock()
	if s.creds == nil {
		s.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	s.creds = &fresh
	var u *User
	if s.user != nil {
		cp := *s.user
		u = &cp
	}
	s.mu.Unlock()

	s.notify(Event{Type: EventTokenRefreshed, User: u})
	return fresh.AccessToken, nil
}

// Authenticate returns the signed-in user when sid is the current session id.
func (s *Session) Authenticate(sid string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || sid == "" || subtle.ConstantTimeCompare([]byte(sid), []byte(s.sid)) != 1 {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}
