// Package session owns the client's authentication state and keeps it in
// durable storage so it survives restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"survey-admin/internal/alert"
	"survey-admin/internal/model"
	"survey-admin/internal/store"
)

// Durable storage keys.
const (
	KeyAccessToken        = "access_token"
	KeyTokenType          = "token_type"
	KeyUser               = "user"
	KeyRedirectAfterLogin = "redirectAfterLogin"

	TokenTypeBearer = "Bearer"

	LoginPath = "/login"
)

// Navigator performs a hard navigation (the UI resets and shows path).
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type State struct {
	Token         string
	TokenType     string
	User          *model.User
	Authenticated bool
	Initialized   bool
}

type Session struct {
	kv     store.KV
	broker *alert.Broker
	nav    Navigator
	log    *slog.Logger

	mu      sync.Mutex
	st      State
	subs    map[int]chan State
	nextSub int
	closed  bool
}

func New(kv store.KV, broker *alert.Broker, nav Navigator, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Session{kv: kv, broker: broker, nav: nav, log: log, subs: map[int]chan State{}}
}

// Init rehydrates the session from storage.
func (s *Session) Init(ctx context.Context) State {
	s.CheckAuth(ctx)
	return s.State()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := s.st
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Token returns the header parts for authenticated requests.
func (s *Session) Token() (tokenType, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Token == "" {
		return "", ""
	}
	tt := s.st.TokenType
	if tt == "" {
		tt = TokenTypeBearer
	}
	return tt, s.st.Token
}

// CheckAuth reads the persisted session. Missing or unparseable records
// leave the session unauthenticated. Initialized is always true afterwards.
func (s *Session) CheckAuth(ctx context.Context) (authenticated bool) {
	defer func() {
		s.mu.Lock()
		s.st.Initialized = true
		s.publishLocked()
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session rehydration panicked", "panic", r)
			s.setUnauthenticated()
			authenticated = false
		}
	}()

	token, user, err := s.readPersisted(ctx)
	if err != nil {
		s.log.Warn("discarding persisted session", "err", err)
		s.setUnauthenticated()
		if rmErr := s.kv.Remove(ctx, KeyAccessToken, KeyTokenType, KeyUser); rmErr != nil {
			s.log.Warn("clear stale session keys", "err", rmErr)
		}
		return false
	}
	if token == "" || user == nil {
		s.setUnauthenticated()
		return false
	}

	s.mu.Lock()
	s.st.Token = token
	s.st.TokenType = TokenTypeBearer
	s.st.User = user
	s.st.Authenticated = true
	s.mu.Unlock()
	s.log.Debug("session restored", "user_id", user.ID)
	return true
}

var errCorruptUser = errors.New("persisted user record is not valid")

func (s *Session) readPersisted(ctx context.Context) (string, *model.User, error) {
	token, hasToken, err := s.kv.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", nil, err
	}
	raw, hasUser, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		return "", nil, err
	}
	if !hasToken || !hasUser {
		return "", nil, nil
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return "", nil, errors.Join(errCorruptUser, err)
	}
	if u.ID == 0 && strings.TrimSpace(u.Email) == "" {
		return "", nil, errCorruptUser
	}
	return strings.TrimSpace(token), &u, nil
}

func (s *Session) setUnauthenticated() {
	s.mu.Lock()
	s.st.Token = ""
	s.st.TokenType = ""
	s.st.User = nil
	s.st.Authenticated = false
	s.mu.Unlock()
}

var (
	ErrEmptyToken = errors.New("login returned an empty access token")
	ErrNoUser     = errors.New("login returned no user")
)

// Login persists a token obtained from a successful authentication exchange.
// Either all three keys are stored or none are.
func (s *Session) Login(ctx context.Context, token string, user model.User) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if user.ID == 0 && strings.TrimSpace(user.Email) == "" {
		return ErrNoUser
	}
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	var written []string
	for _, kv := range [][2]string{
		{KeyAccessToken, token},
		{KeyTokenType, TokenTypeBearer},
		{KeyUser, string(b)},
	} {
		if err := s.kv.Set(ctx, kv[0], kv[1]); err != nil {
			if len(written) > 0 {
				if rmErr := s.kv.Remove(ctx, written...); rmErr != nil {
					s.log.Error("roll back partial login", "err", rmErr)
				}
			}
			return err
		}
		written = append(written, kv[0])
	}
	s.mu.Lock()
	s.st.Token = token
	s.st.TokenType = TokenTypeBearer
	s.st.User = &user
	s.st.Authenticated = true
	s.publishLocked()
	s.mu.Unlock()
	s.log.Info("logged in", "user_id", user.ID, "email", user.Email)
	return nil
}

// SetUser replaces the cached user record (after a profile refresh).
func (s *Session) SetUser(ctx context.Context, user model.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyUser, string(b)); err != nil {
		return err
	}
	s.mu.Lock()
	s.st.User = &user
	s.st.Authenticated = s.st.Token != ""
	s.publishLocked()
	s.mu.Unlock()
	return nil
}

// Logout clears local state and asks the user to acknowledge, which
// navigates to the login screen. Local teardown completes even when storage
// fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.kv.Remove(ctx, KeyAccessToken, KeyTokenType, KeyUser)
	if err != nil {
		s.log.Error("remove session keys", "err", err)
	}
	s.setUnauthenticated()
	s.log.Info("logged out")

	// The alert opens before subscribers hear about the change, so a
	// surface reacting to the state already sees the pending alert.
	if s.broker != nil {
		s.broker.Open("Logged out", "You have been logged out successfully.", func() error {
			s.nav.Navigate(LoginPath)
			return nil
		})
	}
	s.mu.Lock()
	s.publishLocked()
	s.mu.Unlock()
	return err
}

// ExpireSession handles a rejected token. The current path is remembered so
// a fresh login resumes there.
func (s *Session) ExpireSession(ctx context.Context, currentPath string) {
	s.mu.Lock()
	wasAuthenticated := s.st.Authenticated
	s.mu.Unlock()

	if err := s.kv.Remove(ctx, KeyAccessToken, KeyTokenType, KeyUser); err != nil {
		s.log.Error("remove session keys", "err", err)
	}
	if p := strings.TrimSpace(currentPath); p != "" && p != LoginPath {
		if err := s.kv.Set(ctx, KeyRedirectAfterLogin, p); err != nil {
			s.log.Warn("remember redirect", "err", err)
		}
	}
	s.setUnauthenticated()
	s.log.Warn("session expired", "path", currentPath)

	if wasAuthenticated && s.broker != nil {
		s.broker.Open("Session expired", "Your session has expired. Please log in again.", func() error {
			s.nav.Navigate(LoginPath)
			return nil
		})
	}
	s.mu.Lock()
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Session) SetRedirectAfterLogin(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == LoginPath {
		return nil
	}
	return s.kv.Set(ctx, KeyRedirectAfterLogin, path)
}

// TakeRedirectAfterLogin returns the remembered path and removes it.
func (s *Session) TakeRedirectAfterLogin(ctx context.Context) (string, bool) {
	v, ok, err := s.kv.Get(ctx, KeyRedirectAfterLogin)
	if err != nil {
		s.log.Warn("read redirect", "err", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	if err := s.kv.Remove(ctx, KeyRedirectAfterLogin); err != nil {
		s.log.Warn("remove redirect", "err", err)
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Subscribe delivers the latest state after each change.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) publishLocked() {
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// Teardown closes subscriptions. The persisted session is left alone.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
