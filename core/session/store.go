package session

import (
	"context"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
)

// TokenKey is the storage key of the durable access token.
const TokenKey = "token"

var (
	ErrNoSession  = errors.New("no session")
	ErrSuperseded = errors.New("superseded by a newer session operation")

	loginFailedMsg  = "Login failed"
	signupFailedMsg = "Signup failed"

	nowFunc = time.Now // mockable
)

type (
	// Authenticator is the backend side of the session: implemented by the LMS API client.
	Authenticator interface {
		SignIn(ctx context.Context, creds Credentials) (SignInResult, error)
		SignUp(ctx context.Context, acct NewAccount) (User, error)
		CurrentUser(ctx context.Context, token string) (User, error)
	}

	// State is a snapshot of the Store. Loading stays true until the first Restore completes.
	State struct {
		Session *Session `json:"session"`
		Loading bool     `json:"loading"`
	}

	// Store is the single source of truth for who is signed in on one client.
	// Login, Restore and Logout each start a new generation;
	// a backend response belonging to an older generation is discarded.
	Store struct {
		auth    Authenticator
		storage core.Storage
		logger  core.Logger

		mu      sync.RWMutex
		session *Session
		loading bool
		gen     uint64
		subs    map[int]chan State
		nextSub int
	}
)

func NewStore(auth Authenticator, storage core.Storage, logger core.Logger) *Store {
	return &Store{
		auth:    auth,
		storage: storage,
		logger:  logger,
		loading: true,
		subs:    make(map[int]chan State),
	}
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// Login signs in with creds. On success the token is stored durably and the Session is set.
// Failures are returned as *AuthError; ErrSuperseded means a newer operation won.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	gen := s.begin()

	res, err := s.auth.SignIn(ctx, creds)
	if err != nil {
		s.logger.Warn("login failed", err)
		return &AuthError{Message: failureMessage(err, true, loginFailedMsg), Err: err}
	}
	if res.Token == "" {
		return &AuthError{Message: loginFailedMsg, Err: errors.New("no token in login response")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return ErrSuperseded
	}
	if err = s.storage.Set(ctx, TokenKey, res.Token); err != nil {
		s.logger.Error("storing token", errors.Wrap(err, "storing token"))
		return &AuthError{Message: loginFailedMsg, Err: err}
	}
	s.session = &Session{User: res.User, Token: res.Token}
	s.notifyLocked()
	return nil
}

// Signup creates an account. It never signs in.
func (s *Store) Signup(ctx context.Context, acct NewAccount) (User, error) {
	usr, err := s.auth.SignUp(ctx, acct)
	if err != nil {
		s.logger.Warn("signup failed", err)
		return User{}, &AuthError{Message: failureMessage(err, false, signupFailedMsg), Err: err}
	}
	return usr, nil
}

// Logout clears the durable token and the Session, whatever the current state is.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.clearLocked(ctx)
	s.notifyLocked()
}

// Restore rebuilds the Session from the durable token, if any. It is attempted once:
// any failure clears the token and leaves no Session. Loading is false once it returns.
func (s *Store) Restore(ctx context.Context) *Session {
	gen := s.begin()

	token, err := s.storage.Get(ctx, TokenKey)
	if err != nil && errors.Cause(err) != core.ErrKeyNotFound {
		s.logger.Error("reading token", errors.Wrap(err, "reading token"))
	}
	if token == "" {
		return s.finishRestore(ctx, gen, nil, nil)
	}

	if tokenExpired(token) {
		return s.finishRestore(ctx, gen, nil, errors.New("token expired"))
	}

	usr, err := s.auth.CurrentUser(ctx, token)
	if err != nil {
		return s.finishRestore(ctx, gen, nil, err)
	}
	return s.finishRestore(ctx, gen, &Session{User: usr, Token: token}, nil)
}

func (s *Store) finishRestore(ctx context.Context, gen uint64, sess *Session, restoreErr error) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.loading
	s.loading = false

	switch {
	case gen != s.gen: // a newer operation owns the state
	case restoreErr != nil:
		s.logger.Warn("failed to restore session", restoreErr)
		s.clearLocked(ctx)
		changed = true
	case sess != nil:
		s.session = sess
		changed = true
	}

	if changed {
		s.notifyLocked()
	}
	return s.copyLocked()
}

// UpdateUser replaces the identity fields of the Session wholesale. The token is kept as is.
func (s *Store) UpdateUser(usr User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNoSession
	}
	s.session = &Session{User: usr, Token: s.session.Token}
	s.notifyLocked()
	return nil
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Session: s.copyLocked(), Loading: s.loading}
}

// Current returns a copy of the Session or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Token returns the access token of the Session, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *Store) HasRole(roles ...Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil && s.session.Role.In(roles...)
}

// Subscribe returns a channel holding the latest State after every change.
// Slow readers only ever see the most recent State. cancel must be called to release it.
func (s *Store) Subscribe() (states <-chan State, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

// WaitLoaded blocks until the first Restore completed or ctx is done, and returns the State.
func (s *Store) WaitLoaded(ctx context.Context) State {
	states, cancel := s.Subscribe()
	defer cancel()

	st := s.State()
	for st.Loading {
		select {
		case st = <-states:
		case <-ctx.Done():
			return s.State()
		}
	}
	return st
}

func (s *Store) clearLocked(ctx context.Context) {
	s.session = nil
	if err := s.storage.Remove(ctx, TokenKey); err != nil {
		s.logger.Error("removing token", errors.Wrap(err, "removing token"))
	}
}

func (s *Store) copyLocked() *Session {
	if s.session == nil {
		return nil
	}
	sess := *s.session
	return &sess
}

func (s *Store) notifyLocked() {
	st := State{Session: s.copyLocked(), Loading: s.loading}
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			// drop the stale state; we hold the lock so the send below cannot block
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// tokenExpired reports whether token is a JWT whose exp claim is in the past.
// Opaque tokens are left for the backend to judge.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	if _, ok := claims["exp"]; !ok {
		return false
	}
	return !claims.VerifyExpiresAt(nowFunc().Unix(), true)
}

// failureMessage picks the message shown for a failed auth call:
// the backend's own message, then (if useErrText) the error text, then fallback.
func failureMessage(err error, useErrText bool, fallback string) string {
	var msgr interface{ UserMessage() string }
	if errors.As(err, &msgr) {
		if msg := msgr.UserMessage(); msg != "" {
			return msg
		}
	}
	if useErrText && err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
