package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core"
	localstore "github.com/trezcool/lms/storage/local"
)

type testLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *testLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *testLogger) Debug(msg string, _ ...interface{}) { l.log(msg) }
func (l *testLogger) Info(msg string, _ ...interface{})  { l.log(msg) }
func (l *testLogger) Warn(msg string, _ ...interface{})  { l.log(msg) }
func (l *testLogger) Error(msg string, _ ...interface{}) { l.log(msg) }
func (l *testLogger) Fatal(msg string, _ ...interface{}) { l.log(msg) }

type fakeAuth struct {
	signIn      func(ctx context.Context, creds Credentials) (SignInResult, error)
	signUp      func(ctx context.Context, acct NewAccount) (User, error)
	currentUser func(ctx context.Context, token string) (User, error)

	currentUserCalls int32
}

func (a *fakeAuth) SignIn(ctx context.Context, creds Credentials) (SignInResult, error) {
	return a.signIn(ctx, creds)
}

func (a *fakeAuth) SignUp(ctx context.Context, acct NewAccount) (User, error) {
	return a.signUp(ctx, acct)
}

func (a *fakeAuth) CurrentUser(ctx context.Context, token string) (User, error) {
	atomic.AddInt32(&a.currentUserCalls, 1)
	return a.currentUser(ctx, token)
}

// backendErr mimics an API error carrying the backend's message.
type backendErr struct {
	status int
	msg    string
}

func (e *backendErr) Error() string       { return "backend responded with an error" }
func (e *backendErr) UserMessage() string { return e.msg }

var (
	ctx = context.Background()

	student = User{ID: 7, Username: "awe", Email: "awe@test.cd", FirstName: "Awe", LastName: "Some", Role: RoleStudent, IsApproved: true}
)

func newTestStore(auth Authenticator) (*Store, core.Storage) {
	storage := localstore.NewMemory()
	return NewStore(auth, storage, new(testLogger)), storage
}

func storedToken(t *testing.T, storage core.Storage) string {
	t.Helper()
	token, err := storage.Get(ctx, TokenKey)
	if err != nil && !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("storage.Get() error = %v", err)
	}
	return token
}

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestStore_Login(t *testing.T) {
	tests := []struct {
		name    string
		signIn  func(context.Context, Credentials) (SignInResult, error)
		wantErr string
	}{
		{
			name: "valid credentials",
			signIn: func(context.Context, Credentials) (SignInResult, error) {
				return SignInResult{Token: "tok-123", User: student}, nil
			},
		},
		{
			name: "backend message",
			signIn: func(context.Context, Credentials) (SignInResult, error) {
				return SignInResult{}, &backendErr{status: 400, msg: "Error: Bad credentials"}
			},
			wantErr: "Error: Bad credentials",
		},
		{
			name: "transport error text",
			signIn: func(context.Context, Credentials) (SignInResult, error) {
				return SignInResult{}, errors.New("connection refused")
			},
			wantErr: "connection refused",
		},
		{
			name: "empty backend message",
			signIn: func(context.Context, Credentials) (SignInResult, error) {
				return SignInResult{}, &backendErr{status: 500}
			},
			wantErr: "backend responded with an error",
		},
		{
			name: "no token",
			signIn: func(context.Context, Credentials) (SignInResult, error) {
				return SignInResult{User: student}, nil
			},
			wantErr: "Login failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, storage := newTestStore(&fakeAuth{signIn: tt.signIn})

			err := store.Login(ctx, Credentials{UsernameOrEmail: "awe", Password: "pwd"})
			if tt.wantErr != "" {
				var authErr *AuthError
				require.True(t, errors.As(err, &authErr), "Login() error = %v; want *AuthError", err)
				assert.Equal(t, tt.wantErr, authErr.Message)
				assert.Nil(t, store.Current())
				assert.Empty(t, storedToken(t, storage))
				return
			}

			require.NoError(t, err)
			sess := store.Current()
			require.NotNil(t, sess)
			assert.Equal(t, student, sess.User)
			assert.Equal(t, storedToken(t, storage), sess.Token)
			assert.Equal(t, "tok-123", store.Token())
		})
	}
}

func TestStore_Signup(t *testing.T) {
	acct := NewAccount{FirstName: "Awe", LastName: "Some", Username: "awe", Email: "awe@test.cd", Password: "S3cure!pass"}

	t.Run("success does not sign in", func(t *testing.T) {
		store, storage := newTestStore(&fakeAuth{
			signUp: func(_ context.Context, got NewAccount) (User, error) {
				return User{ID: 9, Username: got.Username, Role: RoleStudent}, nil
			},
		})
		usr, err := store.Signup(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, int64(9), usr.ID)
		assert.Nil(t, store.Current())
		assert.Empty(t, storedToken(t, storage))
	})

	t.Run("failure messages", func(t *testing.T) {
		store, _ := newTestStore(&fakeAuth{
			signUp: func(context.Context, NewAccount) (User, error) {
				return User{}, &backendErr{status: 400, msg: "Error: Username is already taken!"}
			},
		})
		_, err := store.Signup(ctx, acct)
		assert.EqualError(t, err, "Error: Username is already taken!")

		store, _ = newTestStore(&fakeAuth{
			signUp: func(context.Context, NewAccount) (User, error) {
				return User{}, errors.New("connection refused")
			},
		})
		_, err = store.Signup(ctx, acct)
		assert.EqualError(t, err, "Signup failed")
	})
}

func TestStore_Logout(t *testing.T) {
	auth := &fakeAuth{
		signIn: func(context.Context, Credentials) (SignInResult, error) {
			return SignInResult{Token: "tok-123", User: student}, nil
		},
	}

	t.Run("signed in", func(t *testing.T) {
		store, storage := newTestStore(auth)
		require.NoError(t, store.Login(ctx, Credentials{UsernameOrEmail: "awe", Password: "pwd"}))

		store.Logout(ctx)
		assert.Nil(t, store.Current())
		assert.Empty(t, store.Token())
		assert.Empty(t, storedToken(t, storage))
	})

	t.Run("signed out", func(t *testing.T) {
		store, storage := newTestStore(auth)
		store.Logout(ctx)
		store.Logout(ctx)
		assert.Nil(t, store.Current())
		assert.Empty(t, storedToken(t, storage))
	})

	t.Run("stale token in storage", func(t *testing.T) {
		store, storage := newTestStore(auth)
		require.NoError(t, storage.Set(ctx, TokenKey, "stale"))
		store.Logout(ctx)
		assert.Empty(t, storedToken(t, storage))
	})
}

func TestStore_Restore(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		auth := &fakeAuth{
			currentUser: func(_ context.Context, token string) (User, error) {
				if token != "tok-123" {
					t.Errorf("CurrentUser() token = %q", token)
				}
				return student, nil
			},
		}
		store, storage := newTestStore(auth)
		require.NoError(t, storage.Set(ctx, TokenKey, "tok-123"))
		require.True(t, store.State().Loading)

		sess := store.Restore(ctx)
		require.NotNil(t, sess)
		assert.Equal(t, student, sess.User)
		assert.Equal(t, "tok-123", sess.Token)
		assert.False(t, store.State().Loading)
	})

	t.Run("unauthorized", func(t *testing.T) {
		auth := &fakeAuth{
			currentUser: func(context.Context, string) (User, error) {
				return User{}, &backendErr{status: 401, msg: "Unauthorized"}
			},
		}
		store, storage := newTestStore(auth)
		require.NoError(t, storage.Set(ctx, TokenKey, "tok-123"))

		assert.Nil(t, store.Restore(ctx))
		st := store.State()
		assert.Nil(t, st.Session)
		assert.False(t, st.Loading)
		assert.Empty(t, storedToken(t, storage))
		assert.Equal(t, int32(1), atomic.LoadInt32(&auth.currentUserCalls), "restore must not retry")
	})

	t.Run("expired jwt", func(t *testing.T) {
		auth := &fakeAuth{
			currentUser: func(context.Context, string) (User, error) { return student, nil },
		}
		store, storage := newTestStore(auth)
		require.NoError(t, storage.Set(ctx, TokenKey, makeJWT(t, time.Now().Add(-time.Hour))))

		assert.Nil(t, store.Restore(ctx))
		assert.Empty(t, storedToken(t, storage))
		assert.Zero(t, atomic.LoadInt32(&auth.currentUserCalls))

		// nothing left to restore: no-op
		assert.Nil(t, store.Restore(ctx))
		assert.Nil(t, store.Current())
		assert.Zero(t, atomic.LoadInt32(&auth.currentUserCalls))
	})

	t.Run("live jwt", func(t *testing.T) {
		auth := &fakeAuth{
			currentUser: func(context.Context, string) (User, error) { return student, nil },
		}
		store, storage := newTestStore(auth)
		require.NoError(t, storage.Set(ctx, TokenKey, makeJWT(t, time.Now().Add(time.Hour))))

		assert.NotNil(t, store.Restore(ctx))
		assert.Equal(t, int32(1), atomic.LoadInt32(&auth.currentUserCalls))
	})

	t.Run("no token", func(t *testing.T) {
		store, _ := newTestStore(&fakeAuth{})
		assert.Nil(t, store.Restore(ctx))
		assert.False(t, store.State().Loading)
	})
}

func TestStore_UpdateUser(t *testing.T) {
	store, _ := newTestStore(&fakeAuth{
		signIn: func(context.Context, Credentials) (SignInResult, error) {
			return SignInResult{Token: "tok-123", User: student}, nil
		},
	})
	assert.Equal(t, ErrNoSession, store.UpdateUser(student))

	require.NoError(t, store.Login(ctx, Credentials{UsernameOrEmail: "awe", Password: "pwd"}))

	updated := student
	updated.FirstName = "Awesome"
	updated.Role = RoleUnknown // not re-validated

	require.NoError(t, store.UpdateUser(updated))
	first := store.Current()
	require.NoError(t, store.UpdateUser(updated))
	second := store.Current()

	assert.Equal(t, first, second)
	assert.Equal(t, "Awesome", second.FirstName)
	assert.Equal(t, RoleUnknown, second.Role)
	assert.Equal(t, "tok-123", second.Token)
}

func TestStore_LogoutDuringLogin(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	store, storage := newTestStore(&fakeAuth{
		signIn: func(context.Context, Credentials) (SignInResult, error) {
			close(started)
			<-release
			return SignInResult{Token: "tok-123", User: student}, nil
		},
	})

	errc := make(chan error, 1)
	go func() {
		errc <- store.Login(ctx, Credentials{UsernameOrEmail: "awe", Password: "pwd"})
	}()

	<-started
	store.Logout(ctx)
	close(release)

	assert.Equal(t, ErrSuperseded, <-errc)
	assert.Nil(t, store.Current())
	assert.Empty(t, storedToken(t, storage), "a superseded login must not resurrect the token")
}

func TestStore_LoginDuringRestore(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	admin := User{ID: 1, Username: "admin", Role: RoleAdmin}

	store, storage := newTestStore(&fakeAuth{
		currentUser: func(context.Context, string) (User, error) {
			close(started)
			<-release
			return User{}, &backendErr{status: 401}
		},
		signIn: func(context.Context, Credentials) (SignInResult, error) {
			return SignInResult{Token: "fresh", User: admin}, nil
		},
	})
	require.NoError(t, storage.Set(ctx, TokenKey, "stale"))

	done := make(chan *Session, 1)
	go func() { done <- store.Restore(ctx) }()

	<-started
	require.NoError(t, store.Login(ctx, Credentials{UsernameOrEmail: "admin", Password: "pwd"}))
	close(release)

	sess := <-done
	require.NotNil(t, sess)
	assert.Equal(t, admin, sess.User)
	assert.Equal(t, "fresh", storedToken(t, storage), "a stale restore failure must not clear the new token")
	assert.False(t, store.State().Loading)
}

func TestStore_Subscribe(t *testing.T) {
	store, _ := newTestStore(&fakeAuth{
		signIn: func(context.Context, Credentials) (SignInResult, error) {
			return SignInResult{Token: "tok-123", User: student}, nil
		},
	})
	states, cancel := store.Subscribe()
	defer cancel()

	store.Restore(ctx) // no token
	require.NoError(t, store.Login(ctx, Credentials{UsernameOrEmail: "awe", Password: "pwd"}))

	// only the latest state is kept
	st := <-states
	require.NotNil(t, st.Session)
	assert.Equal(t, student, st.Session.User)
	assert.False(t, st.Loading)

	store.Logout(ctx)
	st = <-states
	assert.Nil(t, st.Session)

	cancel()
	cancel() // idempotent
	store.Logout(ctx)
	select {
	case st := <-states:
		t.Errorf("received %+v after cancel", st)
	default:
	}
}

func TestStore_WaitLoaded(t *testing.T) {
	store, storage := newTestStore(&fakeAuth{
		currentUser: func(context.Context, string) (User, error) {
			time.Sleep(20 * time.Millisecond)
			return student, nil
		},
	})
	require.NoError(t, storage.Set(ctx, TokenKey, "tok-123"))

	go store.Restore(ctx)
	st := store.WaitLoaded(ctx)
	assert.False(t, st.Loading)
	require.NotNil(t, st.Session)

	// gives up with the loading state when ctx is done first
	pending := NewStore(&fakeAuth{}, localstore.NewMemory(), new(testLogger))
	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.True(t, pending.WaitLoaded(tctx).Loading)
}

func TestStore_HasRole(t *testing.T) {
	store, _ := newTestStore(&fakeAuth{
		signIn: func(context.Context, Credentials) (SignInResult, error) {
			return SignInResult{Token: "tok-123", User: student}, nil
		},
	})
	assert.False(t, store.HasRole(AllRoles...))

	require.NoError(t, store.Login(ctx, Credentials{UsernameOrEmail: "awe", Password: "pwd"}))
	assert.True(t, store.HasRole(RoleStudent))
	assert.False(t, store.HasRole(RoleAdmin, RoleInstructor))
}
