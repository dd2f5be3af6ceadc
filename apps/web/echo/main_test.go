package echoweb

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/quiz"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/services/lmsapi"
	logsvc "github.com/trezcool/lms/services/logger"
	localstore "github.com/trezcool/lms/storage/local"
	testutil "github.com/trezcool/lms/tests"
)

var ctx = context.Background()

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testApp struct {
	Server
	backend *testutil.Backend
	storage core.Storage
	metrics *Metrics
	clock   *clock

	student, instructor, admin session.User
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:  "LMS",
		Env:      "TEST",
		Build:    "test",
		TestMode: true,
		Server: core.ServerConfig{
			RestoreWait:       2 * time.Second,
			ClientIdleTimeout: time.Minute,
			DisableReqLogs:    true,
		},
		Quiz: core.QuizConfig{FeedbackDelay: time.Second},
	}
}

func setup(t *testing.T, opts ...func(*core.Config)) *testApp {
	t.Helper()

	conf := testConfig()
	for _, opt := range opts {
		opt(conf)
	}

	logger := logsvc.NewRollbarLogger(zaptest.NewLogger(t), conf)
	logger.Enable(false)

	backend := testutil.NewBackend(t)
	metrics := NewMetrics()
	api, err := lmsapi.New(backend.APIURL(), &http.Client{
		Timeout:   5 * time.Second,
		Transport: metrics.InstrumentTransport(nil),
	})
	require.NoError(t, err)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	session.InitValidators(validate, translator)

	bank, err := quiz.LoadBank("", validate)
	require.NoError(t, err)

	app := &testApp{
		backend:    backend,
		storage:    localstore.NewMemory(),
		metrics:    metrics,
		clock:      &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		student:    backend.AddUser(testutil.Student, testutil.Password),
		instructor: backend.AddUser(testutil.Instructor, testutil.Password),
		admin:      backend.AddUser(testutil.Admin, testutil.Password),
	}
	app.Server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Backend:    api,
		Storage:    app.storage,
		Bank:       bank,
		Validate:   validate,
		Translator: translator,
		Metrics:    metrics,
		Now:        app.clock.Now,
	})
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// browser is one browser client, identified by its lms_client cookie.
type browser struct {
	t   *testing.T
	app *testApp
	id  string
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	return &browser{t: t, app: a, id: uuid.NewString()}
}

// signedIn returns a browser whose local storage holds a valid token for usr.
func (a *testApp) signedIn(t *testing.T, usr session.User) *browser {
	b := a.newBrowser(t)
	b.setToken(a.backend.Token(t, usr))
	return b
}

func (b *browser) storage() core.Storage {
	return localstore.Scoped(b.app.storage, b.id)
}

func (b *browser) setToken(token string) {
	require.NoError(b.t, b.storage().Set(ctx, session.TokenKey, token))
}

func (b *browser) token() string {
	token, err := b.storage().Get(ctx, session.TokenKey)
	if err != nil && err != core.ErrKeyNotFound {
		b.t.Fatalf("reading token: %v", err)
	}
	return token
}

func (b *browser) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: clientCookie, Value: b.id})
	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, path string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	browser  *browser
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
	wantLoc  string
}

func (tt httpTest) run(t *testing.T) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	rec := tt.browser.do(method, tt.path, tt.body)
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantLoc != "" {
		if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
			t.Errorf("failed! location = %q; wantLoc %q", loc, tt.wantLoc)
		}
	}
	if tt.wantData != nil {
		checkData(t, rec, tt.wantData)
	}
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkData(t *testing.T, rec *httptest.ResponseRecorder, want []byte) {
	ok, err := jsonBytesEqual(rec.Body.Bytes(), want)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(want))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String()) {
		t.FailNow()
	}
}
