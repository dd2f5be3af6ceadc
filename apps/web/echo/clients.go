package echoweb

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/notify"
	"github.com/trezcool/lms/core/quiz"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/core/settings"
	"github.com/trezcool/lms/services/lmsapi"
	localstore "github.com/trezcool/lms/storage/local"
)

const (
	clientCookie     = "lms_client"
	contextClientKey = "client"
)

var errClientNotFoundInCtx = errors.New("client not found in echo.Context")

// client is everything the frontend holds for one browser.
type client struct {
	id     string
	store  *session.Store
	api    *lmsapi.Client
	themes *settings.Themes
	quiz   *quiz.Runner
	inbox  *notify.Inbox

	mu       sync.Mutex
	lastSeen time.Time
}

// signOut ends the session and drops what belonged to the signed-in user.
func (c *client) signOut(ctx context.Context) {
	c.store.Logout(ctx)
	c.quiz.Reset()
	c.inbox.Clear()
}

func (c *client) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now
}

func (c *client) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

// registry keeps one client per browser, keyed by the lms_client cookie.
// A new client restores its session in the background, once.
type registry struct {
	deps ServerDeps

	ctx    context.Context // canceled on close
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*client
}

func newRegistry(deps ServerDeps) *registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &registry{
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*client),
	}
}

func (r *registry) get(id string) *client {
	now := r.deps.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		c.touch(now)
		return c
	}

	storage := localstore.Scoped(r.deps.Storage, id)
	store := session.NewStore(r.deps.Backend, storage, r.deps.Logger)
	c := &client{
		id:       id,
		store:    store,
		api:      r.deps.Backend.WithToken(store),
		themes:   settings.NewThemes(storage),
		quiz:     quiz.NewRunner(r.deps.Bank, r.deps.Conf.Quiz.FeedbackDelay, r.deps.Now),
		inbox:    notify.NewInbox(r.deps.Now),
		lastSeen: now,
	}
	c.quiz.OnFinish(func(q quiz.Quiz, res quiz.Result) { notifyQuizResult(c.inbox, q, res) })
	r.clients[id] = c
	r.deps.Metrics.activeClients.Inc()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if sess := store.Restore(r.ctx); sess != nil {
			r.deps.Metrics.sessionEvent("restore")
		} else {
			r.deps.Metrics.sessionEvent("restore_none")
		}
	}()
	return c
}

// sweep drops the clients idle for longer than maxIdle. Their durable state survives.
func (r *registry) sweep(maxIdle time.Duration) int {
	now := r.deps.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped int
	for id, c := range r.clients {
		if c.idleSince(now) > maxIdle {
			delete(r.clients, id)
			dropped++
		}
	}
	r.deps.Metrics.activeClients.Sub(float64(dropped))
	return dropped
}

func (r *registry) janitor(maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(maxIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.sweep(maxIdle); n > 0 {
					r.deps.Logger.Debug("dropped idle clients", map[string]interface{}{"count": n})
				}
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// close cancels pending restores and waits for background work to stop.
func (r *registry) close() {
	r.cancel()
	r.wg.Wait()
}

// clientRef resolves the browser's client on first use, so that requests
// which never read the session (health checks, unknown pages, assets) do not
// create one.
type clientRef struct {
	registry *registry
	ctx      echo.Context
	id       string
	issue    bool // the cookie is new and not sent yet
	secure   bool

	c *client
}

func (ref *clientRef) get() *client {
	if ref.c != nil {
		return ref.c
	}
	if ref.issue {
		ref.ctx.SetCookie(&http.Cookie{
			Name:     clientCookie,
			Value:    ref.id,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			Secure:   ref.secure,
			SameSite: http.SameSiteLaxMode,
		})
		ref.issue = false
	}
	ref.c = ref.registry.get(ref.id)
	return ref.c
}

// clientMiddleware reads the lms_client cookie. The client itself, and a new cookie
// when needed, only come with the first getContextClient call.
func (r *registry) clientMiddleware(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ref := &clientRef{registry: r, ctx: ctx, secure: secure}
			if cookie, err := ctx.Cookie(clientCookie); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					ref.id = parsed.String()
				}
			}
			if ref.id == "" {
				ref.id = uuid.New().String()
				ref.issue = true
			}
			ctx.Set(contextClientKey, ref)
			return next(ctx)
		}
	}
}

func getContextClient(ctx echo.Context) (*client, error) {
	if ref, ok := ctx.Get(contextClientKey).(*clientRef); ok {
		return ref.get(), nil
	}
	return nil, errClientNotFoundInCtx
}

// loadedContextClient is the request's client if a handler already resolved it.
func loadedContextClient(ctx echo.Context) *client {
	if ref, ok := ctx.Get(contextClientKey).(*clientRef); ok {
		return ref.c
	}
	return nil
}

// contextPerson is the signed-in user of the request, for error reports.
func contextPerson(ctx echo.Context) core.Person {
	c := loadedContextClient(ctx)
	if c == nil {
		return nil
	}
	if sess := c.store.Current(); sess != nil {
		return sess.User
	}
	return nil
}
