package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/guard"
	"github.com/trezcool/lms/core/quiz"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/services/lmsapi"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Backend    *lmsapi.Client // unauthenticated; each client adds its own token
		Storage    core.Storage   // shared by all clients, each under its own scope
		Bank       *quiz.Bank
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *Metrics
		Now        func() time.Time
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		clients  *registry
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	s := &server{
		deps:     deps,
		app:      echo.New(),
		clients:  newRegistry(deps),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	s.clients.janitor(deps.Conf.Server.ClientIdleTimeout)
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.clients.clientMiddleware(conf.Server.CookieSecure))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator)
	s.app.Debug = conf.Debug

	s.app.GET("/health", health)
	s.app.GET("/metrics", s.deps.Metrics.handler())
	s.app.GET("/", func(ctx echo.Context) error {
		return ctx.Redirect(http.StatusFound, guard.LandingPath)
	})

	guest := s.requireGuest()
	authed := s.requireSession()

	registerAuthPages(s, guest)
	registerSettingsPages(s, authed)
	registerCoursePages(s, authed)
	registerQuizPages(s, authed)
	registerNotificationPages(s, authed)
	registerInstructorPages(s.app.Group("/instructor", s.requireSession(session.RoleInstructor, session.RoleAdmin)), s)
	registerAdminPages(s.app.Group("/admin", s.requireSession(session.RoleAdmin)), s)
	s.app.GET("/ws", s.serveWS)
}

// Start blocks serving until the server is shut down. Failures are sent on Errors.
func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) Shutdown(ctx context.Context) error {
	defer s.clients.close()
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	defer s.clients.close()
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
