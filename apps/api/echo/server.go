package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/certificate"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/ratelimit"
	"github.com/elimulab/elimu/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		UserSvc        user.ServiceInterface
		CourseSvc      *course.Service
		ProgressSvc    *progress.Service
		CertificateSvc *certificate.Service
		Logger         core.Logger
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
		ShutdownSignal() <-chan struct{}
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	authMW := authMiddleware()
	limitMW := rateLimitMiddleware(ratelimit.New(core.Conf.RateLimit.Window, core.Conf.RateLimit.MaxRequests))

	registerUserAPI(v1, authMW, limitMW, s.opts.UserSvc)
	registerCourseAPI(v1, authMW, s.opts.CourseSvc, s.opts.ProgressSvc)
	registerProgressAPI(v1, authMW, s.opts.ProgressSvc)
	registerCertificateAPI(v1, limitMW, s.opts.CertificateSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// ShutdownSignal is closed when an unrecoverable error asks for a graceful stop.
func (s *server) ShutdownSignal() <-chan struct{} {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Elimu API!")
}
