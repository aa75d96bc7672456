package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inquestlab/inquest/internal/crew"
	"github.com/inquestlab/inquest/internal/factcheck"
	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/merge"
	"github.com/inquestlab/inquest/internal/people"
)

// Storage is the subset of the Postgres store the API needs.
type Storage interface {
	SaveInvestigation(ctx context.Context, inv investigation.Investigation) error
	GetInvestigation(ctx context.Context, id string) (investigation.Investigation, error)
	ListInvestigations(ctx context.Context, limit int) ([]investigation.Investigation, error)
	SaveMerge(ctx context.Context, rec investigation.MergeRecord) error
	GetMerge(ctx context.Context, id string) (investigation.MergeRecord, error)
	ListPeople(ctx context.Context) ([]people.Person, error)
}

// Runner runs investigations. Satisfied by *crew.Crew.
type Runner interface {
	Run(ctx context.Context, objective string) (crew.Result, error)
	RunWithContext(ctx context.Context, objective string, prior *investigation.PriorContext) (crew.Result, error)
}

// Merger merges investigations and drives deep dives. Satisfied by *merge.Engine.
type Merger interface {
	Continue(ctx context.Context, base, next investigation.Investigation) (investigation.Investigation, []string)
	MergeMany(ctx context.Context, invs []investigation.Investigation) (investigation.MergeAnalysis, error)
	DeepDive(ctx context.Context, docID string) (investigation.DeepDive, error)
	Integrate(ctx context.Context, cur investigation.MergeAnalysis, dive investigation.DeepDive) (investigation.MergeAnalysis, error)
}

// Server hosts the HTTP API over the investigation engine.
type Server struct {
	store   Storage
	runner  Runner
	merger  Merger
	checker *factcheck.Checker
	secret  []byte
	jobs    *jobRegistry
	logger  *log.Logger
}

func New(store Storage, runner Runner, merger Merger, checker *factcheck.Checker, secret []byte) *Server {
	return &Server{
		store:   store,
		runner:  runner,
		merger:  merger,
		checker: checker,
		secret:  secret,
		jobs:    newJobRegistry(),
		logger:  log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

// Echo builds the configured echo instance. Split from Run for tests.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, s.secret) })

	api.POST("/investigations", s.startInvestigation)
	api.GET("/investigations", s.listInvestigations)
	api.GET("/investigations/:id", s.getInvestigation)
	api.POST("/investigations/:id/continue", s.continueInvestigation)
	api.GET("/investigations/:id/network", s.investigationNetwork)
	api.GET("/investigations/:id/citations", s.verifyCitations)

	api.POST("/merges", s.startMerge)
	api.GET("/merges/:id", s.getMerge)
	api.POST("/merges/:id/deepdive", s.deepDive)

	api.GET("/people", s.listPeople)
	api.GET("/jobs/:id", s.getJob)

	return e
}

func (s *Server) Run(addr string) error {
	return s.Echo().Start(addr)
}

var _ Merger = (*merge.Engine)(nil)
