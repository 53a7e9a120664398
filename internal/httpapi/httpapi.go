// Package httpapi mounts the orchestrator's logical HTTP surface (spec
// §6): run submission/planning/lifecycle and pool management, each
// scoped under a project name in the URL path. It is the external
// transport boundary; authentication is out of scope and left to a
// fronting proxy.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/config"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/pool"
	"github.com/skyfleet/orchestrator/internal/runs"
	"github.com/skyfleet/orchestrator/internal/store"
)

// Service is the lifecycle.Service-conforming HTTP API.
type Service struct {
	cfg     config.ServerConfig
	runsSvc *runs.Service
	store   store.Store
	pools   *pool.Manager
	log     *logrus.Entry
	handler http.Handler

	mu      sync.Mutex
	server  *http.Server
	running bool

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New builds the HTTP API Service and its route table.
func New(cfg config.ServerConfig, runsSvc *runs.Service, st store.Store, pools *pool.Manager, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Service{
		cfg:      cfg,
		runsSvc:  runsSvc,
		store:    st,
		pools:    pools,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
	s.handler = s.routes()
	return s
}

// Name identifies this service to the lifecycle manager.
func (s *Service) Name() string { return "http-api" }

func (s *Service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/project/{name}", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.With(s.rateLimitSubmit).Post("/submit", s.handleSubmitRun)
			r.Post("/get_plan", s.handleGetPlan)
			r.Post("/list", s.handleListRuns)
			r.Post("/get", s.handleGetRun)
			r.Post("/stop", s.handleStopRuns)
			r.Post("/delete", s.handleDeleteRuns)
		})
		r.Route("/pool", func(r chi.Router) {
			r.Post("/list", s.handlePoolList)
			r.Post("/create", s.handlePoolCreate)
			r.Post("/delete", s.handlePoolDelete)
			r.Post("/show", s.handlePoolShow)
			r.Post("/remove", s.handlePoolRemove)
			r.Post("/set-default", s.handlePoolSetDefault)
			r.Post("/add_remote", s.handlePoolAddRemote)
		})
	})

	return r
}

// rateLimitSubmit throttles /runs/submit per project, the one endpoint
// that can trigger a paid backend create_instance call.
func (s *Service) rateLimitSubmit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "name")
		if !s.limiterFor(project).Allow() {
			writeError(w, &apperrors.ServiceError{
				Code:       apperrors.CodeClient,
				Message:    fmt.Sprintf("rate limit exceeded for project %s", project),
				HTTPStatus: http.StatusTooManyRequests,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) limiterFor(project string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[project]
	if !ok {
		limit := s.cfg.SubmitRateLimitPerSecond
		if limit <= 0 {
			limit = 5
		}
		burst := s.cfg.SubmitRateLimitBurst
		if burst <= 0 {
			burst = 10
		}
		l = rate.NewLimiter(rate.Limit(limit), burst)
		s.limiters[project] = l
	}
	return l
}

// Start begins serving HTTP on cfg.Server's address.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	server := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	s.running = true
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server error")
		}
		s.mu.Lock()
		if s.server == server {
			s.running = false
		}
		s.mu.Unlock()
	}()

	s.log.WithField("addr", s.cfg.Addr()).Info("http api listening")
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return nil
	}
	err := server.Shutdown(ctx)
	s.mu.Lock()
	if s.server == server {
		s.running = false
	}
	s.mu.Unlock()
	return err
}

// Ready reports whether the HTTP server is currently serving.
func (s *Service) Ready(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return fmt.Errorf("http api not running")
	}
	return nil
}

func (s *Service) projectByName(ctx context.Context, name string) (*domain.Project, error) {
	return s.store.GetProjectByName(ctx, name)
}

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	svcErr, ok := err.(*apperrors.ServiceError)
	if !ok {
		svcErr = apperrors.Internal("internal error", err)
	}
	writeJSON(w, svcErr.HTTPStatus, map[string]any{
		"error": map[string]any{
			"code":    svcErr.Code,
			"message": svcErr.Message,
		},
	})
}
