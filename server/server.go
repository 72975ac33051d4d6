package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/feedloop/pkg/content"
	"github.com/umputun/feedloop/pkg/db"
	"github.com/umputun/feedloop/pkg/domain"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/scheduler.go -pkg mocks -skip-ensure -fmt goimports . Scheduler
//go:generate moq -out mocks/extractor.go -pkg mocks -skip-ensure -fmt goimports . Extractor

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	store     Store
	auth      Auth
	scheduler Scheduler
	extractor Extractor
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Store is the persistence surface for HTTP handlers
type Store interface {
	GetCategories(ctx context.Context, userID int64) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) error
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	GetFeeds(ctx context.Context, userID int64) ([]*domain.Feed, error)
	GetFeed(ctx context.Context, id int64) (*domain.Feed, error)
	UpdateFeed(ctx context.Context, feed *domain.Feed) error
	DeleteFeed(ctx context.Context, id int64) error

	GetEntries(ctx context.Context, userID int64, filter db.EntryFilter) ([]*domain.Entry, error)
	GetEntry(ctx context.Context, id int64) (*domain.Entry, error)
	GetEnclosures(ctx context.Context, entryID int64) ([]*domain.Enclosure, error)
	UpdateEntryStatus(ctx context.Context, entryID int64, status domain.EntryStatus) error
	ToggleEntryStar(ctx context.Context, entryID int64) (bool, error)
	UpdateEntryContent(ctx context.Context, entryID int64, content string, readingTime int) error
}

// Auth handles registration and session lifecycle
type Auth interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Scheduler covers on-demand feed operations: subscribing and immediate refresh
type Scheduler interface {
	Subscribe(ctx context.Context, userID int64, feedURL string, categoryID int64) (*domain.Feed, error)
	RefreshFeedNow(ctx context.Context, feedID int64) (*domain.RefreshResult, error)
}

// Extractor pulls full article content from an entry's page
type Extractor interface {
	Extract(ctx context.Context, urlStr string) (*content.ExtractResult, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, store Store, auth Auth, scheduler Scheduler, extractor Extractor, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		store:     store,
		auth:      auth,
		scheduler: scheduler,
		extractor: extractor,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler exposes the configured router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedloop", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /auth/register", s.registerHandler)
		r.HandleFunc("POST /auth/login", s.loginHandler)
		r.HandleFunc("POST /auth/logout", s.logoutHandler)

		r.Group().Route(func(priv *routegroup.Bundle) {
			priv.Use(s.authMiddleware)

			priv.HandleFunc("GET /categories", s.listCategoriesHandler)
			priv.HandleFunc("POST /categories", s.createCategoryHandler)
			priv.HandleFunc("PUT /categories/{id}", s.updateCategoryHandler)
			priv.HandleFunc("DELETE /categories/{id}", s.deleteCategoryHandler)

			priv.HandleFunc("GET /feeds", s.listFeedsHandler)
			priv.HandleFunc("POST /feeds", s.subscribeHandler)
			priv.HandleFunc("GET /feeds/{id}", s.getFeedHandler)
			priv.HandleFunc("PUT /feeds/{id}", s.updateFeedHandler)
			priv.HandleFunc("DELETE /feeds/{id}", s.deleteFeedHandler)
			priv.HandleFunc("POST /feeds/{id}/refresh", s.refreshFeedHandler)

			priv.HandleFunc("GET /entries", s.listEntriesHandler)
			priv.HandleFunc("GET /entries/{id}", s.getEntryHandler)
			priv.HandleFunc("POST /entries/{id}/star", s.starEntryHandler)
			priv.HandleFunc("PUT /entries/{id}/status", s.entryStatusHandler)
			priv.HandleFunc("POST /entries/{id}/content", s.extractEntryHandler)
		})
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}

// renderDomainError maps domain error kinds to HTTP status codes
func renderDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		renderError(w, r, err, http.StatusBadRequest)
	case domain.IsNotFound(err):
		renderError(w, r, err, http.StatusNotFound)
	case domain.IsConflict(err):
		renderError(w, r, err, http.StatusConflict)
	default:
		log.Printf("[ERROR] internal error on %s %s: %v", r.Method, r.URL.Path, err)
		renderError(w, r, errors.New("internal error"), http.StatusInternalServerError)
	}
}
