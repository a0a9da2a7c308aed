package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/catalog"
	"github.com/danceforge/backoffice/internal/config"
	"github.com/danceforge/backoffice/internal/models"
	"github.com/danceforge/backoffice/internal/services"
)

// Readiness is the checklist engine as seen by the HTTP layer
type Readiness interface {
	Snapshot() *models.ChecklistSnapshot
	RunSingle(ctx context.Context, testID string) (*models.TestResult, error)
	RunCategory(ctx context.Context, categoryID string) (map[string]*models.TestResult, error)
	RunAll(ctx context.Context) (map[string]*models.TestResult, error)
	LoadSavedResults(ctx context.Context) (int, error)
}

// Catalog renders catalog views
type Catalog interface {
	View(ctx context.Context, q models.CatalogQuery) (*catalog.View, error)
}

// Store is the persistence the HTTP layer needs
type Store interface {
	ClientStore
	ListRuns(ctx context.Context, filters models.RunFilters) ([]*models.RunRecord, error)
}

// Deps holds the collaborators of the API server
type Deps struct {
	Readiness       Readiness
	Catalog         Catalog
	Store           Store
	Registry        *services.Registry
	Hub             *Hub
	DefaultPageSize int
	// RunTimeout bounds a readiness run started over HTTP
	RunTimeout time.Duration
}

// Server represents the HTTP API server
type Server struct {
	config          config.ServerConfig
	router          *chi.Mux
	readiness       Readiness
	catalog         Catalog
	store           Store
	registry        *services.Registry
	hub             *Hub
	authMiddleware  *AuthMiddleware
	defaultPageSize int
	runTimeout      time.Duration
	logger          *zap.Logger
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = services.NewRegistry()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(logger)
	}
	if deps.RunTimeout <= 0 {
		deps.RunTimeout = 5 * time.Minute
	}

	s := &Server{
		config:          cfg,
		readiness:       deps.Readiness,
		catalog:         deps.Catalog,
		store:           deps.Store,
		registry:        deps.Registry,
		hub:             deps.Hub,
		authMiddleware:  NewAuthMiddleware(deps.Store, logger),
		defaultPageSize: deps.DefaultPageSize,
		runTimeout:      deps.RunTimeout,
		logger:          logger,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	auth := s.authMiddleware
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/readiness", func(r chi.Router) {
			r.With(auth.RequirePermission(models.PermReadinessRead)).Get("/", s.handleReadinessSnapshot)
			r.With(auth.RequirePermission(models.PermReadinessRead)).Get("/events", s.handleEvents)
			r.With(auth.RequirePermission(models.PermRunsRead)).Get("/runs", s.handleListRuns)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(models.PermReadinessRun))
				r.Post("/run", s.handleRunAll)
				r.Post("/sync", s.handleSync)
				r.Post("/tests/{testId}/run", s.handleRunTest)
				r.Post("/categories/{categoryId}/run", s.handleRunCategory)
			})
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Use(auth.RequirePermission(models.PermCatalogRead))
			r.Get("/resources", s.handleListResources)
			r.Get("/facets", s.handleFacets)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using zap
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
