// Package api provides the HTTP API server and handlers for the storybook service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/errors"
	"github.com/moriai/storybook-server/internal/service"
	"github.com/moriai/storybook-server/internal/speech"
	"github.com/moriai/storybook-server/internal/store"
	"github.com/moriai/storybook-server/internal/task"
)

// Server holds dependencies for HTTP handlers.
//
// The storybook endpoints (multipart upload, record reads) are plain chi
// handlers with the response envelope; the JSON speech endpoints are
// registered through huma for typed bodies and schema validation. The speech
// engine is nil in remote mode, where a separate TTS service owns the word
// and voice endpoints.
type Server struct {
	cfg      *config.Config
	repo     *store.BookRepository
	books    *service.BookService
	runner   *task.Runner
	batcher  speech.Batcher
	engine   *speech.Engine
	validate *validator.Validate
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	cfg *config.Config,
	repo *store.BookRepository,
	books *service.BookService,
	runner *task.Runner,
	batcher speech.Batcher,
	engine *speech.Engine,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	s := &Server{
		cfg:      cfg,
		repo:     repo,
		books:    books,
		runner:   runner,
		batcher:  batcher,
		engine:   engine,
		validate: validator.New(),
		router:   router,
		logger:   logger,
	}

	// Middleware must be attached before humachi.New registers the docs
	// routes; chi panics if Use is called after any route exists.
	s.setupMiddleware()
	s.api = humachi.New(router, huma.DefaultConfig("Storybook Service", "1.0.0"))
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/storybook", func(r chi.Router) {
		r.Post("/create", s.handleCreateBook)
		r.Get("/books", s.handleListBooks)
		r.Get("/books/{id}", s.handleGetBook)
		r.Delete("/books/{id}", s.handleDeleteBook)
		r.Get("/cache/stats", s.handleCacheStats)
	})

	s.registerSpeechRoutes()

	// Generated assets are served straight off the data directories.
	s.serveAssets("/data/image", s.cfg.Storage.ImageDir)
	s.serveAssets("/data/video", s.cfg.Storage.VideoDir)
	s.serveAssets("/data/sound", s.cfg.Storage.SoundDir)
}

func (s *Server) serveAssets(prefix, dir string) {
	fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(dir)))
	s.router.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	})
}

// humaError maps a domain error onto huma's status model.
func humaError(err error) error {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		return huma.NewError(domainErr.Code.HTTPStatus(), domainErr.Message)
	}
	return huma.Error500InternalServerError("internal server error")
}
