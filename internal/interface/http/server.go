// Package http exposes the transcript operations as a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/alem-hub/transcript-hub/internal/application/command"
	"github.com/alem-hub/transcript-hub/internal/application/query"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context handed to commands and queries.
	RequestTimeout time.Duration

	// BodyLimit - maximum request body size in bytes.
	BodyLimit int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
		BodyLimit:      1 << 20, // 1 MB
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	SetStudentName *command.SetStudentNameHandler
	AddSemester    *command.AddSemesterHandler
	DeleteSemester *command.DeleteSemesterHandler
	AddCourse      *command.AddCourseHandler
	DeleteCourse   *command.DeleteCourseHandler
	SortCourses    *command.SortCoursesHandler
	Save           *command.SaveTranscriptHandler
	Load           *command.LoadTranscriptHandler

	// Query Handlers (CQRS Read Side)
	ListSemesters    *query.ListSemestersHandler
	GetSemester      *query.GetSemesterHandler
	GetSemesterGPA   *query.GetSemesterGPAHandler
	GetCumulativeGPA *query.GetCumulativeGPAHandler
	Export           *query.ExportTranscriptHandler

	// StorageDriver is reported by the health endpoint.
	StorageDriver string

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	deps   Dependencies
	app    *fiber.App
	logger *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config:    config,
		deps:      deps,
		logger:    deps.Logger,
		startedAt: time.Now(),
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	s.app = fiber.New(fiber.Config{
		AppName:               "transcript-hub",
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             config.BodyLimit,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(s.requestContext)

	s.setupRoutes()
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Transcript
	// ─────────────────────────────────────────────────────────────────────────
	api.Get("/transcript", s.handleGetTranscript)
	api.Put("/transcript/student-name", s.handleSetStudentName)
	api.Post("/transcript/save", s.handleSave)
	api.Post("/transcript/load", s.handleLoad)
	api.Get("/transcript/export.xlsx", s.handleExport)
	api.Get("/gpa", s.handleCumulativeGPA)

	// ─────────────────────────────────────────────────────────────────────────
	// Semesters & courses
	// ─────────────────────────────────────────────────────────────────────────
	api.Post("/semesters", s.handleAddSemester)
	api.Get("/semesters/:id", s.handleGetSemester)
	api.Delete("/semesters/:id", s.handleDeleteSemester)
	api.Get("/semesters/:id/gpa", s.handleSemesterGPA)
	api.Post("/semesters/:id/courses", s.handleAddCourse)
	api.Delete("/semesters/:id/courses/:code", s.handleDeleteCourse)
	api.Post("/semesters/:id/sort", s.handleSortCourses)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.app.Listen(s.config.Address()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// Uptime returns the time since the server was created or last started.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startedAt)
}
