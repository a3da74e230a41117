// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go creates: config + logger → passed to Server
// Server.New() creates: store → auth services → domain services → handlers
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/auth"
	"github.com/sakif/marketplace-api/internal/config"
	"github.com/sakif/marketplace-api/internal/handler"
	"github.com/sakif/marketplace-api/internal/middleware"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
	"github.com/sakif/marketplace-api/internal/repository/memory"
	sqliteRepo "github.com/sakif/marketplace-api/internal/repository/sqlite"
	"github.com/sakif/marketplace-api/internal/service"
)

// Default credentials seeded at startup so the API is usable immediately.
// Change or remove these before any real deployment.
const (
	seedAdminEmail    = "admin@example.com"
	seedAdminFullName = "Administrator"
	seedAdminPassword = "password"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// When the SQLite backend is selected the Server owns the database
// connection (closer). Shutdown must close it to flush the WAL and release
// the file lock; the in-memory backend has nothing to close, so closer is
// nil in that case.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer // SQLite connection, nil for the in-memory store
}

// New creates a new Server from the given configuration.
//
// STORE SELECTION:
// DB_PATH empty  → mutex-guarded in-memory store (data lost on restart)
// DB_PATH set    → embedded SQLite at that path (":memory:" works too)
//
// Both backends implement the same repository interfaces, so nothing past
// this function knows which one is in use.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var (
		users  repository.UserRepository
		items  repository.ItemRepository
		closer io.Closer
	)
	if cfg.DBPath == "" {
		store := memory.New()
		users, items = store.Users(), store.Items()
	} else {
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		users, items = db.Users(), db.Items()
		closer = db
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		closer: closer,
	}

	if err := s.setupRoutes(users, items); err != nil {
		if closer != nil {
			closer.Close() // Clean up DB if wiring fails
		}
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes assembles the dependency chain and configures all middleware
// and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                      → status banner
//	GET    /health                → health check with store counts
//	GET    /config                → non-secret runtime configuration
//	GET    /api/info              → API self-description
//	GET    /auth/help             → authentication walkthrough
//	GET    /auth/register         → registration usage info
//	POST   /auth/register         → create an account
//	GET    /auth/login            → login usage info
//	POST   /auth/login            → form login, returns a JWT
//	GET    /auth/me               → current user (auth)
//	GET    /users                 → list users (auth)
//	GET    /users/{id}            → get user (auth)
//	GET    /users/{id}/items      → user's items (owner or admin)
//	GET    /items                 → filtered, paginated listing
//	POST   /items                 → create item (auth)
//	GET    /items/search          → search with sorting
//	GET    /items/categories      → category statistics
//	GET    /items/{id}            → get item
//	PUT    /items/{id}            → update item (owner or admin)
//	DELETE /items/{id}            → delete item (owner or admin)
//	GET    /stats                 → marketplace statistics (auth)
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes(users repository.UserRepository, items repository.ItemRepository) error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	// Our custom logging middleware
	s.router.Use(middleware.Logger(s.logger))

	// === Auth machinery ===
	tokens, err := auth.NewTokenService(s.cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	guard := auth.NewGuard(tokens, users)

	// === Seed the default admin account ===
	if err := seedAdmin(context.Background(), users, passwords, s.logger); err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}

	// === Services and handlers ===
	// Handlers never touch the store directly, and services never touch
	// HTTP. Each layer only receives the interfaces it needs.
	tokenTTL := time.Duration(s.cfg.AccessTokenExpireMinutes) * time.Minute
	authSvc := service.NewAuthService(users, tokens, passwords, tokenTTL, s.logger)
	userSvc := service.NewUserService(users, items, s.logger)
	itemSvc := service.NewItemService(items, users, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, s.logger)
	userHandler := handler.NewUserHandler(userSvc, s.logger)
	itemHandler := handler.NewItemHandler(itemSvc, s.logger)
	metaHandler := handler.NewMetaHandler(s.cfg, users, items, s.logger)

	// === System routes (public) ===
	s.router.Get("/", metaHandler.HandleRoot)
	s.router.Get("/health", metaHandler.HandleHealth)
	s.router.Get("/config", metaHandler.HandleConfig)
	s.router.Get("/api/info", metaHandler.HandleAPIInfo)

	// === Auth routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/help", authHandler.HandleHelp)
		r.Get("/register", authHandler.HandleRegisterInfo)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/login", authHandler.HandleLoginInfo)
		r.Post("/login", authHandler.HandleLogin)
		r.With(guard.RequireAuth).Get("/me", authHandler.HandleMe)
	})

	// === User routes (all protected) ===
	s.router.Route("/users", func(r chi.Router) {
		r.Use(guard.RequireAuth)
		r.Get("/", userHandler.HandleList)
		r.Get("/{id}", userHandler.HandleGet)
		r.Get("/{id}/items", userHandler.HandleItems)
	})

	// === Item routes ===
	// Reads are public but run through OptionalAuth, so a valid token still
	// resolves the caller (and a broken one is ignored rather than rejected).
	// Fixed routes (/search, /categories) are registered before /{id} so chi
	// matches them first.
	s.router.Route("/items", func(r chi.Router) {
		r.With(guard.OptionalAuth).Get("/", itemHandler.HandleList)
		r.With(guard.OptionalAuth).Get("/search", itemHandler.HandleSearch)
		r.With(guard.OptionalAuth).Get("/categories", itemHandler.HandleCategories)
		r.With(guard.OptionalAuth).Get("/{id}", itemHandler.HandleGet)

		r.With(guard.RequireAuth).Post("/", itemHandler.HandleCreate)
		r.With(guard.RequireAuth).Put("/{id}", itemHandler.HandleUpdate)
		r.With(guard.RequireAuth).Delete("/{id}", itemHandler.HandleDelete)
	})

	s.router.With(guard.RequireAuth).Get("/stats", itemHandler.HandleStats)

	return nil
}

// seedAdmin creates the default admin account if it doesn't already exist.
// A SQLite store reopened from a previous run will already have it, so
// "already exists" is the success path there, not an error.
func seedAdmin(ctx context.Context, users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) error {
	_, err := users.GetByUsername(ctx, model.AdminUsername)
	if err == nil {
		return nil // already seeded
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	hash, err := passwords.Hash(seedAdminPassword)
	if err != nil {
		return err
	}

	admin := &model.User{
		Username:     model.AdminUsername,
		Email:        seedAdminEmail,
		FullName:     seedAdminFullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	logger.Info("seeded default admin user",
		slog.Int64("id", admin.ID),
		slog.String("username", admin.Username),
	)
	return nil
}

// Handler exposes the assembled router, mainly for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection, if any (flushes WAL, releases file lock)
//
// The `defer` on the closer ensures step 3 happens even if something panics.
func (s *Server) Start() error {
	if s.closer != nil {
		defer s.closer.Close()
	}

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.String("environment", s.cfg.Environment),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
