package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/marketplace-api/internal/config"
	"github.com/sakif/marketplace-api/internal/repository"
)

// MetaHandler serves the operational endpoints: the root banner, the health
// check, the sanitised config dump, and the API self-description.
type MetaHandler struct {
	cfg    *config.Config
	users  repository.UserRepository
	items  repository.ItemRepository
	logger *slog.Logger
}

func NewMetaHandler(cfg *config.Config, users repository.UserRepository, items repository.ItemRepository, logger *slog.Logger) *MetaHandler {
	return &MetaHandler{cfg: cfg, users: users, items: items, logger: logger}
}

// HandleRoot is the welcome banner.
//
// HTTP: GET /
func (h *MetaHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   config.AppName + " is running!",
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   config.AppVersion,
	})
}

// HandleHealth reports liveness plus store row counts, so a monitoring
// probe can see at a glance whether data is flowing.
//
// HTTP: GET /health
func (h *MetaHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	usersCount, err := h.users.Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemsCount, err := h.items.Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"database": map[string]int{
			"users_count": usersCount,
			"items_count": itemsCount,
		},
		"version":     config.AppVersion,
		"environment": h.cfg.Environment,
	})
}

// HandleConfig exposes the non-secret runtime configuration.
//
// HTTP: GET /config
func (h *MetaHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Public())
}

// HandleAPIInfo is a machine-readable map of the API surface.
//
// HTTP: GET /api/info
func (h *MetaHandler) HandleAPIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"api_name":    config.AppName,
		"version":     config.AppVersion,
		"description": "A marketplace API with JWT authentication, user management, and item CRUD operations",
		"endpoints": map[string]any{
			"authentication": map[string]string{
				"POST /auth/register": "Register a new user",
				"POST /auth/login":    "Login and receive an access token",
				"GET /auth/me":        "Get the current user profile (auth required)",
				"GET /auth/help":      "Authentication walkthrough",
			},
			"users": map[string]string{
				"GET /users":            "List users (auth required)",
				"GET /users/{id}":       "Get a user by id (auth required)",
				"GET /users/{id}/items": "List a user's items (owner or admin only)",
			},
			"items": map[string]string{
				"GET /items":            "List items with filtering and pagination",
				"POST /items":           "Create an item (auth required)",
				"GET /items/search":     "Search items with sorting",
				"GET /items/categories": "Category statistics",
				"GET /items/{id}":       "Get an item by id",
				"PUT /items/{id}":       "Update an item (owner or admin only)",
				"DELETE /items/{id}":    "Delete an item (owner or admin only)",
			},
			"statistics": map[string]string{
				"GET /stats": "Marketplace statistics (auth required)",
			},
			"system": map[string]string{
				"GET /":       "API status banner",
				"GET /health": "Health check with store counts",
				"GET /config": "Non-secret runtime configuration",
			},
		},
		"authentication_type": "JWT Bearer token",
		"default_credentials": map[string]string{
			"username": "admin",
			"password": "password",
		},
	})
}
