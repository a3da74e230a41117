package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/auth"
	"github.com/sakif/marketplace-api/internal/service"
)

// UserHandler exposes the user directory. Every route here sits behind
// RequireAuth; the per-user items route adds an ownership check on top.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleList returns a page of registered users.
//
// HTTP: GET /users?skip=0&limit=100
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := queryInt(q, "skip", 0, 0, maxSkip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(q, "limit", 100, 1, 100)
	if err != nil {
		writeError(w, r, err)
		return
	}

	users, err := h.users.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleGet returns a single user by id.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleItems returns the items owned by a user. Only the user themselves
// or an admin may view the list; the ownership check lives in the service.
//
// HTTP: GET /users/{id}/items?skip=0&limit=100
func (h *UserHandler) HandleItems(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthenticated("Authentication required"))
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	skip, err := queryInt(q, "skip", 0, 0, maxSkip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(q, "limit", 100, 1, 100)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.users.ItemsOf(r.Context(), caller, id, skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}
