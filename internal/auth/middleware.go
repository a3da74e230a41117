package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "user", u), ANY package that knows the string "user"
// can read or shadow your value. Using a package-private type prevents
// collisions: only THIS package can create a key of type contextKey, so only
// this package can read or write the current user in the context.
type contextKey string

const userKey contextKey = "currentUser"

// Guard resolves bearer credentials to user records. It combines the token
// service (signature + expiry) with a user store lookup (does the subject
// still exist?), which is everything a protected endpoint needs to know.
type Guard struct {
	tokens *TokenService
	users  repository.UserRepository
}

// NewGuard creates a Guard. Both dependencies are injected; the guard has no
// knowledge of how they're constructed.
func NewGuard(tokens *TokenService, users repository.UserRepository) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// It reads the JWT from the "Authorization: Bearer <token>" header, verifies
// it, resolves the subject against the user store, and stores the resolved
// user in the request context. Any failure stops the chain with a 401 whose
// message names the specific problem (missing header, expired token, bad
// token, unknown subject) and a WWW-Authenticate: Bearer hint.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler that wraps it. Chi applies middlewares in a chain:
// req → M1 → M2 → Handler → M2 → M1 → resp
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.resolve(r)
		if err != nil {
			writeUnauthorized(w, r, err)
			return
		}

		// Store the user in context so handlers can read it
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth extracts the user identity if a valid token is present, but
// does NOT block the request if it's missing or invalid.
//
// Used on public reads like GET /items: anonymous and authenticated callers
// share one code path, and handlers can check UserFromContext if they ever
// need to distinguish them.
func (g *Guard) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := g.resolve(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), userKey, user))
		}
		// Always continue — no 401 even if no token
		next.ServeHTTP(w, r)
	})
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) if the request is anonymous (no valid token present).
// On a RequireAuth-protected route it always returns (user, true).
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// resolve reads the bearer token and looks up the user it names.
// Shared by RequireAuth and OptionalAuth; only RequireAuth surfaces the
// errors to the client.
func (g *Guard) resolve(r *http.Request) (*model.User, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	subject, err := g.tokens.Verify(raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			return nil, apperror.Unauthenticated("Token has expired. Please login again to get a new token.")
		case errors.Is(err, ErrTokenMissingSubject):
			return nil, apperror.Unauthenticated("Invalid token: could not validate credentials.")
		default:
			return nil, apperror.Unauthenticated("Invalid token format. Please login again to get a valid token.")
		}
	}

	user, err := g.users.GetByUsername(r.Context(), subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Stateless tokens outlive their users: the signature still
			// verifies even if the account is gone.
			return nil, apperror.Unauthenticated("User not found. The token may be for a deleted user.")
		}
		return nil, err
	}

	return user, nil
}

// bearerToken extracts the credential from the Authorization header.
// The "Bearer" scheme is matched case-insensitively, per RFC 7235.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperror.Unauthenticated(
			"Authentication required. Please login and include your token in the Authorization header as 'Bearer <token>'.")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperror.Unauthenticated(
			"Authentication required. Please provide a valid Bearer token in the Authorization header.")
	}

	return strings.TrimSpace(token), nil
}

// writeUnauthorized sends the standard error envelope for an auth failure.
//
// This duplicates a sliver of the handler package's error writer on purpose:
// the handler package imports this one for UserFromContext, so sharing the
// writer would create an import cycle. The 401 is also the only response
// that needs the WWW-Authenticate header.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	message := "valid authentication required"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     "unauthenticated",
		"message":   message,
		"timestamp": time.Now().UTC(),
		"path":      r.URL.Path,
	})
}
