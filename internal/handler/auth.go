package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/auth"
	"github.com/sakif/marketplace-api/internal/service"
)

// AuthHandler manages registration, login, and the current-user endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → validate payload, create account, 201
//   - HandleLogin    → verify form credentials, issue JWT, 200
//   - HandleMe       → return the authenticated caller's profile
//   - the GET variants of /auth/register and /auth/login serve usage
//     information so a browser poking at the API gets guidance, not a 405
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, logger: logger}
}

// registerRequest is the POST /auth/register payload. The `validate` tags
// encode the contract: username 3-50 chars, syntactically valid email,
// password at least 8 chars, optional full name up to 100.
type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"omitempty,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

// tokenResponse is the successful login body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// HandleRegister creates a new user account.
//
// HTTP: POST /auth/register
// RESPONSE: 201 with the public user projection (no password hash — the
// model's json:"-" tag guarantees it can't leak), 400 on duplicate
// username/email, 422 on validation failure.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin authenticates form-encoded credentials and returns a JWT.
//
// HTTP: POST /auth/login
// BODY: application/x-www-form-urlencoded, fields `username` and `password`
//
// WHY FORM ENCODING AND NOT JSON?
// The login endpoint follows the OAuth2 password-grant convention of
// form-encoded credentials, which is what browser login forms and most API
// tooling send by default. Everything else in this API speaks JSON.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, apperror.ValidationFailed("body", "Invalid form body"))
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, r, apperror.ValidationFailed("credentials",
			"Both username and password are required"))
		return
	}

	token, expiresIn, _, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
	})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /auth/me
// Auth: required (RequireAuth puts the resolved user in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeError(w, r, apperror.Unauthenticated("Authentication required"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleRegisterInfo describes the registration contract.
//
// HTTP: GET /auth/register
func (h *AuthHandler) HandleRegisterInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "User registration endpoint",
		"method":          "POST",
		"endpoint":        "/auth/register",
		"required_fields": []string{"username", "email", "password"},
		"optional_fields": []string{"full_name"},
		"example": map[string]string{
			"username":  "johndoe",
			"email":     "john@example.com",
			"full_name": "John Doe",
			"password":  "secretpassword123",
		},
		"password_requirements": "Minimum 8 characters",
	})
}

// HandleLoginInfo describes the login contract.
//
// HTTP: GET /auth/login
func (h *AuthHandler) HandleLoginInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":             "User login endpoint",
		"method":              "POST",
		"endpoint":            "/auth/login",
		"required_parameters": []string{"username", "password"},
		"default_user": map[string]string{
			"username": "admin",
			"password": "password",
			"note":     "Default user for testing purposes",
		},
		"response": "Returns a JWT access token on successful authentication",
		"note":     "Send a POST request with username and password as form data",
	})
}

// HandleHelp is a walkthrough of the authentication flow.
//
// HTTP: GET /auth/help
func (h *AuthHandler) HandleHelp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"title":    "Authentication Help",
		"overview": "This API uses JWT (JSON Web Token) authentication for protected endpoints",
		"steps": map[string]string{
			"1": "Register a new user account (POST /auth/register) or use the default credentials",
			"2": "Login to get an access token (POST /auth/login)",
			"3": "Include the token in the Authorization header for protected endpoints",
		},
		"default_credentials": map[string]string{
			"username": "admin",
			"password": "password",
		},
		"header_format": "Authorization: Bearer <your_access_token>",
		"protected_endpoints": []string{
			"POST /items", "PUT /items/{id}", "DELETE /items/{id}",
			"GET /auth/me", "GET /users", "GET /users/{id}",
			"GET /users/{id}/items", "GET /stats",
		},
		"public_endpoints": []string{
			"GET /", "GET /health", "GET /config", "GET /items",
			"GET /items/{id}", "GET /items/search", "GET /items/categories",
			"POST /auth/register", "POST /auth/login",
		},
		"common_errors": map[string]string{
			"401_unauthorized":     "Missing, invalid, or expired token. Login again to get a new token",
			"403_forbidden":        "Authenticated, but not the owner (or admin) of the resource",
			"422_validation_error": "Invalid request data. Check the required fields and data types",
		},
	})
}
