package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/marketplace-api/internal/auth"
	"github.com/sakif/marketplace-api/internal/config"
	"github.com/sakif/marketplace-api/internal/server"
)

const testSecret = "end-to-end-test-secret-key!!"

// newTestServer assembles a full server on the in-memory store. The admin
// account (admin/password) is seeded during construction, exactly as in
// production.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Port:                     0,
		SecretKey:                testSecret,
		AccessTokenExpireMinutes: 30,
		Environment:              "test",
		DBPath:                   "",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := server.New(cfg, logger)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv.Handler()
}

// doJSON sends a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// login posts form credentials and returns the access token.
func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", username, rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("token_type = %q, want bearer", resp.TokenType)
	}
	return resp.AccessToken
}

// register creates a user and returns the decoded response body.
func register(t *testing.T, h http.Handler, username, email, password string) map[string]any {
	t.Helper()
	body := `{"username":"` + username + `","email":"` + email + `","password":"` + password + `"}`
	rr := doJSON(t, h, http.MethodPost, "/auth/register", "", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", username, rr.Code, rr.Body.String())
	}
	var user map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&user); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	return user
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v (raw: %s)", err, rr.Body.String())
	}
	return body
}

// =========================================================================
// SYSTEM ENDPOINT TESTS
// =========================================================================

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	root := decodeBody(t, rr)
	assert.Equal(t, "healthy", root["status"])
	assert.Equal(t, config.AppVersion, root["version"])

	rr = doJSON(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	health := decodeBody(t, rr)
	assert.Equal(t, "test", health["environment"])

	// The seeded admin is the only row at startup
	db := health["database"].(map[string]any)
	assert.Equal(t, float64(1), db["users_count"])
	assert.Equal(t, float64(0), db["items_count"])
}

func TestConfigEndpointHidesSecret(t *testing.T) {
	h := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/config", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), testSecret)
}

func TestAPIInfoAndAuthHelp(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/api/info", "/auth/help", "/auth/register", "/auth/login"} {
		rr := doJSON(t, h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, "GET %s", path)
	}
}

// =========================================================================
// AUTH FLOW TESTS
// =========================================================================

func TestRegisterLoginMe(t *testing.T) {
	h := newTestServer(t)

	user := register(t, h, "bob", "bob@example.com", "secret123")
	assert.Equal(t, "bob", user["username"])
	assert.NotContains(t, user, "password_hash", "hash must never appear in responses")

	token := login(t, h, "bob", "secret123")

	rr := doJSON(t, h, http.MethodGet, "/auth/me", token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody(t, rr)
	assert.Equal(t, "bob", me["username"])
	assert.Equal(t, "bob@example.com", me["email"])
}

func TestRegister_DuplicateUsername(t *testing.T) {
	h := newTestServer(t)
	register(t, h, "bob", "bob@example.com", "secret123")

	rr := doJSON(t, h, http.MethodPost, "/auth/register", "",
		`{"username":"bob","email":"other@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "conflict", body["error"])
}

func TestRegister_ValidationFailures(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","email":"a@example.com","password":"secret123"}`},
		{"bad email", `{"username":"carol","email":"not-an-email","password":"secret123"}`},
		{"short password", `{"username":"carol","email":"c@example.com","password":"short"}`},
		{"malformed json", `{"username":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/auth/register", "", tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, "validation_error", body["error"])
		})
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newTestServer(t)

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
}

func TestLogin_MissingFields(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("username=admin"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSeededAdminCanLogin(t *testing.T) {
	h := newTestServer(t)

	token := login(t, h, "admin", "password")

	rr := doJSON(t, h, http.MethodGet, "/auth/me", token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody(t, rr)
	assert.Equal(t, "admin", me["username"])
}

// protectedRoutes lists every endpoint behind RequireAuth. Both the
// missing-token and expired-token tests walk the same table so a newly
// guarded route only has to be added once.
var protectedRoutes = []struct {
	method string
	path   string
}{
	{http.MethodGet, "/auth/me"},
	{http.MethodGet, "/users"},
	{http.MethodGet, "/users/1"},
	{http.MethodGet, "/users/1/items"},
	{http.MethodPost, "/items"},
	{http.MethodPut, "/items/1"},
	{http.MethodDelete, "/items/1"},
	{http.MethodGet, "/stats"},
}

func TestExpiredTokenIsRejected(t *testing.T) {
	h := newTestServer(t)
	register(t, h, "bob", "bob@example.com", "secret123")

	// Sign an already-expired token with the server's own secret
	tokens, err := auth.NewTokenService(testSecret)
	assert.NoError(t, err)
	expired, err := tokens.IssueWithTTL("bob", 0)
	assert.NoError(t, err)

	// Every guarded route must refuse the expired token, not just /auth/me
	for _, p := range protectedRoutes {
		rr := doJSON(t, h, p.method, p.path, expired, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", p.method, p.path)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
		body := decodeBody(t, rr)
		assert.Contains(t, body["message"], "expired", "%s %s", p.method, p.path)
	}
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	h := newTestServer(t)

	for _, p := range protectedRoutes {
		rr := doJSON(t, h, p.method, p.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", p.method, p.path)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	}
}

// =========================================================================
// ITEM LIFECYCLE TESTS
// =========================================================================

func TestItemLifecycle(t *testing.T) {
	h := newTestServer(t)

	bobUser := register(t, h, "bob", "bob@example.com", "secret123")
	bob := login(t, h, "bob", "secret123")
	register(t, h, "eve", "eve@example.com", "secret123")
	eve := login(t, h, "eve", "secret123")

	// Bob lists an item; he becomes the owner
	rr := doJSON(t, h, http.MethodPost, "/items", bob,
		`{"name":"Laptop","description":"barely used","price":999.99,"category":"electronics"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	item := decodeBody(t, rr)
	assert.Equal(t, bobUser["id"], item["owner_id"])
	itemID := strconv.Itoa(int(item["id"].(float64)))

	// Anonymous read works
	rr = doJSON(t, h, http.MethodGet, "/items/"+itemID, "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	// Eve may not delete Bob's item
	rr = doJSON(t, h, http.MethodDelete, "/items/"+itemID, eve, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Eve may not update it either
	rr = doJSON(t, h, http.MethodPut, "/items/"+itemID, eve, `{"price":1}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Bob updates just the price; other fields survive
	rr = doJSON(t, h, http.MethodPut, "/items/"+itemID, bob, `{"price":899.99}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	updated := decodeBody(t, rr)
	assert.Equal(t, 899.99, updated["price"])
	assert.Equal(t, "Laptop", updated["name"])

	// Bob deletes it
	rr = doJSON(t, h, http.MethodDelete, "/items/"+itemID, bob, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, rr.Body.Len(), "204 must have no body")

	// It's gone
	rr = doJSON(t, h, http.MethodGet, "/items/"+itemID, "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminMayDeleteAnyItem(t *testing.T) {
	h := newTestServer(t)

	register(t, h, "bob", "bob@example.com", "secret123")
	bob := login(t, h, "bob", "secret123")
	admin := login(t, h, "admin", "password")

	rr := doJSON(t, h, http.MethodPost, "/items", bob,
		`{"name":"Laptop","price":999.99,"category":"electronics"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	itemID := strconv.Itoa(int(decodeBody(t, rr)["id"].(float64)))

	rr = doJSON(t, h, http.MethodDelete, "/items/"+itemID, admin, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestItemCreate_Validation(t *testing.T) {
	h := newTestServer(t)
	register(t, h, "bob", "bob@example.com", "secret123")
	bob := login(t, h, "bob", "secret123")

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"price":10,"category":"misc"}`},
		{"zero price", `{"name":"x","price":0,"category":"misc"}`},
		{"negative price", `{"name":"x","price":-5,"category":"misc"}`},
		{"missing category", `{"name":"x","price":10}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/items", bob, tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		})
	}
}

// =========================================================================
// LISTING, SEARCH, AND AGGREGATE TESTS
// =========================================================================

// seedItems creates a user and a handful of items for listing tests.
func seedItems(t *testing.T, h http.Handler) string {
	t.Helper()
	register(t, h, "bob", "bob@example.com", "secret123")
	bob := login(t, h, "bob", "secret123")

	items := []string{
		`{"name":"Laptop","description":"fast machine","price":999.99,"category":"electronics"}`,
		`{"name":"Phone","description":"shiny","price":499.99,"category":"electronics"}`,
		`{"name":"Novel","description":"a page turner","price":12.50,"category":"books"}`,
		`{"name":"Cookbook","description":"tasty recipes","price":24.00,"category":"books"}`,
		`{"name":"Desk","description":"solid oak","price":150.00,"category":"furniture"}`,
	}
	for _, body := range items {
		rr := doJSON(t, h, http.MethodPost, "/items", bob, body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("seeding item: status %d, body %s", rr.Code, rr.Body.String())
		}
	}
	return bob
}

func TestItemList_PaginationEnvelope(t *testing.T) {
	h := newTestServer(t)
	seedItems(t, h)

	rr := doJSON(t, h, http.MethodGet, "/items?skip=2&limit=2", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	page := decodeBody(t, rr)

	assert.Equal(t, float64(5), page["total"])
	assert.Equal(t, float64(2), page["page"]) // skip/limit + 1
	assert.Equal(t, float64(2), page["size"])
	assert.Equal(t, float64(3), page["pages"]) // ceil(5/2)
	assert.Len(t, page["items"], 2)
}

func TestItemList_EmptyResultHasPageZero(t *testing.T) {
	h := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/items", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	page := decodeBody(t, rr)

	assert.Equal(t, float64(0), page["total"])
	assert.Equal(t, float64(0), page["page"])
	assert.Equal(t, float64(0), page["pages"])
	assert.NotNil(t, page["items"], "items must be [] not null")
}

func TestItemList_Filters(t *testing.T) {
	h := newTestServer(t)
	seedItems(t, h)

	rr := doJSON(t, h, http.MethodGet, "/items?category=books", "", "")
	page := decodeBody(t, rr)
	assert.Equal(t, float64(2), page["total"])

	rr = doJSON(t, h, http.MethodGet, "/items?category=books&max_price=20", "", "")
	page = decodeBody(t, rr)
	assert.Equal(t, float64(1), page["total"])

	rr = doJSON(t, h, http.MethodGet, "/items?search=oak", "", "")
	page = decodeBody(t, rr)
	assert.Equal(t, float64(1), page["total"], "search matches descriptions too")
}

func TestItemList_ParameterValidation(t *testing.T) {
	h := newTestServer(t)

	for _, q := range []string{"limit=0", "limit=101", "skip=-1", "limit=abc", "min_price=-1", "min_price=abc"} {
		rr := doJSON(t, h, http.MethodGet, "/items?"+q, "", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "query %q", q)
	}
}

func TestItemSearch_SortingAndLimit(t *testing.T) {
	h := newTestServer(t)
	seedItems(t, h)

	rr := doJSON(t, h, http.MethodGet, "/items/search?sort_by=price&sort_order=asc&limit=3", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var items []map[string]any
	err := json.NewDecoder(rr.Body).Decode(&items)
	assert.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, "Novel", items[0]["name"], "cheapest first")

	// Invalid sort field is a validation error
	rr = doJSON(t, h, http.MethodGet, "/items/search?sort_by=owner_id", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestItemSearch_QueryMatchesCategory(t *testing.T) {
	h := newTestServer(t)
	seedItems(t, h)

	rr := doJSON(t, h, http.MethodGet, "/items/search?q=furniture", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var items []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&items))
	assert.Len(t, items, 1)
	assert.Equal(t, "Desk", items[0]["name"])
}

func TestItemCategories(t *testing.T) {
	h := newTestServer(t)
	seedItems(t, h)

	rr := doJSON(t, h, http.MethodGet, "/items/categories", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)

	assert.Equal(t, float64(3), body["total"])
	categories := body["categories"].(map[string]any)
	books := categories["books"].(map[string]any)
	assert.Equal(t, float64(2), books["count"])
	assert.InDelta(t, 18.25, books["avg_price"], 0.001)
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestServer(t)
	bob := seedItems(t, h)

	rr := doJSON(t, h, http.MethodGet, "/stats", bob, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	stats := decodeBody(t, rr)

	assert.Equal(t, float64(2), stats["total_users"]) // admin + bob
	assert.Equal(t, float64(5), stats["total_items"])
	assert.Equal(t, float64(5), stats["your_items"])
}

// =========================================================================
// USER ENDPOINT TESTS
// =========================================================================

func TestUserEndpoints(t *testing.T) {
	h := newTestServer(t)

	bobUser := register(t, h, "bob", "bob@example.com", "secret123")
	bob := login(t, h, "bob", "secret123")
	register(t, h, "eve", "eve@example.com", "secret123")
	eve := login(t, h, "eve", "secret123")
	admin := login(t, h, "admin", "password")

	bobID := strconv.Itoa(int(bobUser["id"].(float64)))

	// Authenticated users can browse the directory
	rr := doJSON(t, h, http.MethodGet, "/users", bob, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var users []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	assert.Len(t, users, 3) // admin, bob, eve

	rr = doJSON(t, h, http.MethodGet, "/users/"+bobID, eve, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/users/999", bob, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Bob's item list: self and admin may view, eve may not
	rr = doJSON(t, h, http.MethodGet, "/users/"+bobID+"/items", bob, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/users/"+bobID+"/items", admin, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/users/"+bobID+"/items", eve, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

// =========================================================================
// ERROR ENVELOPE TESTS
// =========================================================================

func TestErrorEnvelopeShape(t *testing.T) {
	h := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/items/999", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "not_found", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, "/items/999", body["path"])
}

func TestInvalidPathIDIsValidationError(t *testing.T) {
	h := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/items/abc", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
