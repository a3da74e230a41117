// Package auth provides JWT token issuing/verification, password hashing,
// and the authentication middleware for the marketplace API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User registers at POST /auth/register (password stored as a bcrypt hash)
// 2. User logs in at POST /auth/login with form-encoded credentials
// 3. Server issues a JWT whose "sub" claim is the username
// 4. On subsequent API calls, the client sends "Authorization: Bearer <token>";
//    middleware verifies the JWT, looks the subject up in the user store, and
//    places the resolved user in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store session
// data. All the information needed (subject, expiry) is inside the signed
// token. The signature ensures nobody can tamper with it without the secret
// key. There is no revocation list: a token is valid exactly when its
// signature checks out and its expiry has not passed.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures, distinguished so the middleware can return
// kind-specific 401 messages.
var (
	ErrTokenExpired        = errors.New("auth: token expired")
	ErrTokenMalformed      = errors.New("auth: token malformed")
	ErrTokenMissingSubject = errors.New("auth: token has no subject")
)

// DefaultTokenTTL is the lifetime used by Issue. The login endpoint always
// supplies an explicit lifetime from configuration (default 30 minutes) via
// IssueWithTTL.
const DefaultTokenTTL = 15 * time.Minute

// TokenService handles JWT creation and verification.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations — keep it safe, rotate it
// periodically in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SECRET_KEY=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// standard fields like Subject, ExpiresAt, IssuedAt.
//
// We use "sub" (Subject) to carry the username. This is the standard JWT
// claim for identifying who the token belongs to.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a JWT for the given subject with the default
// 15-minute lifetime.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple — good for single-server deployments
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, DefaultTokenTTL)
}

// IssueWithTTL creates a token with an explicit lifetime.
//
// A zero or negative ttl produces a token that is already expired; Verify
// (and therefore every protected endpoint) rejects it with ErrTokenExpired.
func (s *TokenService) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a JWT string and returns its subject (the
// username it was issued for).
//
// Failure modes:
//   - ErrTokenExpired        — "exp" has passed (no clock-skew leeway)
//   - ErrTokenMalformed      — bad signature, wrong algorithm, or unparseable
//   - ErrTokenMissingSubject — structurally valid but no "sub" claim
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. Passing jwt.WithValidMethods
// prevents this.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Translate jwt library errors into our failure taxonomy.
		// Expiry is checked first: an expired-but-well-signed token is a
		// distinct case the middleware reports differently.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", ErrTokenMalformed
	}

	if c.Subject == "" {
		return "", ErrTokenMissingSubject
	}

	return c.Subject, nil
}
