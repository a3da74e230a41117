// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the store
//
// Handlers know about HTTP (status codes, headers, JSON). Services know about
// business rules (uniqueness, permissions, merging). Repositories know about
// storage. Each layer receives the one below it as an interface, so tests can
// substitute mocks at any boundary.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/auth"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// AuthService handles registration and login.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. tokenTTL is the lifetime of tokens
// issued at login (configured, default 30 minutes).
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// RegisterInput is the already-shape-validated registration payload.
// Length and syntax rules (username 3-50, email format, password >= 8) are
// enforced at the HTTP layer; this service enforces the business rules that
// need store access.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// Register creates a new user.
//
// ORDER OF CHECKS:
// Username uniqueness is checked before email uniqueness, so a request that
// collides on both reports the username conflict. Then the password is
// hashed and the record inserted; the repository assigns id and timestamp.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, apperror.Conflict("Username already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.Conflict("Email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("failed to create user",
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("new user registered",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login verifies credentials and issues a token whose subject is the
// username. It returns the token, its lifetime in seconds, and the user.
//
// GENERIC FAILURE MESSAGE:
// "No such user" and "wrong password" are deliberately indistinguishable in
// the response. Telling an attacker which usernames exist makes credential
// stuffing easier; a single message closes that oracle.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, int, *model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", 0, nil, apperror.Unauthenticated("Incorrect username or password")
		}
		return "", 0, nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return "", 0, nil, apperror.Unauthenticated("Incorrect username or password")
	}

	token, err := s.tokens.IssueWithTTL(user.Username, s.tokenTTL)
	if err != nil {
		return "", 0, nil, fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("username", username))

	return token, int(s.tokenTTL.Seconds()), user, nil
}
