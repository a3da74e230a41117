package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// Create inserts a new user. The id comes back from SQLite's AUTOINCREMENT
// counter via LastInsertId, so it's monotonic and never reused — the caller
// sees it on the passed-in struct, same as the memory backend.
//
// The UNIQUE constraints on username/email are a backstop: the service layer
// checks uniqueness first, but a constraint violation is still translated
// into a Conflict rather than leaking a driver error.
func (ud *UserDB) Create(ctx context.Context, user *model.User) error {
	db := ud.db
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, full_name, password_hash, created_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.CreatedAt,
		user.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Username or email already registered")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a single user by id.
func (ud *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	db := ud.db
	u, err := db.userBy(ctx, "id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetByUsername retrieves a single user by exact username.
func (ud *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	db := ud.db
	u, err := db.userBy(ctx, "username = ?", username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundf("user %q not found", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

// GetByEmail retrieves a single user by exact email.
func (ud *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	db := ud.db
	u, err := db.userBy(ctx, "email = ?", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundf("user with email %q not found", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// userBy runs the shared single-row SELECT with the given WHERE clause.
// The clause strings are compile-time constants above — never user input.
func (db *DB) userBy(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, full_name, password_hash, created_at, is_active
		 FROM users WHERE `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt, &u.IsActive)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns users in insertion order (ORDER BY id) with LIMIT/OFFSET
// pagination. An offset past the end simply yields zero rows.
func (ud *UserDB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	db := ud.db
	skip, limit := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, email, full_name, password_hash, created_at, is_active
		 FROM users
		 ORDER BY id
		 LIMIT ? OFFSET ?`,
		limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName,
			&u.PasswordHash, &u.CreatedAt, &u.IsActive); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// Count returns the total number of users.
func (ud *UserDB) Count(ctx context.Context) (int, error) {
	db := ud.db
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// clampPage normalises pagination the same way the memory backend does:
// negative skip becomes 0, non-positive limit yields an empty page.
func clampPage(opts repository.ListOptions) (skip, limit int) {
	skip, limit = opts.Skip, opts.Limit
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	return skip, limit
}

// isUniqueViolation detects a UNIQUE constraint failure without importing
// the driver's error types: modernc.org/sqlite surfaces constraint errors
// with the standard SQLite message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
