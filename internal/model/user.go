// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered user account.
//
// WHY ID int64?
// User ids are assigned from a process-wide monotonic counter, starting at 1.
// They are never reused, even after deletion. int64 matches what both the
// memory counter and SQLite's AUTOINCREMENT column produce.
//
// WHY IS PasswordHash TAGGED `json:"-"`?
// The dash tells encoding/json to NEVER serialize this field. Handlers can
// then marshal a User directly without risk of leaking the hash. This is the
// "public projection" — same struct, sensitive field excluded at the
// serialization boundary.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`   // unique, 3-50 chars
	Email        string    `json:"email" db:"email"`         // unique, valid syntax
	FullName     string    `json:"full_name" db:"full_name"` // optional, <=100 chars
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// AdminUsername is the single distinguished account with a blanket override
// on ownership checks. It is seeded at startup and matched by name.
const AdminUsername = "admin"

// IsAdmin reports whether this user is the distinguished admin account.
func (u *User) IsAdmin() bool {
	return u.Username == AdminUsername
}
