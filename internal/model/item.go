package model

import "time"

// Item represents a marketplace item owned by a user.
//
// The `json:"..."` tags tell Go's encoding/json package how to
// serialize/deserialize this struct to/from JSON. This is called a
// "struct tag" — metadata attached to fields.
//
// OwnerID references the User who created the item. The reference is only
// validated at creation time (the creator is always a live, authenticated
// user); it is never re-checked afterwards, and user deletion is not exposed,
// so it cannot dangle at runtime.
type Item struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`               // 1-100 chars
	Description string    `json:"description" db:"description"` // optional, <=500 chars
	Price       float64   `json:"price" db:"price"`             // must be > 0
	Category    string    `json:"category" db:"category"`
	OwnerID     int64     `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
