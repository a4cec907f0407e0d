package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the unique internal identifier of the user. It is used as
	// the subject of issued tokens.
	ID int `json:"id" db:"id"`

	// Email is the user's login identity. It is unique and immutable
	// after registration.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the salted bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
