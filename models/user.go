package models

import "time"

// User represents a registered identity in the system
// Password is stored hashed (bcrypt); never return plain in JSON responses
type User struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"` // Hashed; omitted from JSON
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SignupRequest represents the request to register a new identity
// Password is plaintext here and hashed in the handler
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest for /login (cookie session)
// LoginID accepts either the registered email or the username
type LoginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

// MeResponse is the identity snapshot returned for the current session
type MeResponse struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
