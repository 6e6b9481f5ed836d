package models

import "time"

// Session is a server-side record for one authenticated client, referenced
// by the opaque id held in the session cookie. The identity fields are a
// denormalized snapshot taken at login; they are what logout-from-all-devices
// matches against, so a session stays deletable even if the identity row is
// gone.
type Session struct {
	SessionID     string    `json:"session_id" db:"session_id"`
	Authenticated bool      `json:"authenticated" db:"authenticated"`
	UserID        int       `json:"user_id" db:"user_id"`
	Email         string    `json:"email" db:"email"`
	Username      string    `json:"username" db:"username"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
