// Package session persists server-side session records. A session is created
// on successful login, looked up on every protected request, and removed on
// logout (one session) or logout-from-all-devices (every session carrying the
// same username snapshot).
package session

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"todo-service/models"
)

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// Store persists sessions in the "sessions" table.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new authenticated session carrying a snapshot of the
// user's identity and returns it. The session id is an opaque UUID.
func (s *Store) Create(user models.User) (*models.Session, error) {
	sess := &models.Session{
		SessionID:     uuid.New().String(),
		Authenticated: true,
		UserID:        user.ID,
		Email:         user.Email,
		Username:      user.Username,
		CreatedAt:     time.Now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO sessions (session_id, authenticated, user_id, email, username, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		sess.SessionID, sess.Authenticated, sess.UserID, sess.Email, sess.Username, sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads the session for the given id. Returns ErrNotFound if no such
// session exists (including sessions destroyed by logout).
func (s *Store) Get(sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRow(
		"SELECT session_id, authenticated, user_id, email, username, created_at FROM sessions WHERE session_id = ?",
		sessionID).
		Scan(&sess.SessionID, &sess.Authenticated, &sess.UserID, &sess.Email, &sess.Username, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete destroys a single session. Once it returns, a lookup for the same
// id fails with ErrNotFound.
func (s *Store) Delete(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID)
	return err
}

// DeleteByUsername destroys every session whose embedded identity snapshot
// carries the given username, the caller's current session included, and
// returns how many were removed. Matching is on the denormalized snapshot, so
// sessions referencing a since-deleted identity are still purged.
func (s *Store) DeleteByUsername(username string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE username = ?", username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
