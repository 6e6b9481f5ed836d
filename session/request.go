package session

import (
	"errors"
	"net/http"

	"todo-service/models"
)

// CookieName is the cookie carrying the opaque session id.
const CookieName = "session_id"

// ErrUnauthenticated marks a request with no usable session: cookie missing,
// session record gone, or the record not an authenticated one with an
// identity snapshot.
var ErrUnauthenticated = errors.New("no authenticated session")

// FromRequest resolves the request's cookie to an authenticated session. It
// is the single gate check shared by the server's auth callback and the
// handlers; store failures pass through unchanged so callers can tell them
// apart from ErrUnauthenticated.
func FromRequest(r *http.Request, s *Store) (*models.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	sess, err := s.Get(cookie.Value)
	if err == ErrNotFound {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	// Authenticated iff the identity snapshot is present
	if !sess.Authenticated || sess.Username == "" {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}
