package session

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-service/models"
)

const sessionsSchema = `
CREATE TABLE sessions (
    session_id TEXT PRIMARY KEY,
    authenticated INTEGER NOT NULL DEFAULT 0,
    user_id INTEGER NOT NULL,
    email TEXT NOT NULL,
    username TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every pool connection would otherwise get its own empty :memory: db
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(sessionsSchema)
	require.NoError(t, err)
	return NewStore(db)
}

func testUser(username string) models.User {
	return models.User{
		ID:       7,
		Name:     "Test User",
		Email:    username + "@example.com",
		Username: username,
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Create(testUser("alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.True(t, sess.Authenticated)

	got, err := store.Get(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)
	assert.True(t, got.Authenticated)
	assert.Equal(t, 7, got.UserID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "alice", got.Username)
}

func TestGetUnknownSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Create(testUser("alice"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(sess.SessionID))

	_, err = store.Get(sess.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an already-gone session is not an error
	assert.NoError(t, store.Delete(sess.SessionID))
}

func TestDeleteByUsername(t *testing.T) {
	store := newTestStore(t)

	a1, err := store.Create(testUser("alice"))
	require.NoError(t, err)
	a2, err := store.Create(testUser("alice"))
	require.NoError(t, err)
	b1, err := store.Create(testUser("bob"))
	require.NoError(t, err)

	count, err := store.DeleteByUsername("alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = store.Get(a1.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(a2.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Bob's session is untouched
	_, err = store.Get(b1.SessionID)
	assert.NoError(t, err)

	// No sessions left to purge
	count, err = store.DeleteByUsername("alice")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestDeleteByUsernameToleratesStaleIdentity(t *testing.T) {
	store := newTestStore(t)

	// A session whose user row no longer exists anywhere; the snapshot alone
	// must be enough to purge it
	sess, err := store.Create(models.User{ID: 999, Email: "gone@example.com", Username: "ghost"})
	require.NoError(t, err)

	count, err := store.DeleteByUsername("ghost")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = store.Get(sess.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
}
