package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/httpserver"
	"golang.org/x/crypto/bcrypt"

	"todo-service/session"
)

const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE todos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    todo TEXT NOT NULL,
    username TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE sessions (
    session_id TEXT PRIMARY KEY,
    authenticated INTEGER NOT NULL DEFAULT 0,
    user_id INTEGER NOT NULL,
    email TEXT NOT NULL,
    username TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);`

type testEnv struct {
	db       *sqlx.DB
	cache    cache.Cache
	sessions *session.Store
	auth     *AuthHandler
	todos    *TodoHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	c, err := cache.New(cache.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return newTestEnvWithCache(t, c)
}

func newTestEnvWithCache(t *testing.T, c cache.Cache) *testEnv {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Keep the pool on one connection so every query sees the same :memory: db
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	sessions := session.NewStore(db)
	return &testEnv{
		db:       db,
		cache:    c,
		sessions: sessions,
		auth:     NewAuthHandler(db, sessions, bcrypt.MinCost),
		todos:    NewTodoHandler(db, c, sessions),
	}
}

// do invokes a handler the way the http server would, returning the recorder.
func do(h httpserver.HandlerFunc, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h(context.Background(), w, req)
	return w
}

func (e *testEnv) signup(t *testing.T, name, email, username, password string) {
	t.Helper()
	body := `{"name":"` + name + `","email":"` + email + `","username":"` + username + `","password":"` + password + `"}`
	w := do(e.auth.Signup, "POST", "/signup", body)
	require.Equal(t, http.StatusCreated, w.Code, "signup response: %s", w.Body.String())
}

func (e *testEnv) login(t *testing.T, loginID, password string) *http.Cookie {
	t.Helper()
	body := `{"login_id":"` + loginID + `","password":"` + password + `"}`
	w := do(e.auth.Login, "POST", "/login", body)
	require.Equal(t, http.StatusOK, w.Code, "login response: %s", w.Body.String())

	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
