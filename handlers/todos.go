package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"

	"todo-service/models"
	"todo-service/session"
	"todo-service/validation"
)

// todoPageSize is the fixed window for GET /todos pagination.
const todoPageSize = 5

var (
	errTodoNotFound = errors.New("todo not found")
	errForbidden    = errors.New("todo owned by another user")
)

// TodoHandler handles todo CRUD; every operation is scoped to the owner
// recorded on the item at creation.
type TodoHandler struct {
	db       *sqlx.DB
	cache    cache.Cache
	sessions *session.Store
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(db *sqlx.DB, c cache.Cache, sessions *session.Store) *TodoHandler {
	return &TodoHandler{
		db:       db,
		cache:    c,
		sessions: sessions,
	}
}

// requireSession resolves the caller's session, writing the error response
// itself when there is none. The auth gate already rejected unauthenticated
// requests; this recovers the identity snapshot for ownership checks.
func (h *TodoHandler) requireSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sess, err := currentSession(ctx, r, h.sessions)
	if err == session.ErrUnauthenticated {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return nil, false
	}
	if err != nil {
		logRequest(ctx, "error", "Session lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Session error"))
		return nil, false
	}
	return sess, true
}

// fetchOwnedTodo is the single ownership check shared by update and delete:
// absent items and foreign items are distinct failures (errTodoNotFound vs
// errForbidden).
func (h *TodoHandler) fetchOwnedTodo(id int, username string) (*models.Todo, error) {
	var todo models.Todo
	err := h.db.QueryRow("SELECT id, todo, username, created_at FROM todos WHERE id = ?", id).
		Scan(&todo.ID, &todo.Todo, &todo.Username, &todo.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errTodoNotFound
	}
	if err != nil {
		return nil, err
	}
	if todo.Username != username {
		return nil, errForbidden
	}
	return &todo, nil
}

func (h *TodoHandler) firstPageCacheKey(username string) string {
	return "todos:" + username + ":0"
}

// Create handles POST /todos - create a todo owned by the session's user.
// Rate limiting happens in the route middleware, not here.
func (h *TodoHandler) Create(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	var req models.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validation.TodoText(req.Todo); err != nil {
		logRequest(ctx, "error", "Todo validation failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	now := time.Now()
	result, err := h.db.Exec("INSERT INTO todos (todo, username, created_at) VALUES (?, ?, ?)",
		req.Todo, sess.Username, now)
	if err != nil {
		logRequest(ctx, "error", "Failed to create todo", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create todo"))
		return
	}

	id, _ := result.LastInsertId()

	// Clear first-page list cache
	h.cache.Delete(h.firstPageCacheKey(sess.Username))

	logRequest(ctx, "info", "Todo created successfully",
		zap.Int64("todo_id", id), zap.String("username", sess.Username))

	todo := models.Todo{
		ID:        int(id),
		Todo:      req.Todo,
		Username:  sess.Username,
		CreatedAt: now,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Todo created successfully",
		"data":    todo,
	})
}

// List handles GET /todos?skip=N - a page of the caller's todos, oldest
// first. Empty pages still answer 200; the message distinguishes an empty
// list from running past the end, nothing more.
func (h *TodoHandler) List(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	skip := 0
	if s := r.URL.Query().Get("skip"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			skip = n
		}
	}

	// Only the first page is cached; deeper pages are rare and invalidation
	// stays a single key per user
	cacheKey := h.firstPageCacheKey(sess.Username)
	if skip == 0 {
		if cached, err := h.cache.Get(cacheKey); err == nil {
			// Stored as a string: the Redis backend JSON-encodes values on
			// Set and a []byte would come back as a base64 string
			if body, ok := cached.(string); ok {
				logRequest(ctx, "debug", "Serving todos from cache", zap.String("username", sess.Username))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
				return
			}
		}
	}

	// Explicit sort key: insertion order is not something the store promises
	rows, err := h.db.Query(
		"SELECT id, todo, username, created_at FROM todos WHERE username = ? ORDER BY created_at, id LIMIT ? OFFSET ?",
		sess.Username, todoPageSize, skip)
	if err != nil {
		logRequest(ctx, "error", "Failed to query todos", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		var todo models.Todo
		if err := rows.Scan(&todo.ID, &todo.Todo, &todo.Username, &todo.CreatedAt); err != nil {
			logRequest(ctx, "error", "Failed to scan todo", zap.Error(err))
			continue
		}
		todos = append(todos, todo)
	}

	message := "Read success"
	if len(todos) == 0 {
		if skip == 0 {
			message = "No todos found"
		} else {
			message = "No more todos"
		}
	}

	response, _ := json.Marshal(map[string]interface{}{
		"message": message,
		"data":    todos,
	})

	if skip == 0 {
		h.cache.Set(cacheKey, string(response), time.Minute)
	}

	logRequest(ctx, "info", "Todos retrieved successfully",
		zap.String("username", sess.Username), zap.Int("count", len(todos)), zap.Int("skip", skip))

	w.Header().Set("Content-Type", "application/json")
	w.Write(response)
}

// Update handles PUT /todos/{id} - overwrite a todo's text. The owner column
// never changes; the UPDATE itself re-checks ownership so a concurrent owner
// change cannot slip between the read and the write.
func (h *TodoHandler) Update(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid todo ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid todo ID"))
		return
	}

	var req models.UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validation.TodoText(req.Todo); err != nil {
		logRequest(ctx, "error", "Todo validation failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	todo, err := h.fetchOwnedTodo(id, sess.Username)
	if !h.writeOwnershipError(ctx, w, err, id, sess.Username) {
		return
	}

	result, err := h.db.Exec("UPDATE todos SET todo = ? WHERE id = ? AND username = ?",
		req.Todo, id, sess.Username)
	if err != nil {
		logRequest(ctx, "error", "Failed to update todo", zap.Error(err), zap.Int("todo_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update todo"))
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Deleted out from under us between the check and the write
		logRequest(ctx, "info", "Todo vanished before update", zap.Int("todo_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Todo not found"))
		return
	}

	h.cache.Delete(h.firstPageCacheKey(sess.Username))

	logRequest(ctx, "info", "Todo updated successfully", zap.Int("todo_id", id))

	todo.Todo = req.Todo
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Todo updated successfully",
		"data":    todo,
	})
}

// Delete handles DELETE /todos/{id} - remove a todo and return its prior
// state.
func (h *TodoHandler) Delete(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid todo ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Todo id missing"))
		return
	}

	todo, err := h.fetchOwnedTodo(id, sess.Username)
	if !h.writeOwnershipError(ctx, w, err, id, sess.Username) {
		return
	}

	result, err := h.db.Exec("DELETE FROM todos WHERE id = ? AND username = ?", id, sess.Username)
	if err != nil {
		logRequest(ctx, "error", "Failed to delete todo", zap.Error(err), zap.Int("todo_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete todo"))
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		logRequest(ctx, "info", "Todo vanished before delete", zap.Int("todo_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Todo not found"))
		return
	}

	h.cache.Delete(h.firstPageCacheKey(sess.Username))

	logRequest(ctx, "info", "Todo deleted successfully", zap.Int("todo_id", id))

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Todo deleted successfully",
		"data":    todo,
	})
}

// writeOwnershipError maps fetchOwnedTodo failures onto responses and reports
// whether the caller may proceed.
func (h *TodoHandler) writeOwnershipError(ctx context.Context, w http.ResponseWriter, err error, id int, username string) bool {
	switch err {
	case nil:
		return true
	case errTodoNotFound:
		logRequest(ctx, "info", "Todo not found", zap.Int("todo_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Todo not found"))
	case errForbidden:
		logRequest(ctx, "info", "Ownership mismatch",
			zap.Int("todo_id", id), zap.String("username", username))
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errs.NewValidationError("You are unauthorized for making this request"))
	default:
		logRequest(ctx, "error", "Failed to query todo", zap.Error(err), zap.Int("todo_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
	}
	return false
}
