package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"todo-service/models"
	"todo-service/session"
	"todo-service/validation"
)

// AuthHandler handles registration, login and session teardown
type AuthHandler struct {
	db         *sqlx.DB
	sessions   *session.Store
	bcryptCost int
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *sqlx.DB, sessions *session.Store, bcryptCost int) *AuthHandler {
	return &AuthHandler{
		db:         db,
		sessions:   sessions,
		bcryptCost: bcryptCost,
	}
}

// currentSession resolves the request's authenticated session. On protected
// routes the auth gate already looked the session up and stashed its snapshot
// in the request auth claims, so that is tried first; the store lookup is the
// fallback for anything the gate did not cover.
func currentSession(ctx context.Context, r *http.Request, sessions *session.Store) (*models.Session, error) {
	if auth := httpserver.GetRequestAuth(ctx); auth != nil {
		if claims, ok := auth.Claims.(map[string]interface{}); ok {
			if sess, ok := sessionFromClaims(claims); ok {
				return sess, nil
			}
		}
	}
	return session.FromRequest(r, sessions)
}

// sessionFromClaims rebuilds the session snapshot the auth gate placed in the
// request auth claims. Reports false on anything malformed so the caller
// falls back to the store.
func sessionFromClaims(claims map[string]interface{}) (*models.Session, bool) {
	if claims == nil {
		return nil, false
	}
	sessionID, _ := claims["session_id"].(string)
	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	userID, ok := claims["user_id"].(int)
	if !ok || sessionID == "" || username == "" {
		return nil, false
	}
	return &models.Session{
		SessionID:     sessionID,
		Authenticated: true,
		UserID:        userID,
		Email:         email,
		Username:      username,
	}, true
}

func setSessionCookie(w http.ResponseWriter, sessionID string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,  // Prevent JS access for security
		Secure:   false, // True in prod HTTPS
		MaxAge:   maxAge,
	})
}

// Signup handles POST /signup - register a new identity
func (h *AuthHandler) Signup(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validation.UserData(req.Name, req.Email, req.Username, req.Password); err != nil {
		logRequest(ctx, "error", "Signup validation failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	logRequest(ctx, "info", "Creating user", zap.String("username", req.Username), zap.String("email", req.Email))

	// Uniqueness checks are case-sensitive exact matches, email first
	var existingID int
	err := h.db.QueryRow("SELECT id FROM users WHERE email = ?", req.Email).Scan(&existingID)
	if err == nil {
		logRequest(ctx, "info", "Duplicate email", zap.String("email", req.Email))
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(errs.NewValidationError("Email already exists"))
		return
	}
	if err != sql.ErrNoRows {
		logRequest(ctx, "error", "Failed to check email", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	err = h.db.QueryRow("SELECT id FROM users WHERE username = ?", req.Username).Scan(&existingID)
	if err == nil {
		logRequest(ctx, "info", "Duplicate username", zap.String("username", req.Username))
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(errs.NewValidationError("Username already exists"))
		return
	}
	if err != sql.ErrNoRows {
		logRequest(ctx, "error", "Failed to check username", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		logRequest(ctx, "error", "Password hashing failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to process password"))
		return
	}

	now := time.Now()
	result, err := h.db.Exec("INSERT INTO users (name, email, username, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		req.Name, req.Email, req.Username, string(hashedPassword), now, now)
	if err != nil {
		logRequest(ctx, "error", "Failed to create user", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create user"))
		return
	}

	id, _ := result.LastInsertId()
	logRequest(ctx, "info", "User created successfully", zap.Int64("user_id", id))

	user := models.User{
		ID:        int(id),
		Name:      req.Name,
		Email:     req.Email,
		Username:  req.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login handles POST /login - establishes a cookie session.
// The login id is looked up by email when it parses as an email address and
// by username otherwise; exactly one strategy per call, no fallback.
func (h *AuthHandler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid login body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validation.LoginData(req.LoginID, req.Password); err != nil {
		logRequest(ctx, "error", "Login validation failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	query := "SELECT id, name, email, username, password FROM users WHERE username = ?"
	if validation.IsEmail(req.LoginID) {
		query = "SELECT id, name, email, username, password FROM users WHERE email = ?"
	}

	var user models.User
	err := h.db.QueryRow(query, req.LoginID).
		Scan(&user.ID, &user.Name, &user.Email, &user.Username, &user.Password)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "User not found", zap.String("login_id", req.LoginID))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("User not found, please signup"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "DB error", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Server error"))
		return
	}

	// Constant-time compare; the response never says which part was wrong
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logRequest(ctx, "info", "Invalid password", zap.String("login_id", req.LoginID))
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid credentials"))
		return
	}

	sess, err := h.sessions.Create(user)
	if err != nil {
		logRequest(ctx, "error", "Failed to create session", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create session"))
		return
	}

	setSessionCookie(w, sess.SessionID, 86400)

	logRequest(ctx, "info", "Login successful", zap.Int("user_id", user.ID))

	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Logged in",
		"user": models.MeResponse{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
		},
	})
}

// Me handles GET /me - returns the current session's identity snapshot
func (h *AuthHandler) Me(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, err := currentSession(ctx, r, h.sessions)
	if err == session.ErrUnauthenticated {
		logRequest(ctx, "error", "No valid session")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Session lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Session error"))
		return
	}

	logRequest(ctx, "info", "Me retrieved", zap.Int("user_id", sess.UserID))

	json.NewEncoder(w).Encode(models.MeResponse{
		ID:       sess.UserID,
		Email:    sess.Email,
		Username: sess.Username,
	})
}

// Logout handles POST /logout - destroys the current session. Subsequent
// requests with the same cookie fail the auth gate.
func (h *AuthHandler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, err := currentSession(ctx, r, h.sessions)
	if err == session.ErrUnauthenticated {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Session lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Session error"))
		return
	}

	if err := h.sessions.Delete(sess.SessionID); err != nil {
		logRequest(ctx, "error", "Failed to destroy session", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Logout unsuccessful"))
		return
	}

	setSessionCookie(w, "", -1)

	logRequest(ctx, "info", "Logout successful", zap.String("username", sess.Username))

	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}

// LogoutAll handles POST /logout-all - destroys every session belonging to
// the caller's username, the current one included, and reports the count.
func (h *AuthHandler) LogoutAll(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, err := currentSession(ctx, r, h.sessions)
	if err == session.ErrUnauthenticated {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Session lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Session error"))
		return
	}

	count, err := h.sessions.DeleteByUsername(sess.Username)
	if err != nil {
		logRequest(ctx, "error", "Failed to purge sessions", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	setSessionCookie(w, "", -1)

	logRequest(ctx, "info", "Logged out from all devices",
		zap.String("username", sess.Username), zap.Int64("sessions_removed", count))

	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":          "Logged out from all devices",
		"sessions_removed": count,
	})
}
