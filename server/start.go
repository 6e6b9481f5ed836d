package server

import (
	"context"
	"net/http"
	"os"

	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	cachepackage "todo-service/cache"
	"todo-service/config"
	"todo-service/database"
	"todo-service/handlers"
	"todo-service/ratelimit"
	"todo-service/session"
)

// sessionAuth is the auth gate for protected routes: the handler only runs if
// the request's cookie maps to an authenticated session with an identity
// snapshot.
func sessionAuth(sessions *session.Store) func(r *http.Request) (bool, httpserver.RequestAuth) {
	return func(r *http.Request) (bool, httpserver.RequestAuth) {
		sess, err := session.FromRequest(r, sessions)
		if err != nil {
			return false, httpserver.RequestAuth{}
		}

		// The full snapshot travels in the claims so handlers need no second
		// store lookup
		return true, httpserver.RequestAuth{
			Type:   "session",
			Client: sess.Username,
			Claims: map[string]interface{}{
				"session_id": sess.SessionID,
				"user_id":    sess.UserID,
				"email":      sess.Email,
				"username":   sess.Username,
			},
		}
	}
}

func StartServer() {
	// Initialize logger
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})

	logger.Info("Starting Todo Service...")

	cfg := config.Load()

	// Initialize database
	dbConn := database.InitializeDatabase(cfg)
	defer dbConn.Close()

	// Initialize cache
	cache := cachepackage.InitializeCache(cfg)
	defer cache.Close()

	sessions := session.NewStore(dbConn)
	limiter := ratelimit.New(cache, cfg.RateLimitCooldown)

	authHandler := handlers.NewAuthHandler(dbConn, sessions, cfg.BcryptCost)
	todoHandler := handlers.NewTodoHandler(dbConn, cache, sessions)

	// Create HTTP server with session authentication
	server := httpserver.New(cfg.Port, sessionAuth(sessions))

	// Register routes
	server.Register(httpserver.Route{
		Name:     "HealthCheck",
		Method:   "GET",
		Path:     "/health",
		AuthType: "none",
	}, httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "todo-service"}`))
	}))

	server.Register(httpserver.Route{
		Name:     "Signup",
		Method:   "POST",
		Path:     "/signup",
		AuthType: "none",
	}, httpserver.HandlerFunc(authHandler.Signup))

	server.Register(httpserver.Route{
		Name:     "Login",
		Method:   "POST",
		Path:     "/login",
		AuthType: "none",
	}, httpserver.HandlerFunc(authHandler.Login))

	server.Register(httpserver.Route{
		Name:     "Me",
		Method:   "GET",
		Path:     "/me",
		AuthType: "session",
	}, httpserver.HandlerFunc(authHandler.Me))

	server.Register(httpserver.Route{
		Name:     "Logout",
		Method:   "POST",
		Path:     "/logout",
		AuthType: "session",
	}, httpserver.HandlerFunc(authHandler.Logout))

	server.Register(httpserver.Route{
		Name:     "LogoutAllDevices",
		Method:   "POST",
		Path:     "/logout-all",
		AuthType: "session",
	}, httpserver.HandlerFunc(authHandler.LogoutAll))

	server.Register(httpserver.Route{
		Name:     "CreateTodo",
		Method:   "POST",
		Path:     "/todos",
		AuthType: "session",
	}, limiter.Middleware(todoHandler.Create))

	server.Register(httpserver.Route{
		Name:     "ListTodos",
		Method:   "GET",
		Path:     "/todos",
		AuthType: "session",
	}, httpserver.HandlerFunc(todoHandler.List))

	server.Register(httpserver.Route{
		Name:     "UpdateTodo",
		Method:   "PUT",
		Path:     "/todos/{id}",
		AuthType: "session",
	}, limiter.Middleware(todoHandler.Update))

	server.Register(httpserver.Route{
		Name:     "DeleteTodo",
		Method:   "DELETE",
		Path:     "/todos/{id}",
		AuthType: "session",
	}, limiter.Middleware(todoHandler.Delete))

	logger.Info("Todo Service started on port " + cfg.Port)
	logger.Info("Health check: GET /health")
	logger.Info("API endpoints: /signup /login /logout /logout-all /todos")

	// Start server
	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", zap.Error(err))
		os.Exit(1)
	}
}
