// Package ratelimit gates mutating requests per session: a fixed cooldown
// must elapse between two allowed requests from the same session id. The
// last-allowed timestamp lives in the cache (Redis in production) keyed by
// session id, so the state survives process restarts but is never coordinated
// across instances.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"todo-service/session"
)

const entryKeyPrefix = "ratelimit:"

// Limiter is a per-session minimum-interval throttle.
type Limiter struct {
	cache    cache.Cache
	cooldown time.Duration

	// injectable for tests
	now func() time.Time
}

func New(c cache.Cache, cooldown time.Duration) *Limiter {
	return &Limiter{
		cache:    c,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow reports whether a request from the given session may proceed. The
// first request for a session id always passes and records the timestamp.
// A rejected request does not touch the stored timestamp: the cooldown is
// measured from the last allowed request, not the last attempt.
//
// A side-store failure is an error, not a pass: only a genuine miss
// (cache.ErrKeyNotFound) counts as a first request.
func (l *Limiter) Allow(sessionID string) (bool, error) {
	key := entryKeyPrefix + sessionID
	now := l.now()

	cached, err := l.cache.Get(key)
	if errors.Is(err, cache.ErrKeyNotFound) {
		// First request for this session, never throttled
		return true, l.record(key, now)
	}
	if err != nil {
		return false, err
	}

	last, ok := entryTime(cached)
	if !ok {
		// Unreadable entry; treat as absent
		return true, l.record(key, now)
	}

	if now.Sub(last) < l.cooldown {
		return false, nil
	}
	return true, l.record(key, now)
}

func (l *Limiter) record(key string, now time.Time) error {
	// TTL equals the cooldown: an expired entry and a first request are the
	// same thing to Allow
	return l.cache.Set(key, strconv.FormatInt(now.UnixMilli(), 10), l.cooldown)
}

// entryTime decodes a stored timestamp. The cache returns the original type
// from the memory backend but JSON-decoded values from Redis, so accept both.
func entryTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		ms, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	case []byte:
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return time.Time{}, false
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	case int64:
		return time.UnixMilli(t), true
	case float64:
		return time.UnixMilli(int64(t)), true
	default:
		return time.Time{}, false
	}
}

// Middleware wraps a protected handler: the request only reaches next if the
// session's cooldown has elapsed. Runs after the auth gate, so the session
// cookie is present for any request that gets here.
func (l *Limiter) Middleware(next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
			return
		}

		allowed, err := l.Allow(cookie.Value)
		if err != nil {
			logger.Error("Rate limiter store failure", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error, via rate limiting"))
			return
		}
		if !allowed {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(errs.NewValidationError("Too many requests, please wait for some time."))
			return
		}

		next(ctx, w, r)
	})
}
