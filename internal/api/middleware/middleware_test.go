package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func okHandler(t *testing.T, gotUser *uuid.UUID) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotUser != nil {
			id, ok := GetUserID(r)
			require.True(t, ok)
			*gotUser = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentity(t *testing.T) {
	userID := uuid.New()

	t.Run("valid header", func(t *testing.T) {
		var got uuid.UUID
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", userID.String())
		rec := httptest.NewRecorder()

		Identity(okHandler(t, &got)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, got)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		Identity(okHandler(t, nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing user identity"}`, rec.Body.String())
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", "not-a-uuid")
		rec := httptest.NewRecorder()

		Identity(okHandler(t, nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	guard := APIKey(string(hash))

	t.Run("header key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "letmein")
		rec := httptest.NewRecorder()

		guard(okHandler(t, nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("form key", func(t *testing.T) {
		form := url.Values{"apikey": {"letmein"}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()

		guard(okHandler(t, nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()

		guard(okHandler(t, nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		guard(okHandler(t, nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty hash disables check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		APIKey("")(okHandler(t, nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// countingCache counts requests per key in memory.
type countingCache struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (c *countingCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (c *countingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (c *countingCache) Delete(context.Context, string) error { return nil }

func (c *countingCache) Ping(context.Context) error { return nil }

func (c *countingCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[key]++
	return c.counts[key], nil
}

func limitedRequest(userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/solve", nil)
	return req.WithContext(SetUserID(req.Context(), userID))
}

func TestRateLimit(t *testing.T) {
	userID := uuid.New()
	rl := NewRateLimit(&countingCache{}, 2)
	h := rl.Limit(okHandler(t, nil))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, limitedRequest(userID))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest(userID))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different user has their own window.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest(uuid.New()))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	rl := NewRateLimit(&countingCache{err: errors.New("redis down")}, 2)
	h := rl.Limit(okHandler(t, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest(uuid.New()))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_NoIdentityPassesThrough(t *testing.T) {
	rl := NewRateLimit(&countingCache{}, 2)
	h := rl.Limit(okHandler(t, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
