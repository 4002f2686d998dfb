package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/skyanchor/skyanchor/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// Identity extracts the caller's user ID from the X-User-ID header set by
// the upstream auth gateway. Registration, login, and token verification
// are owned there; this service only needs the resolved identity.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			response.Error(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "invalid user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), id)))
	})
}

// APIKey guards the solver service with a single bcrypt-hashed key. The
// key arrives in the X-API-Key header, or as the apikey form field on
// multipart uploads. An empty configured hash disables the check.
func APIKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if keyHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.FormValue("apikey")
			}
			if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
				response.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
