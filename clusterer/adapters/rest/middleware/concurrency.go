package middleware

import (
	"net/http"

	"golang.org/x/sync/semaphore"
)

// Concurrency bounds the number of requests served at once. Extra
// requests get 503 without waiting.
func Concurrency(next http.HandlerFunc, limit int) http.HandlerFunc {
	if limit <= 0 {
		return next
	}

	sem := semaphore.NewWeighted(int64(limit))

	return func(w http.ResponseWriter, r *http.Request) {
		if !sem.TryAcquire(1) {
			w.Header().Set("Retry-After", "5")
			http.Error(w, "too many concurrent requests", http.StatusServiceUnavailable)
			return
		}
		defer sem.Release(1)
		next(w, r)
	}
}
