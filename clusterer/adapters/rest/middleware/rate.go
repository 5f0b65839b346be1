package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	maxClients = 10_000
	maxWait    = 2 * time.Second // дольше ждать токен не даём, отвечаем 429
)

func clientKey(r *http.Request) string {
	if id, ok := UserID(r.Context()); ok {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// Rate limits each client to rps requests per second. Clients are told
// apart by user id when known, by remote address otherwise.
func Rate(next http.HandlerFunc, rps int) http.HandlerFunc {
	if rps <= 0 {
		return next
	}

	limiters, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		panic(err)
	}
	var mu sync.Mutex
	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters.Get(key)
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), rps)
			limiters.Add(key, l)
		}
		return l
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), maxWait)
		defer cancel()

		if err := limiterFor(clientKey(r)).Wait(ctx); err != nil {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
