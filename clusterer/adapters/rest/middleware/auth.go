package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	userIDHeader        = "X-User-Id" // так фронтенд передаёт пользователя без токена
)

var prefixes = []string{"Bearer ", "Token "}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type userKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// identify returns the user of the request. A nil verifier trusts the
// X-User-Id header.
func identify(r *http.Request, verifier TokenVerifier) (string, bool) {
	if verifier == nil {
		id := strings.TrimSpace(r.Header.Get(userIDHeader))
		return id, id != ""
	}

	authHeader := r.Header.Get(authorizationHeader)
	for _, prefix := range prefixes {
		if !strings.HasPrefix(authHeader, prefix) {
			continue
		}
		tokenString := strings.TrimSpace(authHeader[len(prefix):])
		if tokenString == "" {
			return "", false
		}
		id, err := verifier.Verify(tokenString)
		if err != nil {
			return "", false
		}
		return id, true
	}
	return "", false
}

// Auth rejects requests without a valid user.
func Auth(next http.HandlerFunc, verifier TokenVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identify(r, verifier)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(WithUserID(r.Context(), id)))
	}
}

// Identify attaches the user when one is present and lets anonymous
// requests through.
func Identify(next http.HandlerFunc, verifier TokenVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id, ok := identify(r, verifier); ok {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next(w, r)
	}
}
