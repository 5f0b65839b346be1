package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockVerifier) Verify(token string) (string, error) {
	return m.verifyFn(token)
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, ok := UserID(r.Context())
	if !ok {
		id = "anonymous"
	}
	_, _ = w.Write([]byte(id))
}

func TestAuth(t *testing.T) {
	verifier := &mockVerifier{verifyFn: func(token string) (string, error) {
		if token == "good" {
			return "42", nil
		}
		return "", errors.New("bad token")
	}}
	h := Auth(echoUser, verifier)

	testCases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"bearer", "Bearer good", http.StatusOK, "42"},
		{"token prefix", "Token good", http.StatusOK, "42"},
		{"no header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, ""},
		{"empty token", "Bearer   ", http.StatusUnauthorized, ""},
		{"rejected token", "Bearer bad", http.StatusUnauthorized, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects/1/results", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tc.code, rr.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rr.Body.String())
			}
		})
	}
}

func TestAuth_HeaderFallback(t *testing.T) {
	h := Auth(echoUser, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "7")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "7", rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIdentify(t *testing.T) {
	verifier := &mockVerifier{verifyFn: func(token string) (string, error) {
		if token == "good" {
			return "42", nil
		}
		return "", errors.New("bad token")
	}}
	h := Identify(echoUser, verifier)

	req := httptest.NewRequest(http.MethodPost, "/api/cluster", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "42", rr.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/cluster", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())
}

func TestUserID(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	_, ok = UserID(WithUserID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := UserID(WithUserID(context.Background(), "42"))
	require.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestConcurrency(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	h := Concurrency(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
	}, 1)

	var wg sync.WaitGroup
	wg.Go(func() {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/cluster", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
	<-started

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/cluster", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))

	close(release)
	wg.Wait()
}

func TestConcurrency_Disabled(t *testing.T) {
	called := false
	h := Concurrency(func(w http.ResponseWriter, r *http.Request) { called = true }, 0)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestRate(t *testing.T) {
	h := Rate(func(w http.ResponseWriter, r *http.Request) {}, 1)

	request := func(ctx context.Context, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, request(context.Background(), "10.0.0.1:5000"))

	// второй запрос ждал бы секунду, но контекст истекает раньше
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, http.StatusTooManyRequests, request(ctx, "10.0.0.1:5001"))

	// у другого клиента свой лимит
	assert.Equal(t, http.StatusOK, request(context.Background(), "10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, request(WithUserID(context.Background(), "42"), "10.0.0.1:5002"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:41234"
	assert.Equal(t, "addr:192.168.1.10", clientKey(req))

	req = req.WithContext(WithUserID(req.Context(), "42"))
	assert.Equal(t, "user:42", clientKey(req))
}
