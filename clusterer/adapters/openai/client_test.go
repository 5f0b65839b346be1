package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type roundTrip func(*http.Request) (*http.Response, error)

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req)
}

func newTestClient(t *testing.T, rt roundTrip) *Client {
	t.Helper()
	c, err := NewClient(newTestLogger(), "https://api.test/v1/chat/completions", "sk-test", "gpt-4o-mini", "", time.Second)
	require.NoError(t, err)
	c.client.Transport = rt
	return c
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(newTestLogger(), "", "k", "m", "", time.Second)
	require.Error(t, err)

	_, err = NewClient(newTestLogger(), "https://api.test", "", "m", "", time.Second)
	require.Error(t, err)

	_, err = NewClient(newTestLogger(), "https://api.test", "k", "m", "://bad", time.Second)
	require.Error(t, err)

	c, err := NewClient(newTestLogger(), "https://api.test", "k", "m", "http://proxy.local:3128", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, c.client.Transport)
}

func TestComplete_Success(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "кластеризуй", body.Messages[1].Content)
		assert.InDelta(t, 0.3, body.Temperature, 1e-9)
		require.NotNil(t, body.ResponseFormat)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)

		return response(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"{\"clusters\":[]}"}}]}`), nil
	})

	out, err := c.Complete(context.Background(), core.ChatRequest{
		System:      "ты эксперт",
		User:        "кластеризуй",
		Temperature: 0.3,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"clusters":[]}`, out)
}

func TestComplete_PlainFormat(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		assert.NotContains(t, string(raw), "response_format")
		return response(http.StatusOK, `{"choices":[{"message":{"content":"[]"}}]}`), nil
	})

	out, err := c.Complete(context.Background(), core.ChatRequest{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestComplete_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		rt     roundTrip
		status int
		msg    string
	}{
		{
			name: "transport",
			rt: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			msg: "connection refused",
		},
		{
			name: "status with error payload",
			rt: func(req *http.Request) (*http.Response, error) {
				return response(http.StatusTooManyRequests, `{"error":{"message":"rate limit"}}`), nil
			},
			status: http.StatusTooManyRequests,
			msg:    "rate limit",
		},
		{
			name: "status without payload",
			rt: func(req *http.Request) (*http.Response, error) {
				return response(http.StatusBadGateway, `<html>`), nil
			},
			status: http.StatusBadGateway,
			msg:    "unexpected status",
		},
		{
			name: "broken json",
			rt: func(req *http.Request) (*http.Response, error) {
				return response(http.StatusOK, `{"choices":`), nil
			},
			status: http.StatusOK,
		},
		{
			name: "error in ok payload",
			rt: func(req *http.Request) (*http.Response, error) {
				return response(http.StatusOK, `{"error":{"message":"model overloaded"}}`), nil
			},
			status: http.StatusOK,
			msg:    "model overloaded",
		},
		{
			name: "no choices",
			rt: func(req *http.Request) (*http.Response, error) {
				return response(http.StatusOK, `{"choices":[]}`), nil
			},
			status: http.StatusOK,
			msg:    "empty choices",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.rt)

			_, err := c.Complete(context.Background(), core.ChatRequest{User: "x"})
			require.Error(t, err)
			require.ErrorIs(t, err, core.ErrExternalService)

			var pe *core.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "openai", pe.Provider)
			assert.Equal(t, tc.status, pe.StatusCode)
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodHead, req.Method)
		return response(http.StatusMethodNotAllowed, ""), nil
	})
	require.NoError(t, c.Ping(context.Background()))

	c = newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("no route")
	})
	require.Error(t, c.Ping(context.Background()))
}
