package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

const provider = "openai"

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	log    *slog.Logger
	client *http.Client
	url    string
	apiKey string
	model  string
}

// NewClient builds a client. proxyURL is optional and routes requests
// through an HTTP proxy.
func NewClient(log *slog.Logger, baseURL, apiKey, model, proxyURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("empty base url specified")
	}
	if apiKey == "" || model == "" {
		return nil, errors.New("api key and model required")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("bad proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		log:    log,
		client: &http.Client{Timeout: timeout, Transport: transport},
		url:    baseURL,
		apiKey: apiKey,
		model:  model,
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, req core.ChatRequest) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &core.ProviderError{Provider: provider, Err: err}
	}
	defer func() {
		if e := resp.Body.Close(); e != nil {
			c.log.Debug("close body failed", "error", e)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &core.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: err}
	}

	var cr chatResponse
	decodeErr := json.Unmarshal(data, &cr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "unexpected status"
		if decodeErr == nil && cr.Error != nil {
			msg = cr.Error.Message
		}
		return "", &core.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return "", &core.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if cr.Error != nil {
		return "", &core.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New(cr.Error.Message)}
	}
	if len(cr.Choices) == 0 {
		return "", &core.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New("empty choices")}
	}

	c.log.Debug("chat completion done", "model", c.model, "took", time.Since(start))
	return cr.Choices[0].Message.Content, nil
}

// Ping checks that the endpoint is reachable. Any HTTP answer counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
