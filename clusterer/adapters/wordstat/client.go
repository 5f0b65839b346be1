package wordstat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

const (
	provider     = "wordstat"
	defaultLimit = 500
)

type Client struct {
	log        *slog.Logger
	client     http.Client
	collectURL string
	regionsURL string
	token      string
	limit      int
}

func NewClient(log *slog.Logger, collectURL, regionsURL, token string, limit int, timeout time.Duration) (*Client, error) {
	if collectURL == "" || regionsURL == "" {
		return nil, errors.New("empty wordstat url specified")
	}
	if token == "" {
		return nil, errors.New("empty wordstat token")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Client{
		log:        log,
		client:     http.Client{Timeout: timeout},
		collectURL: collectURL,
		regionsURL: regionsURL,
		token:      token,
		limit:      limit,
	}, nil
}

type suggestionRequest struct {
	Phrase string `json:"phrase"`
	Geo    []int  `json:"geo"`
	Limit  int    `json:"limit"`
}

type suggestionResponse struct {
	Phrases []struct {
		Phrase string `json:"phrase"`
		Shows  int    `json:"shows"`
	} `json:"phrases"`
}

func (c *Client) FetchTopPhrases(ctx context.Context, seed string, regions []int) ([]core.Phrase, error) {
	body, err := json.Marshal(suggestionRequest{Phrase: seed, Geo: regions, Limit: c.limit})
	if err != nil {
		return nil, err
	}

	var sr suggestionResponse
	if err := c.post(ctx, c.collectURL, body, true, &sr); err != nil {
		return nil, err
	}

	out := make([]core.Phrase, 0, len(sr.Phrases))
	for _, p := range sr.Phrases {
		if strings.TrimSpace(p.Phrase) == "" {
			continue
		}
		out = append(out, core.Phrase{Text: p.Phrase, Count: max(p.Shows, 0)})
	}
	c.log.Debug("wordstat suggestions fetched", "seed", seed, "phrases", len(out))
	return out, nil
}

type regionsRequest struct {
	Method string `json:"method"`
	Token  string `json:"token"`
}

type regionsResponse struct {
	Data []struct {
		RegionID   int    `json:"RegionID"`
		RegionName string `json:"RegionName"`
		ParentID   *int   `json:"ParentID"`
		RegionType string `json:"RegionType"`
	} `json:"data"`
	ErrorCode int    `json:"error_code"`
	ErrorStr  string `json:"error_str"`
}

func (c *Client) Regions(ctx context.Context) ([]core.Region, error) {
	body, err := json.Marshal(regionsRequest{Method: "GetRegions", Token: c.token})
	if err != nil {
		return nil, err
	}

	var rr regionsResponse
	if err := c.post(ctx, c.regionsURL, body, false, &rr); err != nil {
		return nil, err
	}
	// API Директа v4 отвечает 200 и кладёт ошибку в тело
	if rr.ErrorCode != 0 {
		return nil, &core.ProviderError{
			Provider: provider,
			Err:      fmt.Errorf("api error %d: %s", rr.ErrorCode, rr.ErrorStr),
		}
	}

	out := make([]core.Region, 0, len(rr.Data))
	for _, r := range rr.Data {
		region := core.Region{ID: r.RegionID, Name: r.RegionName, Type: r.RegionType}
		if r.ParentID != nil {
			region.ParentID = *r.ParentID
		}
		out = append(out, region)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, bearer bool, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &core.ProviderError{Provider: provider, Err: err}
	}
	defer func() {
		if e := resp.Body.Close(); e != nil {
			c.log.Debug("close body failed", "error", e)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		details, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &core.ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(details))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return &core.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}
