// Package scoring talks to the external LLM scoring service that matches
// user profiles against open activities.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
	"github.com/yonghwan1106/forest-welfare/internal/observability"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 2000
)

// Client calls the scoring API over HTTP. It implements domain.ActivityScorer.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient constructs a scoring client. timeout bounds each ScoreActivities
// call end to end.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ScoreActivities sends the bounded prompt and parses the scored list out of
// the model's reply. Every failure mode, transport, non-2xx status, or a
// reply that does not parse, satisfies errors.Is(err, domain.ErrRecommendationFailed).
func (c *Client) ScoreActivities(ctx context.Context, profile domain.UserProfile, open []domain.Activity) ([]domain.ScoredActivity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() { observability.ObserveScoringDuration(time.Since(start)) }()

	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages:  []message{{Role: "user", Content: BuildPrompt(profile, open)}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrRecommendationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrRecommendationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecommendationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: scoring service returned %d: %s", domain.ErrRecommendationFailed, resp.StatusCode, data)
	}

	var payload messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRecommendationFailed, err)
	}

	var text string
	for _, block := range payload.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: no text content in response", domain.ErrInvalidScoringResponse)
	}

	return ParseScoredActivities(text)
}
