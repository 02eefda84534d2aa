// Package zeroshot calls a hosted zero-shot classification model
// (Hugging Face inference API, NLI models such as facebook/bart-large-mnli).
package zeroshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"grocer-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://router.huggingface.co/hf-inference/models"
	defaultModel   = "facebook/bart-large-mnli"
)

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template,omitempty"`
	MultiLabel         bool     `json:"multi_label"`
}

// pipelineResponse is the classic pipeline output.
type pipelineResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// labelScore is one element of the list-shaped output.
type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("zeroshot: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	getter     paramstore.Getter
	tokenParam string

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(getter paramstore.Getter, tokenParam string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("zeroshot: paramstore getter must not be nil")
	}
	tokenParam = strings.TrimSpace(tokenParam)
	if tokenParam == "" {
		return nil, errors.New("zeroshot: token parameter name must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		getter:     getter,
		tokenParam: tokenParam,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := paramstore.Token(ctx, c.getter, c.tokenParam)
	if err != nil {
		return "", fmt.Errorf("zeroshot: resolve api key: %w", err)
	}
	c.apiKey = key
	return key, nil
}

func (c *Client) modelURL() string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/" + strings.Trim(c.model, "/")
}

// Score returns one entailment score per label, in the order of labels.
// A single label is scored independently (multi-label mode) so the score is
// not trivially 1.
func (c *Client) Score(ctx context.Context, text string, labels []string, hypothesisTemplate string) ([]float64, error) {
	if len(labels) == 0 {
		return nil, errors.New("zeroshot: at least one candidate label is required")
	}
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(request{
		Inputs: text,
		Parameters: parameters{
			CandidateLabels:    labels,
			HypothesisTemplate: hypothesisTemplate,
			MultiLabel:         len(labels) == 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("zeroshot: marshal request: %w", err)
	}

	url := c.modelURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("zeroshot: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zeroshot: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("zeroshot: read response body: %w", err)
	}

	byLabel, err := decodeScores(raw)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(labels))
	for i, l := range labels {
		s, ok := byLabel[l]
		if !ok {
			return nil, fmt.Errorf("zeroshot: no score for label %q", l)
		}
		scores[i] = s
	}
	return scores, nil
}

func decodeScores(raw []byte) (map[string]float64, error) {
	trimmed := bytes.TrimSpace(raw)
	out := map[string]float64{}
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var list []labelScore
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("zeroshot: decode response: %w", err)
		}
		for _, ls := range list {
			out[ls.Label] = ls.Score
		}
		return out, nil
	}
	var p pipelineResponse
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("zeroshot: decode response: %w", err)
	}
	if len(p.Labels) != len(p.Scores) {
		return nil, errors.New("zeroshot: labels and scores differ in length")
	}
	for i, l := range p.Labels {
		out[l] = p.Scores[i]
	}
	return out, nil
}
