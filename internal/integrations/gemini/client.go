// Package gemini adapts the Gemini API to the text generator used by the
// chat pipeline.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"grocer-agent/internal/integrations/paramstore"
)

const defaultModel = "gemini-1.5-pro"

// modelsAPI is the subset of *genai.Models used by Client.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// HTTPStatusError carries the status code of a failed Gemini call.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	getter      paramstore.Getter
	tokenParam  string
	model       string
	temperature *float32
	maxTokens   int32

	mu     sync.Mutex
	models modelsAPI
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = &t
	}
}

func WithMaxOutputTokens(n int32) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

func withModels(m modelsAPI) Option {
	return func(c *Client) {
		c.models = m
	}
}

// NewClient creates a Client. The underlying genai client is built on first
// use, once the API key resolves through getter.
func NewClient(getter paramstore.Getter, tokenParam string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	tokenParam = strings.TrimSpace(tokenParam)
	if tokenParam == "" {
		return nil, errors.New("gemini: token parameter name must not be empty")
	}
	c := &Client{getter: getter, tokenParam: tokenParam, model: defaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveModels(ctx context.Context) (modelsAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models != nil {
		return c.models, nil
	}
	key, err := paramstore.Token(ctx, c.getter, c.tokenParam)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.models = client.Models
	return c.models, nil
}

// Generate sends prompt as a single user turn and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	models, err := c.resolveModels(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     c.temperature,
		MaxOutputTokens: c.maxTokens,
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	res, err := models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &HTTPStatusError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if res == nil {
		return "", errors.New("gemini: empty response")
	}
	return res.Text(), nil
}
