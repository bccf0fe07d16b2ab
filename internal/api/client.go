// Package api provides the Gemini generative-language API client.
package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/models"
)

// HTTPDoer is the part of the transport the client needs.
// tls_client.HttpClient satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Generator is the remote completion capability consumed by the controllers.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error)
}

// GeminiClientInterface is the client surface used by commands
type GeminiClientInterface interface {
	Generator
	Close()
}

// Ensure GeminiClient implements GeminiClientInterface
var _ GeminiClientInterface = (*GeminiClient)(nil)

// GeminiClient is the main client for interacting with the Gemini API
type GeminiClient struct {
	httpClient HTTPDoer
	apiKey     string
	baseURL    string
	model      models.Model
	timeout    time.Duration
	verbose    bool

	mu     sync.RWMutex
	closed bool
}

// ClientOption is a function that configures the client
type ClientOption func(*GeminiClient)

// WithModel sets the default model for the client
func WithModel(model models.Model) ClientOption {
	return func(c *GeminiClient) {
		c.model = model
	}
}

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *GeminiClient) {
		if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithTimeout sets the transport timeout used when the client builds its own HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *GeminiClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient injects the transport (used by tests)
func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *GeminiClient) {
		c.httpClient = doer
	}
}

// WithVerbose enables request logging
func WithVerbose(enabled bool) ClientOption {
	return func(c *GeminiClient) {
		c.verbose = enabled
	}
}

// NewClient creates a new GeminiClient
func NewClient(apiKey string, opts ...ClientOption) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apierrors.ErrNoAPIKey
	}

	client := &GeminiClient{
		apiKey:  apiKey,
		baseURL: models.DefaultBaseURL,
		model:   models.DefaultModel,
		timeout: 120 * time.Second,
	}

	// Apply options
	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(int(client.timeout / time.Second)),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// Close marks the client closed; later requests fail with ErrClientClosed
func (c *GeminiClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// IsClosed returns whether the client is closed
func (c *GeminiClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// GetModel returns the default model
func (c *GeminiClient) GetModel() models.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}
