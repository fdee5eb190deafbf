package api

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// GenerationConfig holds the sampling parameters sent with every request
type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// DefaultGenerationConfig returns the sampling parameters used by the chat
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     models.DefaultTemperature,
		TopP:            models.DefaultTopP,
		TopK:            models.DefaultTopK,
		MaxOutputTokens: models.DefaultMaxOutputTokens,
	}
}

// generator is the subset of the genai SDK the client depends on
type generator interface {
	generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// sdkGenerator forwards to the genai Models service
type sdkGenerator struct {
	client *genai.Client
}

func (g *sdkGenerator) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (g *sdkGenerator) stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return g.client.Models.GenerateContentStream(ctx, model, contents, cfg)
}

// GeminiClient is the main client for the Gemini generative language API
type GeminiClient struct {
	gen        generator
	model      models.Model
	imageModel models.Model
	genCfg     GenerationConfig
	retry      RetryPolicy
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*GeminiClient)

// WithModel sets the default model for the client
func WithModel(model models.Model) ClientOption {
	return func(c *GeminiClient) {
		c.model = model
	}
}

// WithImageModel sets the model used by EditImage
func WithImageModel(model models.Model) ClientOption {
	return func(c *GeminiClient) {
		c.imageModel = model
	}
}

// WithGenerationConfig overrides the sampling parameters
func WithGenerationConfig(cfg GenerationConfig) ClientOption {
	return func(c *GeminiClient) {
		c.genCfg = cfg
	}
}

// WithRetryPolicy overrides the retry policy
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *GeminiClient) {
		c.retry = p
	}
}

// WithLogger sets the logger used for request and retry events
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *GeminiClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client handed to the SDK
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *GeminiClient) {
		c.httpClient = hc
	}
}

// WithBaseURL points the SDK at a different endpoint (proxies, tests)
func WithBaseURL(url string) ClientOption {
	return func(c *GeminiClient) {
		c.baseURL = url
	}
}

// withGenerator replaces the SDK backend
func withGenerator(g generator) ClientOption {
	return func(c *GeminiClient) {
		c.gen = g
	}
}

// NewClient creates a new GeminiClient authenticated with apiKey
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*GeminiClient, error) {
	client := newClient(opts...)
	if client.gen != nil {
		return client, nil
	}

	if apiKey == "" {
		return nil, apierrors.ErrNoAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client.httpClient,
	}
	if client.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: client.baseURL}
	}

	sdk, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	client.gen = &sdkGenerator{client: sdk}

	return client, nil
}

func newClient(opts ...ClientOption) *GeminiClient {
	client := &GeminiClient{
		model:      models.DefaultModel,
		imageModel: models.DefaultImageModel,
		genCfg:     DefaultGenerationConfig(),
		retry:      DefaultRetryPolicy(),
		logger:     zap.NewNop(),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close marks the client as closed. Later calls fail.
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

// SetModel sets the default model
func (c *GeminiClient) SetModel(model models.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// GetRetryPolicy returns the retry policy in use
func (c *GeminiClient) GetRetryPolicy() RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retry
}

// StartChat creates a new chat session
func (c *GeminiClient) StartChat(opts ...ChatOption) *ChatSession {
	return newChatSession(c, c.GetModel(), opts...)
}

func (c *GeminiClient) checkOpen() error {
	if c.IsClosed() {
		return fmt.Errorf("client is closed")
	}
	return nil
}

// policy returns the retry policy wired to the client logger
func (c *GeminiClient) policy(op string) RetryPolicy {
	p := c.GetRetryPolicy()
	user := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("retrying request",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if user != nil {
			user(attempt, delay, err)
		}
	}
	return p
}
