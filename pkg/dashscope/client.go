// Package dashscope is a client for the DashScope OpenAI-compatible API,
// covering the chat completions and embeddings endpoints the pipeline uses.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL        = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultChatModel      = "qwen3-next-80b-a3b-thinking"
	defaultEmbeddingModel = "text-embedding-v3"

	// The compatible-mode endpoint throttles aggressively; stay under it.
	defaultRequestsPerSecond = 5
	defaultBurst             = 5
)

// Client performs chat completions and embeddings against DashScope.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	Embeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error)
}

// ChatCompletionRequest is the request body for POST /chat/completions.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the response from POST /chat/completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EmbeddingsRequest is the request body for POST /embeddings.
type EmbeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// EmbeddingsResponse is the response from POST /embeddings.
type EmbeddingsResponse struct {
	Data  []Embedding `json:"data"`
	Usage Usage       `json:"usage"`
}

// Embedding is a single embedding vector with its input index.
type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// APIError is a non-200 response from the API. Callers inspect StatusCode
// to decide whether the request is worth retrying.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashscope: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithChatModel overrides the default chat model.
func WithChatModel(model string) Option {
	return func(c *httpClient) {
		c.chatModel = model
	}
}

// WithEmbeddingModel overrides the default embedding model.
func WithEmbeddingModel(model string) Option {
	return func(c *httpClient) {
		c.embeddingModel = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	http           *http.Client
	limiter        *rate.Limiter
}

// NewClient creates a DashScope API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:         apiKey,
		baseURL:        defaultBaseURL,
		chatModel:      defaultChatModel,
		embeddingModel: defaultEmbeddingModel,
		limiter:        rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.chatModel
	}

	var result ChatCompletionResponse
	if err := c.post(ctx, "/chat/completions", req, &result); err != nil {
		return nil, err
	}

	zap.L().Debug("dashscope: chat completion",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
	)
	return &result, nil
}

func (c *httpClient) Embeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error) {
	if req.Model == "" {
		req.Model = c.embeddingModel
	}

	var result EmbeddingsResponse
	if err := c.post(ctx, "/embeddings", req, &result); err != nil {
		return nil, err
	}

	if len(result.Data) != len(req.Input) {
		return nil, eris.Errorf("dashscope: got %d embeddings for %d inputs", len(result.Data), len(req.Input))
	}
	return &result, nil
}

func (c *httpClient) post(ctx context.Context, path string, reqBody, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "dashscope: rate limit wait")
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return eris.Wrap(err, "dashscope: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "dashscope: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrapf(err, "dashscope: POST %s", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "dashscope: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return eris.Wrap(err, "dashscope: unmarshal response")
	}
	return nil
}
