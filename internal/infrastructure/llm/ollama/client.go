package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/chat-rag/internal/core/domain"
	"github.com/kirillkom/chat-rag/internal/infrastructure/resilience"
)

// Client talks to an Ollama server's chat endpoint. It is the reasoning
// backend behind relevance grading.
type Client struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	limiter      *rate.Limiter
	executor     *resilience.Executor
}

type Options struct {
	BaseURL      string
	DefaultModel string
	// RequestsPerSecond throttles outbound calls; zero disables the limiter.
	RequestsPerSecond  float64
	RequestBurst       int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.RequestBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		defaultModel: opts.DefaultModel,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
		executor:     opts.ResilienceExecutor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Complete sends one system+user exchange and returns the assistant reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts domain.CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	request := chatRequest{
		Model:  model,
		Stream: false,
	}
	if systemPrompt != "" {
		request.Messages = append(request.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	request.Messages = append(request.Messages, chatMessage{Role: "user", Content: userPrompt})

	modelOpts := map[string]any{}
	if opts.Temperature > 0 {
		modelOpts["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		modelOpts["num_predict"] = opts.MaxTokens
	}
	if len(modelOpts) > 0 {
		request.Options = modelOpts
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("ollama rate limit wait: %w", err)
		}
	}

	var response chatResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/chat", request, &response, "chat")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama_chat", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}
