package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"tradesense-go/internal/config"
)

const systemPrompt = "Tu es TradeSense AI, un expert en trading. Réponds de manière claire, professionnelle et utile."

// fallbackReply is served when no upstream is configured or the model comes
// back empty.
const fallbackReply = "Je suis TradeSense AI, j'analyse actuellement les graphiques pour vous..."

// ClientInterface defines the interface for the trading advisor.
type ClientInterface interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Client proxies a single user message to an OpenAI-compatible
// chat-completions endpoint and returns the model's reply.
type Client struct {
	client *resty.Client
	logger *zap.Logger
	apiKey string
	model  string
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new advisor client.
func NewClient(cfg *config.Advisor, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	return &Client{
		client: client,
		logger: logger,
		apiKey: cfg.ApiKey,
		model:  cfg.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply sends the user message to the configured model. When no API key is
// configured the canned reply is returned instead of an error so the endpoint
// stays usable in development.
func (c *Client) Reply(ctx context.Context, message string) (string, error) {
	if c.apiKey == "" {
		return fallbackReply, nil
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
		Temperature: 0.3,
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completion returned status %s: %s", resp.Status(), resp.String())
	}

	if len(out.Choices) == 0 {
		c.logger.Warn("Chat completion returned no choices")
		return fallbackReply, nil
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return fallbackReply, nil
	}
	return reply, nil
}
