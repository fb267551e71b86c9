package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// Client calls an OpenAI-compatible chat completions endpoint. The same
// client serves embeddings when an embedding model is configured.
type Client struct {
	client         openai.Client
	model          string
	embeddingModel string
	logger         *slog.Logger
}

// New builds a client from cfg. The azure provider authenticates with the
// configured key or, for AuthIdentity, the default Azure credential chain.
func New(cfg *Config, logger *slog.Logger) (*Client, error) {
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}

	switch cfg.Provider {
	case ProviderAzure:
		opts = append(opts, azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion))
		if cfg.AuthType == AuthIdentity {
			cred, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("create azure credential: %w", err)
			}
			opts = append(opts, azure.WithTokenCredential(cred))
		} else {
			opts = append(opts, azure.WithAPIKey(cfg.Token))
		}
	default:
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Token != "" {
			opts = append(opts, option.WithAPIKey(cfg.Token))
		}
	}

	return &Client{
		client:         openai.NewClient(opts...),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger.With("system", "generation", "model", cfg.Model),
	}, nil
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string, s Sampling) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(s.Temperature),
	}
	if s.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug(
		"generation complete",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return text, nil
}

// Embeds reports whether an embedding model is configured.
func (c *Client) Embeds() bool {
	return c.embeddingModel != ""
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
