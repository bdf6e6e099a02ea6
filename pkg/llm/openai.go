package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/graphrag/pkg/types"
)

// DefaultModel is used when neither the config nor the request names one.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`
	Model   string `json:"model,omitempty" mapstructure:"model"`
}

// OpenAIClient talks to OpenAI or any OpenAI-compatible service.
type OpenAIClient struct {
	api   *openai.Client
	model string
	log   *slog.Logger
}

// NewOpenAIClient creates a client for the configured endpoint.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		api:   openai.NewClientWithConfig(apiCfg),
		model: model,
		log:   logger,
	}, nil
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message, opts *GenerateOptions) (*types.Response, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}
	req := openai.ChatCompletionRequest{
		Model:    c.modelFor(opts),
		Messages: convertMessages(messages),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", classify(err))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices: %w", types.ErrTransientUpstream)
	}

	return &types.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// ChatWithJSON implements Client.
func (c *OpenAIClient) ChatWithJSON(ctx context.Context, messages []types.Message, opts *GenerateOptions, out any) error {
	if opts == nil {
		opts = &GenerateOptions{}
	}
	jsonOpts := *opts
	jsonOpts.JSONMode = true

	resp, err := c.Chat(ctx, messages, &jsonOpts)
	if err != nil {
		return err
	}
	if err := DecodeJSON(resp.Content, out); err != nil {
		c.log.Warn("model returned unparseable JSON", "model", c.modelFor(opts), "error", err)
		return err
	}
	return nil
}

// Close implements Client.
func (c *OpenAIClient) Close() error { return nil }

func (c *OpenAIClient) modelFor(opts *GenerateOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return c.model
}

func convertMessages(messages []types.Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		var role string
		switch m.Role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		converted = append(converted, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return converted
}

// classify maps provider failures onto the shared error taxonomy. Rate limits
// and 5xx responses are retryable.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", types.ErrTransientUpstream, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	// Transport-level failures are worth retrying.
	return fmt.Errorf("%w: %v", types.ErrTransientUpstream, err)
}

var _ Client = (*OpenAIClient)(nil)
