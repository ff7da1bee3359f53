package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/okravets/zapytai/internal/config"
)

// OpenAIClient implements Client over the OpenAI chat-completions API
type OpenAIClient struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// NewOpenAI creates a client from config
func NewOpenAI(cfg config.OpenAIConfig) *OpenAIClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClient(option.WithAPIKey(cfg.Token)),
		model:   openai.ChatModel(cfg.Model),
		timeout: timeout,
	}
}

// Complete sends the system prompt and transcript as one chat-completion
// request. Every failure mode collapses to ErrCompletion.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, turn := range turns {
		switch turn.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrCompletion)
	}

	return resp.Choices[0].Message.Content, nil
}
