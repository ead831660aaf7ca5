package agent

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements LLMProvider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Call makes an API call to Anthropic Claude
func (p *AnthropicProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	system, turns := systemAndTurns(request.Messages)

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, msg := range turns {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	// The Messages API requires an explicit completion budget
	maxTokens := int64(DefaultMaxTokens)
	if request.MaxTokens != nil {
		maxTokens = int64(*request.MaxTokens)
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}
	if request.Temperature != nil {
		// Anthropic accepts 0..1
		reqParams.Temperature = anthropic.Float(min(*request.Temperature, 1))
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	return &LLMResponse{
		Content: content.String(),
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}, nil
}
