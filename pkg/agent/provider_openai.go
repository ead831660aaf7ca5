package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider implements LLMProvider for OpenAI and OpenAI-compatible endpoints
type OpenAIProvider struct {
	client openai.Client
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		name:   "openai",
	}
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible API
func NewGroqProvider(apiKey string) *OpenAIProvider {
	return NewOpenAICompatibleProvider("groq", apiKey, GroqBaseURL)
}

// NewOpenAICompatibleProvider creates a provider for any endpoint speaking
// the OpenAI chat completions API
func NewOpenAICompatibleProvider(name, apiKey, baseURL string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)),
		name:   name,
	}
}

// Provider returns the provider name
func (p *OpenAIProvider) Provider() string {
	return p.name
}

// Call makes a chat completion call
func (p *OpenAIProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(request.Messages))
	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
	}
	if request.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*request.MaxTokens))
	}
	if request.Temperature != nil {
		params.Temperature = openai.Float(*request.Temperature)
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	return &LLMResponse{
		Content: response.Choices[0].Message.Content,
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
		},
	}, nil
}
