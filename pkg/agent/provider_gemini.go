package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements LLMProvider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider for the Gemini API
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Provider returns the provider name
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Call makes an API call to Google Gemini
func (p *GeminiProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	system, turns := systemAndTurns(request.Messages)

	contents := make([]*genai.Content, 0, len(turns))
	for _, msg := range turns {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}

	response, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	if err != nil {
		return nil, err
	}

	result := &LLMResponse{Content: response.Text()}
	if usage := response.UsageMetadata; usage != nil {
		result.Usage = &TokenUsage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
		}
	}
	return result, nil
}
