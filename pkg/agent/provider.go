package agent

import (
	"context"
	"fmt"
	"strings"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call. Messages carry
// the system prompt as their first entry.
type LLMRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// AuthProfile represents credentials and endpoint for an LLM provider
type AuthProfile struct {
	Provider string `json:"provider" mapstructure:"provider"` // "openai", "anthropic", "gemini", "groq"
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(ctx context.Context, profile AuthProfile) (LLMProvider, error) {
	switch strings.ToLower(profile.Provider) {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		if profile.BaseURL != "" {
			return NewOpenAICompatibleProvider("openai", profile.APIKey, profile.BaseURL), nil
		}
		return NewOpenAIProvider(profile.APIKey), nil
	case "groq":
		return NewGroqProvider(profile.APIKey), nil
	case "gemini":
		return NewGeminiProvider(ctx, profile.APIKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// systemAndTurns splits leading and interleaved system messages from the
// conversation turns, for providers that take the system prompt separately
func systemAndTurns(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	return strings.Join(system, "\n\n"), turns
}
