package agent

import "fmt"

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
	CallID  string `json:"call_id,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

const (
	// DefaultModel is the model used when none is configured
	DefaultModel = "llama-3.3-70b-versatile"
	// DefaultMaxIterations bounds the number of LLM calls per run
	DefaultMaxIterations = 10
	// DefaultTemperature is the sampling temperature used when none is configured
	DefaultTemperature = 0.7
	// DefaultMaxTokens is the completion budget used when none is configured
	DefaultMaxTokens = 4096
)

// Config configures agent behavior. It is a value type: the With* methods
// return modified copies and leave the receiver untouched.
type Config struct {
	Model         string   `json:"model" mapstructure:"model"`
	MaxIterations int      `json:"max_iterations" mapstructure:"max_iterations"`
	Temperature   *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens     *int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	System        string   `json:"system,omitempty" mapstructure:"system"`
	ThinkingTag   string   `json:"thinking_tag,omitempty" mapstructure:"thinking_tag"`
}

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	temperature := DefaultTemperature
	maxTokens := DefaultMaxTokens
	return Config{
		Model:         DefaultModel,
		MaxIterations: DefaultMaxIterations,
		Temperature:   &temperature,
		MaxTokens:     &maxTokens,
	}
}

func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

func (c Config) WithMaxIterations(n int) Config {
	c.MaxIterations = n
	return c
}

func (c Config) WithTemperature(t float64) Config {
	c.Temperature = &t
	return c
}

// WithoutTemperature leaves the temperature to the provider default
func (c Config) WithoutTemperature() Config {
	c.Temperature = nil
	return c
}

func (c Config) WithMaxTokens(n int) Config {
	c.MaxTokens = &n
	return c
}

// WithoutMaxTokens leaves the completion budget to the provider default
func (c Config) WithoutMaxTokens() Config {
	c.MaxTokens = nil
	return c
}

// WithSystem sets the description placed at the top of the system prompt
func (c Config) WithSystem(system string) Config {
	c.System = system
	return c
}

// WithThinkingTag makes the agent report the content of <tag>...</tag>
// as a Thinking event
func (c Config) WithThinkingTag(tag string) Config {
	c.ThinkingTag = tag
	return c
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	return nil
}
