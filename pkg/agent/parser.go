package agent

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	finishPattern = regexp.MustCompile(`<finish>\s*([\s\S]*?)</finish>`)
	codePattern   = regexp.MustCompile("(?:<code>\\s*([\\s\\S]*?)</code>|```(?:python|py)?\\s*\\n([\\s\\S]*?)```)")
)

// ResponseKind classifies one assistant turn
type ResponseKind int

const (
	// ResponsePlain is a turn with neither a finish nor a code block
	ResponsePlain ResponseKind = iota
	// ResponseFinish carries a <finish> block
	ResponseFinish
	// ResponseCode carries a code block to execute
	ResponseCode
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseFinish:
		return "finish"
	case ResponseCode:
		return "code"
	default:
		return "plain"
	}
}

// ParsedResponse is the parser's view of one assistant turn
type ParsedResponse struct {
	Kind ResponseKind
	// Body is the trimmed finish or code content, or the raw text for plain turns
	Body string
	// Thinking is the content of the configured thinking tag, if present
	Thinking    string
	HasThinking bool
}

// Parser extracts finish blocks, code blocks and thinking from model output
type Parser struct {
	thinking *regexp.Regexp
}

// NewParser creates a parser. thinkingTag may be empty.
func NewParser(thinkingTag string) *Parser {
	p := &Parser{}
	if tag := strings.TrimSpace(thinkingTag); tag != "" {
		quoted := regexp.QuoteMeta(tag)
		p.thinking = regexp.MustCompile(fmt.Sprintf(`<%s>\s*([\s\S]*?)</%s>`, quoted, quoted))
	}
	return p
}

// Parse classifies text. A finish block wins over code; among code blocks
// the one that starts first wins.
func (p *Parser) Parse(text string) ParsedResponse {
	resp := ParsedResponse{Kind: ResponsePlain, Body: text}
	resp.Thinking, resp.HasThinking = p.Thinking(text)

	if body, ok := ExtractFinish(text); ok {
		resp.Kind = ResponseFinish
		resp.Body = body
		return resp
	}
	if code, ok := ExtractCode(text); ok {
		resp.Kind = ResponseCode
		resp.Body = code
	}
	return resp
}

// Thinking returns the content of the thinking tag
func (p *Parser) Thinking(text string) (string, bool) {
	if p.thinking == nil {
		return "", false
	}
	match := p.thinking.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// ExtractFinish returns the trimmed content of the first <finish> block
func ExtractFinish(text string) (string, bool) {
	match := finishPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// ExtractCode returns the trimmed content of the first <code> or fenced
// python block
func ExtractCode(text string) (string, bool) {
	match := codePattern.FindStringSubmatchIndex(text)
	if match == nil {
		return "", false
	}
	for _, group := range []int{1, 2} {
		start, end := match[2*group], match[2*group+1]
		if start >= 0 {
			return strings.TrimSpace(text[start:end]), true
		}
	}
	return "", true
}
