package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ArgInfo describes one positional tool argument
type ArgInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolInfo is the static description of a tool. It is used to render
// documentation for the model and to check call arguments; it carries no
// behavior of its own.
type ToolInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Args        []ArgInfo `json:"args"`
	Returns     string    `json:"returns,omitempty"`
}

// NewTool starts a tool description
func NewTool(name, description string) ToolInfo {
	return ToolInfo{Name: name, Description: description}
}

// Arg appends a required argument
func (t ToolInfo) Arg(name, typ, description string) ToolInfo {
	t.Args = append(cloneArgs(t.Args), ArgInfo{Name: name, Type: typ, Description: description, Required: true})
	return t
}

// OptionalArg appends an optional argument
func (t ToolInfo) OptionalArg(name, typ, description string) ToolInfo {
	t.Args = append(cloneArgs(t.Args), ArgInfo{Name: name, Type: typ, Description: description})
	return t
}

// Returning sets the return type hint
func (t ToolInfo) Returning(typ string) ToolInfo {
	t.Returns = typ
	return t
}

// Validate checks that the tool and its arguments have usable names
func (t ToolInfo) Validate() error {
	if !identifierPattern.MatchString(t.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidToolName, t.Name)
	}
	seen := make(map[string]struct{}, len(t.Args))
	for _, arg := range t.Args {
		if !identifierPattern.MatchString(arg.Name) {
			return fmt.Errorf("%w: %s has invalid argument name %q", ErrInvalidToolName, t.Name, arg.Name)
		}
		if _, dup := seen[arg.Name]; dup {
			return fmt.Errorf("%w: %s declares argument %q twice", ErrInvalidToolName, t.Name, arg.Name)
		}
		seen[arg.Name] = struct{}{}
	}
	return nil
}

// ArgNames returns argument names in declaration order
func (t ToolInfo) ArgNames() []string {
	names := make([]string, len(t.Args))
	for i, arg := range t.Args {
		names[i] = arg.Name
	}
	return names
}

// Signature renders the tool as a Python function signature,
// e.g. `search(query: str, limit: int = None) -> list`
func (t ToolInfo) Signature() string {
	params := make([]string, len(t.Args))
	for i, arg := range t.Args {
		param := arg.Name
		if arg.Type != "" {
			param += ": " + arg.Type
		}
		if !arg.Required {
			param += " = None"
		}
		params[i] = param
	}

	sig := fmt.Sprintf("%s(%s)", t.Name, strings.Join(params, ", "))
	if t.Returns != "" {
		sig += " -> " + t.Returns
	}
	return sig
}

// Doc renders the tool as a documented Python stub
func (t ToolInfo) Doc() string {
	var b strings.Builder
	fmt.Fprintf(&b, "def %s:\n", t.Signature())
	fmt.Fprintf(&b, "    \"\"\"%s", t.Description)

	if len(t.Args) > 0 {
		b.WriteString("\n\n    Args:")
		for _, arg := range t.Args {
			fmt.Fprintf(&b, "\n        %s: %s", arg.Name, arg.Description)
		}
	}
	if t.Returns != "" {
		fmt.Fprintf(&b, "\n\n    Returns: %s", t.Returns)
	}

	b.WriteString("\n    \"\"\"")
	return b.String()
}

// Describe renders documentation for a list of tools, or "" for none
func Describe(tools []ToolInfo) string {
	docs := make([]string, len(tools))
	for i, tool := range tools {
		docs[i] = tool.Doc()
	}
	return strings.Join(docs, "\n\n")
}

func cloneArgs(args []ArgInfo) []ArgInfo {
	out := make([]ArgInfo, len(args), len(args)+1)
	copy(out, args)
	return out
}
