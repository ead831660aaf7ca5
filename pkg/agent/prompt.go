package agent

import "strings"

// FinishMarker prefixes the return value of the finish tool. Its presence in
// execution output signals that the model called finish().
const FinishMarker = "___FINISH___:"

// DefaultSystem is the system description used when none is configured
const DefaultSystem = "You are an AI assistant that solves tasks by writing and executing Python code."

const noToolsDoc = "No tools available."

const systemPromptTemplate = `{system}

<functions>
{tools}
</functions>

<format>
To execute code, write it in a <code> block or ` + "```python" + ` block:

<code>
result = some_function(arg1, arg2)
print(result)
</code>

To return structured data directly, use a <finish> block:

<finish>
{"key": "value", "items": [1, 2, 3]}
</finish>
</format>

<rules>
- Write ONE code block per response, then STOP and wait for results
- Do NOT assume or predict output - you will see actual results after execution
- Only use functions listed above - no imports allowed
- Use print() to see values
- Variables persist between executions
- When done, either call finish(answer) in code OR use a <finish>JSON</finish> block for structured output
</rules>
`

// BuildSystemPrompt renders the system prompt for a description and the
// rendered tool documentation
func BuildSystemPrompt(system, toolDocs string) string {
	if system == "" {
		system = DefaultSystem
	}
	if strings.TrimSpace(toolDocs) == "" {
		toolDocs = noToolsDoc
	}
	return strings.NewReplacer("{system}", system, "{tools}", toolDocs).Replace(systemPromptTemplate)
}
