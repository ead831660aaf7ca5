package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("should use the default description and note missing tools", func(t *testing.T) {
		prompt := BuildSystemPrompt("", "")

		assert.True(t, strings.HasPrefix(prompt, DefaultSystem+"\n\n<functions>\nNo tools available.\n</functions>"))
		assert.Contains(t, prompt, "<format>")
		assert.Contains(t, prompt, "<rules>")
		assert.Contains(t, prompt, "call finish(answer) in code OR use a <finish>JSON</finish> block")
	})

	t.Run("should embed the description and tool docs", func(t *testing.T) {
		prompt := BuildSystemPrompt("You review code.", "def lint(path: str) -> list:\n    \"\"\"Lint a file\"\"\"")

		assert.True(t, strings.HasPrefix(prompt, "You review code.\n\n<functions>\ndef lint(path: str) -> list:"))
		assert.NotContains(t, prompt, "{system}")
		assert.NotContains(t, prompt, "{tools}")
	})

	t.Run("should not expand placeholders inside the description", func(t *testing.T) {
		prompt := BuildSystemPrompt("Describe {tools} literally.", "def a():\n    \"\"\"A\"\"\"")

		assert.True(t, strings.HasPrefix(prompt, "Describe {tools} literally."))
	})
}
