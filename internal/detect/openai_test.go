package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/internal/spec"
)

func defaultDetect(t *testing.T) config.Detect {
	t.Helper()
	return config.Default().Detect
}

func TestParseEnhancedTools(t *testing.T) {
	content := "Here are the improved specs:\n```json\n" +
		`[{"name": "add", "description": "Add two integers", ` +
		`"parameters": [{"name": "a", "description": "Left operand"}]}]` +
		"\n```\nLet me know if you need more."

	tools, err := parseEnhancedTools(content)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "add", tools[0].Name)
	assert.Equal(t, "Left operand", tools[0].Parameters[0].Description)
}

func TestParseEnhancedToolsRejectsProse(t *testing.T) {
	_, err := parseEnhancedTools("I could not analyze this project.")
	require.Error(t, err)

	_, err = parseEnhancedTools("[not json]")
	require.Error(t, err)
}

func TestMergeEnhancementsKeepsStructure(t *testing.T) {
	cfg := &spec.Config{
		Name:    "calc",
		Backend: spec.Backend{Kind: spec.KindPythonModule, Module: "calc"},
		Tools: []spec.Tool{{
			Name:        "add",
			Description: "Add",
			Function:    "add",
			Params: []spec.Param{
				{Name: "a", Type: spec.TypeInteger, Required: true},
				{Name: "b", Type: spec.TypeInteger, Required: true},
			},
		}},
	}

	enhanced, err := parseEnhancedTools(`[
		{"name": "add", "description": "Add two integers together",
		 "parameters": [
			{"name": "a", "description": "Left operand"},
			{"name": "renamed", "description": "Ignored: no such parameter"}
		 ]},
		{"name": "ghost", "description": "Ignored: no such tool"}
	]`)
	require.NoError(t, err)

	mergeEnhancements(cfg, enhanced)

	add := cfg.Tool("add")
	assert.Equal(t, "Add two integers together", add.Description)
	assert.Equal(t, "Left operand", add.Param("a").Description)
	assert.Equal(t, "", add.Param("b").Description)
	assert.Equal(t, "add", add.Function, "invocation template is untouched")
	assert.True(t, add.Param("a").Required, "requiredness is untouched")
	assert.Len(t, cfg.Tools, 1)
}

func TestOpenAIAvailability(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	d := NewOpenAIDetector(defaultDetect(t))
	assert.False(t, d.Available())

	t.Setenv("OPENAI_API_KEY", "sk-test")
	d = NewOpenAIDetector(defaultDetect(t))
	assert.True(t, d.Available())
}

func TestRegistryOrderAndSelection(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	registry := NewRegistry(
		NewOpenAIDetector(defaultDetect(t)),
		NewStructuralDetector(defaultDetect(t)),
	)

	assert.Equal(t, []string{"openai", "structural"}, registry.Strategies())

	d, err := registry.Select("auto")
	require.NoError(t, err)
	assert.Equal(t, "structural", d.Name(), "unavailable strategies are skipped")

	_, err = registry.Select("openai")
	require.Error(t, err)

	_, err = registry.Select("seance")
	require.Error(t, err)
}
