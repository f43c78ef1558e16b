package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/internal/debug"
	"github.com/mcpify/mcpify/internal/spec"
)

const openaiModel = "gpt-4.1"

// OpenAIDetector layers a language model over structural analysis: the
// structural pass finds the tools, the model rewrites descriptions and
// parameter docs from project context. It only runs when an API key is
// present; any API or parse failure is returned as an error so the
// registry can fall through to plain structural detection.
type OpenAIDetector struct {
	structural *StructuralDetector
	client     *openai.Client
	model      string
}

// NewOpenAIDetector builds the AI-assisted strategy. The client reads
// OPENAI_API_KEY at construction; Available reports whether it was set.
func NewOpenAIDetector(settings config.Detect) *OpenAIDetector {
	d := &OpenAIDetector{
		structural: NewStructuralDetector(settings),
		model:      openaiModel,
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		d.client = openai.NewClient(key)
	}
	return d
}

func (d *OpenAIDetector) Name() string { return "openai" }

func (d *OpenAIDetector) Available() bool { return d.client != nil }

func (d *OpenAIDetector) Detect(ctx context.Context, root string) (*spec.Config, error) {
	cfg, err := d.structural.Detect(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(cfg.Tools) == 0 {
		return cfg, nil
	}

	prompt := d.buildPrompt(root, cfg)
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an expert at analyzing code and APIs. " +
					"Provide clear, accurate tool specifications.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: empty response")
	}

	enhanced, err := parseEnhancedTools(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai response: %w", err)
	}
	mergeEnhancements(cfg, enhanced)
	debug.LogDetect("openai: enhanced %d of %d tools\n", len(enhanced), len(cfg.Tools))
	return cfg, nil
}

// enhancedTool is the shape the model is asked to return per tool.
type enhancedTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"parameters"`
}

// parseEnhancedTools extracts the JSON array from the model output,
// tolerating prose or code fences around it.
func parseEnhancedTools(content string) ([]enhancedTool, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}
	var tools []enhancedTool
	if err := json.Unmarshal([]byte(content[start:end+1]), &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// mergeEnhancements copies improved descriptions onto matching tools.
// Only prose moves over; names, types, templates and requiredness stay
// as the structural pass detected them so the config remains executable.
func mergeEnhancements(cfg *spec.Config, enhanced []enhancedTool) {
	byName := make(map[string]enhancedTool, len(enhanced))
	for _, e := range enhanced {
		byName[e.Name] = e
	}
	for i := range cfg.Tools {
		e, ok := byName[cfg.Tools[i].Name]
		if !ok {
			continue
		}
		if e.Description != "" {
			cfg.Tools[i].Description = e.Description
		}
		for _, ep := range e.Parameters {
			if ep.Description == "" {
				continue
			}
			if p := cfg.Tools[i].Param(ep.Name); p != nil {
				p.Description = ep.Description
			}
		}
	}
}

// buildPrompt assembles project context: metadata, the detected tools,
// a README excerpt and the opening of the backing source file.
func (d *OpenAIDetector) buildPrompt(root string, cfg *spec.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", cfg.Name)
	fmt.Fprintf(&b, "Description: %s\n", cfg.Description)
	fmt.Fprintf(&b, "Backend: %s\n\n", cfg.Backend.Kind)

	if excerpt := readExcerpt(filepath.Join(root, "README.md"), 1000); excerpt != "" {
		fmt.Fprintf(&b, "README excerpt:\n%s\n\n", excerpt)
	}

	b.WriteString("Detected tools:\n")
	for _, t := range cfg.Tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		for _, p := range t.Params {
			fmt.Fprintf(&b, "  param %s (%s)\n", p.Name, p.Type)
		}
	}

	for _, source := range promptSources(cfg) {
		if excerpt := readExcerpt(filepath.Join(root, source), 2000); excerpt != "" {
			fmt.Fprintf(&b, "\nCode from %s:\n%s\n", source, excerpt)
		}
	}

	b.WriteString(`
Improve the descriptions of these tools and their parameters.
Return a JSON array in this exact format, one entry per tool,
keeping every name unchanged:
[
  {
    "name": "tool_name",
    "description": "Clear, helpful description",
    "parameters": [
      {"name": "param", "description": "Clear parameter description"}
    ]
  }
]
`)
	return b.String()
}

// promptSources lists the project files worth excerpting for the model.
func promptSources(cfg *spec.Config) []string {
	switch cfg.Backend.Kind {
	case spec.KindCommandline:
		return cfg.Backend.BaseArgs
	case spec.KindPythonModule:
		return []string{strings.ReplaceAll(cfg.Backend.Module, ".", "/") + ".py"}
	}
	return nil
}

func readExcerpt(path string, limit int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > limit {
		data = data[:limit]
	}
	return strings.TrimSpace(string(data))
}
