// Package server exposes a validated tool config over MCP. Each
// configured tool is registered with an input schema derived from its
// declared parameters; calls flow through the dispatcher and per-call
// failures are reported as tool errors, never as protocol errors.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpify/mcpify/internal/debug"
	"github.com/mcpify/mcpify/internal/dispatch"
	"github.com/mcpify/mcpify/internal/spec"
	"github.com/mcpify/mcpify/internal/version"
)

// Server wraps one config and its dispatcher behind the MCP protocol.
type Server struct {
	cfg        *spec.Config
	dispatcher *dispatch.Dispatcher
	server     *mcp.Server
}

// New builds the MCP server and registers every configured tool.
func New(cfg *spec.Config, dispatcher *dispatch.Dispatcher) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: version.Version,
		}, nil),
	}
	for _, tool := range cfg.Tools {
		s.register(tool)
	}
	return s
}

func (s *Server) register(tool spec.Tool) {
	name := tool.Name
	s.server.AddTool(&mcp.Tool{
		Name:        name,
		Description: tool.Description,
		InputSchema: inputSchema(tool),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.handleCall(ctx, name, req)
	})
}

func (s *Server) handleCall(ctx context.Context, name string, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := map[string]any{}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult("invalid_arguments", fmt.Sprintf("arguments are not a JSON object: %v", err)), nil
		}
	}

	result := s.dispatcher.Invoke(ctx, name, args)
	if !result.OK {
		debug.LogMCP("call %s failed: %s: %s\n", name, result.Kind, result.Message)
		return errorResult(string(result.Kind), result.Message), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: renderPayload(result.Payload)}},
	}, nil
}

func errorResult(kind, message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: kind + ": " + message}},
	}
}

// renderPayload flattens a dispatch payload to text content: strings as
// they are, everything else as indented JSON.
func renderPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// inputSchema derives the JSON schema for a tool's arguments from its
// declared parameters.
func inputSchema(tool spec.Tool) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(tool.Params))
	var required []string
	for _, p := range tool.Params {
		prop := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
		}
		if p.Type == spec.TypeArray {
			prop.Items = &jsonschema.Schema{Type: "string"}
		}
		if p.Default != nil {
			if data, err := json.Marshal(p.Default); err == nil {
				prop.Default = json.RawMessage(data)
			}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// ToolView is the CLI-facing summary of one registered tool.
type ToolView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

// ListTools reports the registered tools in configuration order, the
// same view the protocol's tools/list would return.
func (s *Server) ListTools() []ToolView {
	views := make([]ToolView, 0, len(s.cfg.Tools))
	for _, t := range s.cfg.Tools {
		view := ToolView{Name: t.Name, Description: t.Description}
		for _, p := range t.Params {
			view.Params = append(view.Params, p.Name)
		}
		views = append(views, view)
	}
	return views
}

// Run serves MCP over stdio until ctx is cancelled or the client
// disconnects. Debug output is redirected away from stdout first.
func (s *Server) Run(ctx context.Context) error {
	debug.SetMCPMode(true)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
