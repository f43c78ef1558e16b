// Package spec defines the declarative tool schema shared by the detector,
// the validator and the dispatcher: a Configuration names one backend and
// the tools callable through it. The persisted form is a JSON document with
// top-level name, description, backend and tools keys.
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	mcpifyerrors "github.com/mcpify/mcpify/internal/errors"
)

// BackendKind discriminates how tools are executed.
type BackendKind string

const (
	KindCommandline  BackendKind = "commandline"
	KindHTTP         BackendKind = "http"
	KindPythonModule BackendKind = "python-module"
	KindExternal     BackendKind = "external"
)

// KnownKinds lists every backend kind the dispatcher can serve.
var KnownKinds = []BackendKind{KindCommandline, KindHTTP, KindPythonModule, KindExternal}

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
)

// KnownTypes lists the recognized parameter types.
var KnownTypes = []ParamType{TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray}

// Config is a complete tool schema for one project. It is immutable once
// validated; the dispatcher holds it read-only for its entire lifetime.
type Config struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Backend     Backend `json:"backend"`
	Tools       []Tool  `json:"tools"`
}

// Backend is a tagged union over backend kinds. Only the fields belonging
// to Kind are populated; the JSON form inlines them next to the "type"
// discriminator.
type Backend struct {
	Kind BackendKind

	// commandline
	Command  string
	BaseArgs []string
	WorkDir  string

	// http
	BaseURL string

	// python-module
	Module string
}

type backendJSON struct {
	Type     BackendKind `json:"type"`
	Command  string      `json:"command,omitempty"`
	BaseArgs []string    `json:"args,omitempty"`
	WorkDir  string      `json:"cwd,omitempty"`
	BaseURL  string      `json:"base_url,omitempty"`
	Module   string      `json:"module,omitempty"`
}

// MarshalJSON writes the discriminated form.
func (b Backend) MarshalJSON() ([]byte, error) {
	return json.Marshal(backendJSON{
		Type:     b.Kind,
		Command:  b.Command,
		BaseArgs: b.BaseArgs,
		WorkDir:  b.WorkDir,
		BaseURL:  b.BaseURL,
		Module:   b.Module,
	})
}

// UnmarshalJSON reads the discriminated form.
func (b *Backend) UnmarshalJSON(data []byte) error {
	var raw backendJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Kind = raw.Type
	b.Command = raw.Command
	b.BaseArgs = raw.BaseArgs
	b.WorkDir = raw.WorkDir
	b.BaseURL = raw.BaseURL
	b.Module = raw.Module
	return nil
}

// Tool is one callable operation. Exactly one invocation template is
// populated, matching the enclosing Configuration's backend kind:
// Args for commandline, Endpoint+Method for http, Function for
// python-module.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters"`

	Args     []string `json:"args,omitempty"`
	Endpoint string   `json:"endpoint,omitempty"`
	Method   string   `json:"method,omitempty"`
	Function string   `json:"function,omitempty"`
}

// Param declares one argument of a tool. Required defaults to true in the
// persisted form unless a default value is present.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any // nil when absent
}

type paramJSON struct {
	Name        string          `json:"name"`
	Type        ParamType       `json:"type"`
	Description string          `json:"description"`
	Required    *bool           `json:"required,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// MarshalJSON always writes the required flag so round-trips are stable.
func (p Param) MarshalJSON() ([]byte, error) {
	raw := paramJSON{
		Name:        p.Name,
		Type:        p.Type,
		Description: p.Description,
		Required:    &p.Required,
	}
	if p.Default != nil {
		def, err := json.Marshal(p.Default)
		if err != nil {
			return nil, err
		}
		raw.Default = def
	}
	return json.Marshal(raw)
}

// UnmarshalJSON applies the required-flag default: true when the field is
// absent, false when a default value is present.
func (p *Param) UnmarshalJSON(data []byte) error {
	var raw paramJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Type = raw.Type
	p.Description = raw.Description
	p.Default = nil
	if len(raw.Default) > 0 && !bytes.Equal(raw.Default, []byte("null")) {
		if err := json.Unmarshal(raw.Default, &p.Default); err != nil {
			return err
		}
	}
	switch {
	case raw.Required != nil:
		p.Required = *raw.Required
	case p.Default != nil:
		p.Required = false
	default:
		p.Required = true
	}
	return nil
}

// Tool lookup by name; nil if absent.
func (c *Config) Tool(name string) *Tool {
	for i := range c.Tools {
		if c.Tools[i].Name == name {
			return &c.Tools[i]
		}
	}
	return nil
}

// Param lookup by name; nil if absent.
func (t *Tool) Param(name string) *Param {
	for i := range t.Params {
		if t.Params[i].Name == name {
			return &t.Params[i]
		}
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Placeholders returns the parameter names referenced by {name} tokens in s,
// in order of appearance.
func Placeholders(s string) []string {
	matches := placeholderRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// IsPlaceholder reports whether an entire template token is a single
// placeholder, returning the referenced parameter name.
func IsPlaceholder(token string) (string, bool) {
	m := placeholderRe.FindStringSubmatch(token)
	if m != nil && m[0] == token {
		return m[1], true
	}
	return "", false
}

// TemplatePlaceholders collects every placeholder referenced by the tool's
// invocation template, across all backend kinds.
func (t *Tool) TemplatePlaceholders() []string {
	var names []string
	for _, tok := range t.Args {
		names = append(names, Placeholders(tok)...)
	}
	names = append(names, Placeholders(t.Endpoint)...)
	return names
}

// Parse decodes a persisted configuration document. A document that cannot
// be decoded at all is a SchemaError; semantic problems inside a decodable
// document are left to the validator.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, mcpifyerrors.NewSchemaError("", err)
	}
	return &cfg, nil
}

// Load reads and decodes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mcpifyerrors.NewSchemaError(path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, mcpifyerrors.NewSchemaError(path, fmt.Errorf("parse: %w", err))
	}
	return &cfg, nil
}

// Encode renders the persisted form. Field order is fixed by the struct
// definitions, so identical configurations encode byte-identically.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the persisted form to path.
func (c *Config) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
