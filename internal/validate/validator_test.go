package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpify/mcpify/internal/spec"
)

func validCommandlineConfig() *spec.Config {
	return &spec.Config{
		Name:        "echo-tool",
		Description: "Echo wrapper",
		Backend: spec.Backend{
			Kind:     spec.KindCommandline,
			Command:  "python3",
			BaseArgs: []string{"cli.py"},
		},
		Tools: []spec.Tool{{
			Name:        "echo",
			Description: "Echo a message",
			Args:        []string{"--echo", "{message}"},
			Params: []spec.Param{
				{Name: "message", Type: spec.TypeString, Required: true},
			},
		}},
	}
}

func TestValidConfig(t *testing.T) {
	report := Validate(validCommandlineConfig())
	assert.True(t, report.Valid)
	assert.Empty(t, report.Diagnostics)
}

func TestUnknownBackendKind(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Backend.Kind = "grpc"

	report := Validate(cfg)
	assert.False(t, report.Valid)
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, "backend", report.Errors()[0].Location)
}

func TestBackendKindFields(t *testing.T) {
	tests := []struct {
		name    string
		backend spec.Backend
	}{
		{"commandline without command", spec.Backend{Kind: spec.KindCommandline}},
		{"http without base_url", spec.Backend{Kind: spec.KindHTTP}},
		{"python-module without module", spec.Backend{Kind: spec.KindPythonModule}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &spec.Config{Name: "t", Backend: tt.backend}
			report := Validate(cfg)
			assert.False(t, report.Valid)
		})
	}
}

func TestDuplicateToolNames(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools = append(cfg.Tools, cfg.Tools[0])

	report := Validate(cfg)
	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Errors())
	assert.Equal(t, "tools[1]", report.Errors()[0].Location)
	assert.Contains(t, report.Errors()[0].Message, "duplicates")
}

func TestToolNameRules(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Name = "has space"
	assert.False(t, Validate(cfg).Valid)

	cfg.Tools[0].Name = ""
	assert.False(t, Validate(cfg).Valid)

	cfg.Tools[0].Name = "dash-and_underscore"
	assert.True(t, Validate(cfg).Valid)
}

func TestUnresolvedPlaceholder(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Args = []string{"--echo", "{text}"}

	report := Validate(cfg)
	assert.False(t, report.Valid)
	// the stale placeholder and the now-unreferenced required param
	assert.Len(t, report.Errors(), 2)
}

func TestRequiredParamMustBeReferenced(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Params = append(cfg.Tools[0].Params,
		spec.Param{Name: "count", Type: spec.TypeInteger, Required: true})

	report := Validate(cfg)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors()[0].Message, "not referenced")
}

func TestOptionalUnreferencedWarns(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Params = append(cfg.Tools[0].Params,
		spec.Param{Name: "verbose", Type: spec.TypeBoolean, Required: false, Default: false})

	report := Validate(cfg)
	assert.True(t, report.Valid, "warnings do not invalidate")
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, SeverityWarning, report.Diagnostics[0].Severity)
}

func TestUnrecognizedParamType(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Params[0].Type = "tuple"

	report := Validate(cfg)
	assert.False(t, report.Valid)
}

func TestHTTPToolRules(t *testing.T) {
	cfg := &spec.Config{
		Name:    "api",
		Backend: spec.Backend{Kind: spec.KindHTTP, BaseURL: "http://localhost:8000"},
		Tools: []spec.Tool{{
			Name:     "get_user",
			Endpoint: "/users/{user_id}",
			Method:   "GET",
			Params: []spec.Param{
				{Name: "user_id", Type: spec.TypeString, Required: true},
			},
		}},
	}
	assert.True(t, Validate(cfg).Valid)

	cfg.Tools[0].Method = "FETCH"
	assert.False(t, Validate(cfg).Valid)

	cfg.Tools[0].Method = "GET"
	cfg.Tools[0].Endpoint = ""
	assert.False(t, Validate(cfg).Valid)
}

func TestPythonModuleToolRules(t *testing.T) {
	cfg := &spec.Config{
		Name:    "lib",
		Backend: spec.Backend{Kind: spec.KindPythonModule, Module: "mylib"},
		Tools: []spec.Tool{{
			Name:     "add",
			Function: "add",
			Params: []spec.Param{
				{Name: "a", Type: spec.TypeInteger, Required: true},
				{Name: "b", Type: spec.TypeInteger, Required: true},
			},
		}},
	}
	assert.True(t, Validate(cfg).Valid, "python-module params pass by name, no template needed")

	cfg.Tools[0].Function = ""
	assert.False(t, Validate(cfg).Valid)
}

func TestCrossKindTemplateRejected(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Endpoint = "/echo"

	report := Validate(cfg)
	assert.False(t, report.Valid)
}

func TestValidateIdempotent(t *testing.T) {
	cfg := validCommandlineConfig()
	cfg.Tools[0].Args = []string{"--echo", "{text}"}
	cfg.Tools = append(cfg.Tools, spec.Tool{Name: "echo", Args: []string{"x"}})

	first := Validate(cfg)
	second := Validate(cfg)
	assert.Equal(t, first, second)
}
