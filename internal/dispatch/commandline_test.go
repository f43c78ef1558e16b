package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpify/mcpify/internal/spec"
)

func TestRenderTemplate(t *testing.T) {
	tool := &spec.Tool{
		Name: "send",
		Args: []string{"send", "--echo", "{message}", "--count", "{count}", "--loud", "{loud}"},
	}

	tests := []struct {
		name   string
		values map[string]any
		want   []string
	}{
		{
			name:   "all values present",
			values: map[string]any{"message": "hi", "count": int64(3), "loud": true},
			want:   []string{"send", "--echo", "hi", "--count", "3", "--loud"},
		},
		{
			name:   "false boolean drops its flag",
			values: map[string]any{"message": "hi", "count": int64(3), "loud": false},
			want:   []string{"send", "--echo", "hi", "--count", "3"},
		},
		{
			name:   "missing optional drops flag and placeholder",
			values: map[string]any{"message": "hi"},
			want:   []string{"send", "--echo", "hi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTemplate(tool, tt.values))
		})
	}
}

func TestRenderTemplatePositional(t *testing.T) {
	tool := &spec.Tool{Name: "add", Args: []string{"add", "{a}", "{b}"}}
	argv := renderTemplate(tool, map[string]any{"a": int64(1), "b": int64(2)})
	assert.Equal(t, []string{"add", "1", "2"}, argv)
}

func TestRenderTemplateInlinePlaceholder(t *testing.T) {
	tool := &spec.Tool{Name: "q", Args: []string{"--query", "name={name}"}}
	argv := renderTemplate(tool, map[string]any{"name": "ada"})
	assert.Equal(t, []string{"--query", "name=ada"}, argv)
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     spec.ParamType
		raw     any
		want    any
		wantErr bool
	}{
		{"string passthrough", spec.TypeString, "hi", "hi", false},
		{"string from number", spec.TypeString, float64(7), "7", false},
		{"string from bool", spec.TypeString, true, "true", false},
		{"string rejects array", spec.TypeString, []any{"x"}, nil, true},

		{"integer from float64", spec.TypeInteger, float64(42), int64(42), false},
		{"integer rejects fraction", spec.TypeInteger, 4.5, nil, true},
		{"integer from string", spec.TypeInteger, "12", int64(12), false},
		{"integer rejects word", spec.TypeInteger, "twelve", nil, true},
		{"integer rejects bool", spec.TypeInteger, true, nil, true},

		{"number from float64", spec.TypeNumber, 2.5, 2.5, false},
		{"number from int64", spec.TypeNumber, int64(3), float64(3), false},
		{"number from string", spec.TypeNumber, "2.5", 2.5, false},

		{"boolean passthrough", spec.TypeBoolean, true, true, false},
		{"boolean from string", spec.TypeBoolean, "false", false, false},
		{"boolean rejects yes", spec.TypeBoolean, "yes", nil, true},
		{"boolean rejects number", spec.TypeBoolean, float64(1), nil, true},

		{"array passthrough", spec.TypeArray, []any{"a", "b"}, []any{"a", "b"}, false},
		{"array rejects string", spec.TypeArray, "a,b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.typ, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "hi", formatValue("hi"))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "2.5", formatValue(2.5))
	assert.Equal(t, "3", formatValue(float64(3)))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, `["a","b"]`, formatValue([]any{"a", "b"}))
}
