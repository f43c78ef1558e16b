package dispatch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func echoConfig() *spec.Config {
	return &spec.Config{
		Name: "echo",
		Backend: spec.Backend{
			Kind:    spec.KindCommandline,
			Command: "echo",
		},
		Tools: []spec.Tool{{
			Name: "echo",
			Args: []string{"{message}"},
			Params: []spec.Param{
				{Name: "message", Type: spec.TypeString, Required: true},
			},
		}},
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := echoConfig()
	cfg.Backend.Command = ""

	_, err := New(cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
}

func TestUnknownToolSuggestion(t *testing.T) {
	d, err := New(echoConfig(), Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "ecoh", nil)
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailUnknownTool, result.Kind)
	assert.Contains(t, result.Message, `did you mean "echo"`)
}

func TestMissingRequiredShortCircuits(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "marker")
	cfg := &spec.Config{
		Name: "toucher",
		Backend: spec.Backend{
			Kind:     spec.KindCommandline,
			Command:  "sh",
			BaseArgs: []string{"-c", "touch " + marker + " #"},
		},
		Tools: []spec.Tool{{
			Name: "touch",
			Args: []string{"{message}"},
			Params: []spec.Param{
				{Name: "message", Type: spec.TypeString, Required: true},
			},
		}},
	}
	d, err := New(cfg, Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "touch", nil)
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailMissingArgument, result.Kind)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "backend must not run when arguments are missing")
}

func TestTypeMismatchShortCircuits(t *testing.T) {
	d, err := New(echoConfig(), Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "echo", map[string]any{"message": []any{"x"}})
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailTypeMismatch, result.Kind)
}

func TestCommandlineSuccess(t *testing.T) {
	d, err := New(echoConfig(), Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "echo", map[string]any{"message": "hello"})
	require.True(t, result.OK, result.Message)
	assert.Equal(t, "hello\n", result.Payload)
}

func TestCommandlineExitCode(t *testing.T) {
	cfg := &spec.Config{
		Name: "failer",
		Backend: spec.Backend{
			Kind:     spec.KindCommandline,
			Command:  "sh",
			BaseArgs: []string{"-c", "echo out; echo err >&2; exit 3"},
		},
		Tools: []spec.Tool{{Name: "fail"}},
	}
	d, err := New(cfg, Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "fail", nil)
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailBackendError, result.Kind)
	assert.Contains(t, result.Message, "code 3")
	assert.Contains(t, result.Message, "out")
	assert.Contains(t, result.Message, "err")
}

func TestCommandlineTimeout(t *testing.T) {
	cfg := &spec.Config{
		Name: "sleeper",
		Backend: spec.Backend{
			Kind:     spec.KindCommandline,
			Command:  "sleep",
			BaseArgs: []string{"5"},
		},
		Tools: []spec.Tool{{Name: "sleep"}},
	}
	d, err := New(cfg, Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	result := d.Invoke(context.Background(), "sleep", nil)
	elapsed := time.Since(start)

	assert.False(t, result.OK)
	assert.Equal(t, errors.FailTimeout, result.Kind)
	assert.Less(t, elapsed, 3*time.Second, "process must be killed, not waited for")
}

func TestCommandlineSpawnFailure(t *testing.T) {
	cfg := &spec.Config{
		Name: "ghost",
		Backend: spec.Backend{
			Kind:    spec.KindCommandline,
			Command: "/nonexistent/binary",
		},
		Tools: []spec.Tool{{Name: "run"}},
	}
	d, err := New(cfg, Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "run", nil)
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailRuntimeError, result.Kind)
}

func TestDefaultsFillMissingOptionals(t *testing.T) {
	cfg := echoConfig()
	cfg.Tools[0].Args = []string{"{message}", "{suffix}"}
	cfg.Tools[0].Params = append(cfg.Tools[0].Params,
		spec.Param{Name: "suffix", Type: spec.TypeString, Required: false, Default: "!"})

	d, err := New(cfg, Options{})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "echo", map[string]any{"message": "hi"})
	require.True(t, result.OK, result.Message)
	assert.Equal(t, "hi !\n", result.Payload)
}

func TestPythonModuleDispatch(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not installed")
	}

	dir := t.TempDir()
	module := `
def add(a, b):
    return a + b

def boom():
    raise ValueError("broken")
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mymod.py"), []byte(module), 0o644))

	cfg := &spec.Config{
		Name:    "mymod",
		Backend: spec.Backend{Kind: spec.KindPythonModule, Module: "mymod"},
		Tools: []spec.Tool{
			{
				Name:     "add",
				Function: "add",
				Params: []spec.Param{
					{Name: "a", Type: spec.TypeInteger, Required: true},
					{Name: "b", Type: spec.TypeInteger, Required: true},
				},
			},
			{Name: "boom", Function: "boom"},
		},
	}
	d, err := New(cfg, Options{Python: python, Dir: dir})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	require.True(t, result.OK, result.Message)
	assert.Equal(t, float64(5), result.Payload)

	result = d.Invoke(context.Background(), "boom", nil)
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailRuntimeError, result.Kind)
	assert.Contains(t, result.Message, "ValueError")
}
