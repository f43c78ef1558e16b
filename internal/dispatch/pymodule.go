package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"os/exec"
	"strings"

	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
)

// pyRunner imports the configured module, calls the target function with
// keyword arguments, and prints a JSON envelope. Exceptions are caught so
// they come back as a structured error instead of a traceback on stderr.
const pyRunner = `import importlib, json, sys
try:
    kwargs = json.loads(sys.argv[1])
    module = importlib.import_module(sys.argv[2])
    fn = getattr(module, sys.argv[3])
    result = fn(**kwargs)
except Exception as exc:
    json.dump({"ok": False, "error": "%s: %s" % (type(exc).__name__, exc)}, sys.stdout)
else:
    json.dump({"ok": True, "result": result}, sys.stdout, default=str)
`

// pyEnvelope is what pyRunner prints on stdout.
type pyEnvelope struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result"`
	Error  string `json:"error"`
}

// runPythonModule calls one function of the backend module through a
// short-lived interpreter. Arguments always pass by name.
func (d *Dispatcher) runPythonModule(ctx context.Context, tool *spec.Tool, values map[string]any) Result {
	kwargs, err := json.Marshal(values)
	if err != nil {
		return failure(errors.FailRuntimeError,
			"tool %q: encoding arguments: %v", tool.Name, err)
	}

	function := tool.Function
	if function == "" {
		function = tool.Name
	}

	cctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, d.opts.Python,
		"-c", pyRunner, string(kwargs), d.cfg.Backend.Module, function)
	cmd.Dir = d.workDir()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		return failure(errors.FailTimeout,
			"tool %q: call exceeded %s and was killed", tool.Name, d.opts.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if goerrors.As(err, &exitErr) {
			return failure(errors.FailRuntimeError,
				"tool %q: interpreter exited with code %d: %s",
				tool.Name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return failure(errors.FailRuntimeError,
			"tool %q: starting %q failed: %v", tool.Name, d.opts.Python, err)
	}

	var envelope pyEnvelope
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		return failure(errors.FailRuntimeError,
			"tool %q: unreadable interpreter output: %s",
			tool.Name, strings.TrimSpace(stdout.String()))
	}
	if !envelope.OK {
		return failure(errors.FailRuntimeError, "tool %q: %s", tool.Name, envelope.Error)
	}
	return success(envelope.Result)
}
