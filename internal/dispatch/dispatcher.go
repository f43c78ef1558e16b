// Package dispatch translates tool calls into backend invocations:
// subprocess runs for commandline and python-module backends, HTTP
// requests for http backends. Every per-call failure is reported as a
// classified Result; errors from Invoke itself never occur and the
// dispatcher never panics on caller input.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/mcpify/mcpify/internal/debug"
	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
	"github.com/mcpify/mcpify/internal/validate"
)

// Options tunes execution. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds each call end to end. Default 30s.
	Timeout time.Duration
	// Python is the interpreter for commandline and python-module
	// backends. Default "python3".
	Python string
	// Dir anchors the backend's relative workdir and script paths,
	// usually the directory the config was detected from.
	Dir string
}

const defaultTimeout = 30 * time.Second

// Result is the outcome of one tool call. OK carries Payload; a failure
// carries the kind and a human-readable message.
type Result struct {
	OK      bool            `json:"ok"`
	Payload any             `json:"payload,omitempty"`
	Kind    errors.FailKind `json:"kind,omitempty"`
	Message string          `json:"message,omitempty"`
}

func success(payload any) Result {
	return Result{OK: true, Payload: payload}
}

func failure(kind errors.FailKind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Dispatcher executes tool calls against one validated config. It holds
// no per-call state and is safe for concurrent use.
type Dispatcher struct {
	cfg        *spec.Config
	opts       Options
	httpClient *http.Client
}

// New builds a dispatcher. The config is validated first and an invalid
// config is refused: dispatch assumes template placeholders resolve.
func New(cfg *spec.Config, opts Options) (*Dispatcher, error) {
	report := validate.Validate(cfg)
	if !report.Valid {
		msgs := make([]string, 0, len(report.Diagnostics))
		for _, diag := range report.Errors() {
			msgs = append(msgs, diag.Location+": "+diag.Message)
		}
		return nil, fmt.Errorf("config is not valid: %s", strings.Join(msgs, "; "))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Python == "" {
		opts.Python = "python3"
	}
	return &Dispatcher{
		cfg:        cfg,
		opts:       opts,
		httpClient: &http.Client{},
	}, nil
}

// Invoke runs one tool call. Argument problems are detected before any
// backend work starts: an unknown tool, a missing required argument, or
// a type mismatch never spawns a process or opens a connection.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) Result {
	tool := d.cfg.Tool(name)
	if tool == nil {
		msg := fmt.Sprintf("unknown tool %q", name)
		if suggestion := d.nearestTool(name); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		return failure(errors.FailUnknownTool, "%s", msg)
	}

	values, res := d.resolveArgs(tool, args)
	if !res.OK {
		return res
	}

	debug.LogDispatch("invoke %s via %s\n", tool.Name, d.cfg.Backend.Kind)
	switch d.cfg.Backend.Kind {
	case spec.KindCommandline:
		return d.runCommandline(ctx, tool, values)
	case spec.KindHTTP:
		return d.runHTTP(ctx, tool, values)
	case spec.KindPythonModule:
		return d.runPythonModule(ctx, tool, values)
	}
	return failure(errors.FailBackendError,
		"backend kind %q is managed outside this process", d.cfg.Backend.Kind)
}

// resolveArgs checks and coerces every declared parameter. Undeclared
// arguments are ignored; optional parameters without a value take their
// default or are omitted entirely.
func (d *Dispatcher) resolveArgs(tool *spec.Tool, args map[string]any) (map[string]any, Result) {
	values := make(map[string]any, len(tool.Params))
	for _, p := range tool.Params {
		raw, present := args[p.Name]
		if !present || raw == nil {
			if p.Default != nil {
				values[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, failure(errors.FailMissingArgument,
					"tool %q: missing required argument %q", tool.Name, p.Name)
			}
			continue
		}
		coerced, err := coerceValue(p.Type, raw)
		if err != nil {
			return nil, failure(errors.FailTypeMismatch,
				"tool %q: argument %q: %v", tool.Name, p.Name, err)
		}
		values[p.Name] = coerced
	}
	return values, success(nil)
}

// nearestTool finds the closest configured tool name within a small edit
// distance, for did-you-mean hints.
func (d *Dispatcher) nearestTool(name string) string {
	best := ""
	bestDist := 4
	for _, t := range d.cfg.Tools {
		dist := edlib.LevenshteinDistance(name, t.Name)
		if dist < bestDist {
			bestDist = dist
			best = t.Name
		}
	}
	return best
}
