package dispatch

import (
	"bytes"
	"context"
	goerrors "errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
)

// runCommandline renders the tool's argv template and executes the
// backend command as a subprocess under the per-call timeout.
func (d *Dispatcher) runCommandline(ctx context.Context, tool *spec.Tool, values map[string]any) Result {
	argv := append([]string{}, d.cfg.Backend.BaseArgs...)
	argv = append(argv, renderTemplate(tool, values)...)

	cctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	command := d.cfg.Backend.Command
	if command == "" {
		command = d.opts.Python
	}
	cmd := exec.CommandContext(cctx, command, argv...)
	cmd.Dir = d.workDir()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		return failure(errors.FailTimeout,
			"tool %q: command exceeded %s and was killed", tool.Name, d.opts.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if goerrors.As(err, &exitErr) {
			return failure(errors.FailBackendError,
				"tool %q: command exited with code %d\nstdout: %s\nstderr: %s",
				tool.Name, exitErr.ExitCode(),
				strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
		}
		return failure(errors.FailRuntimeError,
			"tool %q: starting %q failed: %v", tool.Name, command, err)
	}
	return success(stdout.String())
}

// workDir resolves the backend workdir against the dispatcher anchor
// directory, so a config detected elsewhere still runs from the project.
func (d *Dispatcher) workDir() string {
	wd := d.cfg.Backend.WorkDir
	if wd == "" {
		wd = "."
	}
	if !filepath.IsAbs(wd) && d.opts.Dir != "" {
		wd = filepath.Join(d.opts.Dir, wd)
	}
	return wd
}

// renderTemplate expands the argv template against resolved values.
// Rules:
//   - a token that is exactly one placeholder becomes the value's string
//     form; when the value is absent the token is dropped, together with
//     an immediately preceding flag literal;
//   - a boolean value keeps its preceding flag and drops the value token
//     when true, and drops both when false;
//   - a token with embedded placeholders gets them substituted in place.
func renderTemplate(tool *spec.Tool, values map[string]any) []string {
	var argv []string
	for _, token := range tool.Args {
		name, isPlaceholder := spec.IsPlaceholder(token)
		if !isPlaceholder {
			if spec.Placeholders(token) != nil {
				argv = append(argv, substituteInline(token, values))
			} else {
				argv = append(argv, token)
			}
			continue
		}

		value, present := values[name]
		if !present {
			argv = dropPrecedingFlag(argv)
			continue
		}
		if b, isBool := value.(bool); isBool && precededByFlag(argv) {
			if !b {
				argv = dropPrecedingFlag(argv)
			}
			continue
		}
		argv = append(argv, formatValue(value))
	}
	return argv
}

func precededByFlag(argv []string) bool {
	return len(argv) > 0 && strings.HasPrefix(argv[len(argv)-1], "-")
}

func dropPrecedingFlag(argv []string) []string {
	if precededByFlag(argv) {
		return argv[:len(argv)-1]
	}
	return argv
}

func substituteInline(token string, values map[string]any) string {
	for _, name := range spec.Placeholders(token) {
		if value, present := values[name]; present {
			token = strings.ReplaceAll(token, "{"+name+"}", formatValue(value))
		}
	}
	return token
}
