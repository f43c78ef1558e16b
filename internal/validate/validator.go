// Package validate checks a decoded configuration for internal
// consistency before the dispatcher is allowed to serve it. Validation
// never fails with an error: every violation becomes one diagnostic in
// the report, and the same configuration always yields the same report.
package validate

import (
	"fmt"
	"regexp"

	"github.com/mcpify/mcpify/internal/spec"
)

// Severity of a diagnostic. Warnings do not affect validity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one validation finding tied to a location in the document.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Location string   `json:"location"`
	Message  string   `json:"message"`
}

// Report is the outcome of validating one configuration.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Valid       bool         `json:"is_valid"`
}

// Errors returns only the error-severity diagnostics.
func (r Report) Errors() []Diagnostic {
	var errs []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// Validate checks cfg and returns a report. Diagnostics are emitted in
// document order (backend, then tools, then parameters), so validating
// the same configuration twice yields identical reports.
func Validate(cfg *spec.Config) Report {
	v := &validator{}

	v.checkBackend(&cfg.Backend)
	v.checkTools(cfg)

	return Report{Diagnostics: v.diags, Valid: !v.hasErrors}
}

type validator struct {
	diags     []Diagnostic
	hasErrors bool
}

func (v *validator) errorf(loc, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{SeverityError, loc, fmt.Sprintf(format, args...)})
	v.hasErrors = true
}

func (v *validator) warnf(loc, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{SeverityWarning, loc, fmt.Sprintf(format, args...)})
}

func (v *validator) checkBackend(b *spec.Backend) {
	known := false
	for _, k := range spec.KnownKinds {
		if b.Kind == k {
			known = true
			break
		}
	}
	if !known {
		v.errorf("backend", "unknown backend type %q", b.Kind)
		return
	}

	switch b.Kind {
	case spec.KindCommandline:
		if b.Command == "" {
			v.errorf("backend", "commandline backend requires a command")
		}
	case spec.KindHTTP:
		if b.BaseURL == "" {
			v.errorf("backend", "http backend requires a base_url")
		}
	case spec.KindPythonModule:
		if b.Module == "" {
			v.errorf("backend", "python-module backend requires a module")
		}
	}
}

func (v *validator) checkTools(cfg *spec.Config) {
	seen := make(map[string]int, len(cfg.Tools))
	for i := range cfg.Tools {
		tool := &cfg.Tools[i]
		loc := fmt.Sprintf("tools[%d]", i)

		if tool.Name == "" {
			v.errorf(loc, "tool name must not be empty")
		} else if !identRe.MatchString(tool.Name) {
			v.errorf(loc, "tool name %q is not identifier-safe", tool.Name)
		}
		if first, dup := seen[tool.Name]; dup && tool.Name != "" {
			v.errorf(loc, "tool name %q duplicates tools[%d]", tool.Name, first)
		} else {
			seen[tool.Name] = i
		}

		v.checkParams(tool, loc)
		v.checkTemplate(cfg.Backend.Kind, tool, loc)
	}
}

func (v *validator) checkParams(tool *spec.Tool, loc string) {
	seen := make(map[string]int, len(tool.Params))
	for j := range tool.Params {
		p := &tool.Params[j]
		ploc := fmt.Sprintf("%s.parameters[%d]", loc, j)

		if p.Name == "" {
			v.errorf(ploc, "parameter name must not be empty")
		}
		if first, dup := seen[p.Name]; dup && p.Name != "" {
			v.errorf(ploc, "parameter name %q duplicates parameters[%d]", p.Name, first)
		} else {
			seen[p.Name] = j
		}

		known := false
		for _, t := range spec.KnownTypes {
			if p.Type == t {
				known = true
				break
			}
		}
		if !known {
			v.errorf(ploc, "parameter %q has unrecognized type %q", p.Name, p.Type)
		}
	}
}

// checkTemplate verifies the invocation template against the declared
// parameters: placeholders must resolve, and required parameters without
// a default must be reachable at call time.
func (v *validator) checkTemplate(kind spec.BackendKind, tool *spec.Tool, loc string) {
	referenced := make(map[string]bool)
	for _, name := range tool.TemplatePlaceholders() {
		referenced[name] = true
		if tool.Param(name) == nil {
			v.errorf(loc, "placeholder {%s} does not name a declared parameter", name)
		}
	}

	for j := range tool.Params {
		p := &tool.Params[j]
		ploc := fmt.Sprintf("%s.parameters[%d]", loc, j)
		switch kind {
		case spec.KindCommandline:
			if p.Required && p.Default == nil && !referenced[p.Name] {
				v.errorf(ploc, "required parameter %q is not referenced by the argument template", p.Name)
			}
			if !p.Required && !referenced[p.Name] {
				v.warnf(ploc, "optional parameter %q is never referenced", p.Name)
			}
		case spec.KindHTTP:
			// Parameters outside the path travel as query or body values,
			// so only path placeholders need declaration checks here.
		case spec.KindPythonModule:
			// Every parameter is passed to the callable by name.
		}
	}

	switch kind {
	case spec.KindCommandline:
		if tool.Endpoint != "" || tool.Function != "" {
			v.errorf(loc, "tool carries a non-commandline invocation template")
		}
	case spec.KindHTTP:
		if tool.Endpoint == "" {
			v.errorf(loc, "http tool requires an endpoint")
		}
		if !knownMethods[tool.Method] {
			v.errorf(loc, "http tool method %q is not one of GET, POST, PUT, PATCH, DELETE", tool.Method)
		}
	case spec.KindPythonModule:
		if tool.Function == "" {
			v.errorf(loc, "python-module tool requires a function name")
		}
	}
}
