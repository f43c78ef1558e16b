package detect

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/internal/debug"
	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
)

// StructuralDetector recovers the callable surface of a project from its
// source alone: argparse registrations become commandline tools, route
// decorators become http tools, and remaining public functions become
// python-module tools. It never executes project code.
type StructuralDetector struct {
	settings config.Detect
}

// NewStructuralDetector builds the structural strategy with the given
// walk settings.
func NewStructuralDetector(settings config.Detect) *StructuralDetector {
	return &StructuralDetector{settings: settings}
}

func (d *StructuralDetector) Name() string { return "structural" }

// Available is always true: structural analysis has no prerequisites.
func (d *StructuralDetector) Available() bool { return true }

// Detect walks root, parses every Python file, and assembles a config
// around the dominant calling convention. A root with readable Python
// files but no recognizable operations yields a valid empty config; a
// root with no Python files at all is a detection failure.
func (d *StructuralDetector) Detect(ctx context.Context, root string) (*spec.Config, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewDetectionError(root, "project root is not readable", err)
	}
	if !info.IsDir() {
		return nil, errors.NewDetectionError(root, "project root is not a directory", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := collectPythonFiles(root, d.settings)
	if err != nil {
		return nil, errors.NewDetectionError(root, "scanning project tree failed", err)
	}
	if len(files) == 0 {
		return nil, errors.NewDetectionError(root, "no recognizable surface: no Python sources found", nil)
	}

	analyzed, err := analyzeFiles(files)
	if err != nil {
		return nil, errors.NewDetectionError(root, "parsing project sources failed", err)
	}

	project := extractProjectInfo(root)
	cfg := assembleConfig(project, analyzed)
	debug.LogDetect("structural: %d files, %d tools, backend %s\n",
		len(files), len(cfg.Tools), cfg.Backend.Kind)
	return cfg, nil
}

// toolFamily is one candidate calling convention with the tools it claims.
type toolFamily struct {
	kind  spec.BackendKind
	tools []spec.Tool
	// file backing the convention: the CLI entry script for commandline,
	// the module for python-module. Unused for http.
	file string
}

// assembleConfig converts per-file analysis into the final config. Each
// convention proposes its tools; the one claiming the most wins, ties
// resolved commandline, then http, then python-module.
func assembleConfig(project projectInfo, files []*pyFile) *spec.Config {
	cli := buildCommandlineFamily(files)
	http := buildHTTPFamily(files)
	mod := buildModuleFamily(files)

	winner := cli
	for _, f := range []*toolFamily{http, mod} {
		if len(f.tools) > len(winner.tools) {
			winner = f
		}
	}

	cfg := &spec.Config{
		Name:        project.name,
		Description: project.description,
		Tools:       dedupeTools(winner.tools),
	}
	switch winner.kind {
	case spec.KindCommandline:
		cfg.Backend = spec.Backend{
			Kind:    spec.KindCommandline,
			Command: "python3",
			WorkDir: ".",
		}
		if winner.file != "" {
			cfg.Backend.BaseArgs = []string{winner.file}
		}
	case spec.KindHTTP:
		cfg.Backend = spec.Backend{
			Kind:    spec.KindHTTP,
			BaseURL: "http://localhost:8000",
		}
	case spec.KindPythonModule:
		cfg.Backend = spec.Backend{
			Kind:   spec.KindPythonModule,
			Module: winner.file,
		}
	}
	return cfg
}

// dedupeTools keeps the first tool for each name, preserving order.
func dedupeTools(tools []spec.Tool) []spec.Tool {
	seen := make(map[string]bool, len(tools))
	out := tools[:0]
	for _, t := range tools {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out
}

// buildCommandlineFamily turns argparse parsers into commandline tools.
// A parser with subcommands yields one tool per subcommand; a flat parser
// yields a single tool. The backend names a single entry script, so the
// file whose parsers claim the most tools wins and only its tools are
// kept; a tool from another script would render against the wrong argv.
func buildCommandlineFamily(files []*pyFile) *toolFamily {
	family := &toolFamily{kind: spec.KindCommandline}
	best := 0
	for _, f := range files {
		var tools []spec.Tool
		for _, p := range f.parsers {
			tools = append(tools, parserTools(p, f.relPath)...)
		}
		if len(tools) > best {
			best = len(tools)
			family.tools = tools
			family.file = f.relPath
		}
	}
	return family
}

func parserTools(p *argParser, relPath string) []spec.Tool {
	if len(p.subcommands) == 0 {
		name := p.prog
		if name == "" {
			name = fileStem(relPath)
		}
		desc := p.description
		if desc == "" {
			desc = synthesizeDescription(name)
		}
		tool := spec.Tool{Name: sanitizeToolName(name), Description: desc}
		tool.Params, tool.Args = argumentsToTemplate(nil, p.args)
		return []spec.Tool{tool}
	}

	tools := make([]spec.Tool, 0, len(p.subcommands))
	for _, sub := range p.subcommands {
		desc := sub.help
		if desc == "" {
			desc = synthesizeDescription(sub.name)
		}
		tool := spec.Tool{Name: sanitizeToolName(sub.name), Description: desc}
		var prefix []string
		tool.Params, prefix = argumentsToTemplate(nil, p.args)
		subParams, subArgs := argumentsToTemplate(tool.Params, sub.args)
		tool.Params = subParams
		tool.Args = append(append(prefix, sub.name), subArgs...)
		tools = append(tools, tool)
	}
	return tools
}

// argumentsToTemplate converts add_argument records into declared params
// and the matching argv template tokens. existing carries params already
// claimed by an outer parser so names stay unique.
func argumentsToTemplate(existing []spec.Param, args []argArgument) ([]spec.Param, []string) {
	params := existing
	var tokens []string
	taken := make(map[string]bool, len(existing))
	for _, p := range existing {
		taken[p.Name] = true
	}

	for _, arg := range args {
		flag := longestFlag(arg.flags)
		name := flagToParamName(flag)
		if name == "" || taken[name] {
			continue
		}
		taken[name] = true

		param := spec.Param{Name: name, Description: paramDescription(arg.help, name)}
		param.Type = argumentType(arg)
		positional := !strings.HasPrefix(flag, "-")

		switch arg.action {
		case "store_true":
			param.Required = false
			param.Default = false
		case "store_false":
			param.Required = false
			param.Default = true
		default:
			switch {
			case positional:
				param.Required = true
			case arg.required != nil:
				param.Required = *arg.required
			default:
				param.Required = false
			}
			if arg.defaultLit != nil {
				param.Default = arg.defaultLit.value
				param.Required = false
			}
		}
		params = append(params, param)

		placeholder := "{" + name + "}"
		if positional {
			tokens = append(tokens, placeholder)
		} else {
			tokens = append(tokens, flag, placeholder)
		}
	}
	return params, tokens
}

// argumentType infers a schema type for one add_argument record: the
// type= keyword wins, then a boolean action, then the default literal.
func argumentType(arg argArgument) spec.ParamType {
	if arg.typeKw != "" {
		if t, ok := pythonTypeToSchema(arg.typeKw); ok {
			return t
		}
	}
	switch arg.action {
	case "store_true", "store_false":
		return spec.TypeBoolean
	case "append":
		return spec.TypeArray
	}
	if arg.defaultLit != nil {
		return arg.defaultLit.typ
	}
	return spec.TypeString
}

// longestFlag prefers the long option of an add_argument flag list.
func longestFlag(flags []string) string {
	best := ""
	for _, f := range flags {
		if strings.HasPrefix(f, "--") {
			return f
		}
		if len(f) > len(best) {
			best = f
		}
	}
	return best
}

func flagToParamName(flag string) string {
	name := strings.TrimLeft(flag, "-")
	return strings.ReplaceAll(name, "-", "_")
}

// buildHTTPFamily turns route-decorated functions into http tools.
func buildHTTPFamily(files []*pyFile) *toolFamily {
	family := &toolFamily{kind: spec.KindHTTP}
	for _, f := range files {
		for _, fn := range f.functions {
			if fn.route == nil || strings.HasPrefix(fn.name, "_") {
				continue
			}
			family.tools = append(family.tools, routeTool(fn))
		}
	}
	return family
}

func routeTool(fn pyFunction) spec.Tool {
	endpoint, converters := normalizeRoutePath(fn.route.path)
	desc := fn.docstring
	if desc == "" {
		desc = synthesizeDescription(fn.name)
	}
	tool := spec.Tool{
		Name:        sanitizeToolName(fn.name),
		Description: desc,
		Endpoint:    endpoint,
		Method:      fn.route.method,
	}

	inPath := make(map[string]bool, len(converters))
	for _, name := range spec.Placeholders(endpoint) {
		inPath[name] = true
		typ := converters[name]
		if typ == "" {
			typ = spec.TypeString
		}
		tool.Params = append(tool.Params, spec.Param{
			Name:        name,
			Type:        typ,
			Description: synthesizeDescription(name),
			Required:    true,
		})
	}

	// Remaining function parameters travel as query params or body fields.
	for _, p := range fn.params {
		if inPath[p.name] {
			continue
		}
		param := spec.Param{
			Name:        p.name,
			Description: synthesizeDescription(p.name),
			Required:    !p.hasDefault,
		}
		param.Type = functionParamType(p)
		if p.defaultLit != nil {
			param.Default = p.defaultLit.value
		}
		tool.Params = append(tool.Params, param)
	}
	return tool
}

// routeSegRe matches both Flask-style <converter:name> segments and bare
// <name> segments.
var routeSegRe = regexp.MustCompile(`<(?:([a-zA-Z]+):)?([a-zA-Z_][a-zA-Z0-9_]*)>`)

// normalizeRoutePath rewrites a route path into {name} placeholder form
// and reports the schema type each converter implies.
func normalizeRoutePath(path string) (string, map[string]spec.ParamType) {
	converters := make(map[string]spec.ParamType)
	normalized := routeSegRe.ReplaceAllStringFunc(path, func(seg string) string {
		m := routeSegRe.FindStringSubmatch(seg)
		switch m[1] {
		case "int":
			converters[m[2]] = spec.TypeInteger
		case "float":
			converters[m[2]] = spec.TypeNumber
		}
		return "{" + m[2] + "}"
	})
	return normalized, converters
}

// buildModuleFamily turns plain public functions into python-module tools.
// Only one module can back the config, so the file with the most callable
// functions is chosen and only its tools are kept.
func buildModuleFamily(files []*pyFile) *toolFamily {
	family := &toolFamily{kind: spec.KindPythonModule}
	best := 0
	for _, f := range files {
		var tools []spec.Tool
		for _, fn := range f.functions {
			if fn.route != nil || strings.HasPrefix(fn.name, "_") || fn.name == "main" {
				continue
			}
			tools = append(tools, functionTool(fn))
		}
		if len(tools) > best {
			best = len(tools)
			family.tools = tools
			family.file = modulePath(f.relPath)
		}
	}
	return family
}

func functionTool(fn pyFunction) spec.Tool {
	desc := fn.docstring
	if desc == "" {
		desc = synthesizeDescription(fn.name)
	}
	tool := spec.Tool{
		Name:        sanitizeToolName(fn.name),
		Description: desc,
		Function:    fn.name,
	}
	for _, p := range fn.params {
		param := spec.Param{
			Name:        p.name,
			Description: synthesizeDescription(p.name),
			Required:    !p.hasDefault,
		}
		param.Type = functionParamType(p)
		if p.defaultLit != nil {
			param.Default = p.defaultLit.value
		}
		tool.Params = append(tool.Params, param)
	}
	return tool
}

// functionParamType infers a schema type from the annotation, falling
// back to the default literal, then string.
func functionParamType(p pyParam) spec.ParamType {
	if p.annotation != "" {
		if t, ok := pythonTypeToSchema(p.annotation); ok {
			return t
		}
	}
	if p.defaultLit != nil {
		return p.defaultLit.typ
	}
	return spec.TypeString
}

// modulePath converts a file path into a dotted import path:
// pkg/tools.py becomes pkg.tools, pkg/__init__.py becomes pkg.
func modulePath(relPath string) string {
	p := strings.TrimSuffix(relPath, ".py")
	p = strings.TrimSuffix(p, "/__init__")
	return strings.ReplaceAll(p, "/", ".")
}

func fileStem(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, ".py")
}

var toolNameCleanRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// sanitizeToolName makes a detected name safe for the schema's identifier
// rules without losing recognizability.
func sanitizeToolName(name string) string {
	name = toolNameCleanRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "tool"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// paramDescription prefers declared help text, falling back to a
// description derived from the parameter name.
func paramDescription(help, name string) string {
	if help != "" {
		return help
	}
	return synthesizeDescription(name)
}

// synthesizeDescription derives a readable description from an identifier:
// process_data becomes "Process data".
func synthesizeDescription(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(words) == 0 {
		return name
	}
	first := words[0]
	words[0] = strings.ToUpper(first[:1]) + first[1:]
	return strings.Join(words, " ")
}
