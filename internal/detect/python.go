package detect

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/mcpify/mcpify/internal/spec"
)

// pyFile is the callable surface recovered from one Python source file.
type pyFile struct {
	relPath   string
	functions []pyFunction // top-level function definitions
	parsers   []*argParser // argparse parser instances
	hasMain   bool         // file has an  if __name__ == "__main__"  guard
}

// pyFunction is one top-level function definition.
type pyFunction struct {
	name      string
	docstring string
	params    []pyParam
	route     *routeBinding // non-nil when a route decorator claimed it
	line      int
}

// pyParam is one formal parameter of a function definition.
type pyParam struct {
	name       string
	annotation string
	hasDefault bool
	defaultLit *literal
}

// routeBinding records an HTTP method and path template bound by a
// decorator such as @app.get("/users/{id}").
type routeBinding struct {
	method string
	path   string
}

// argParser records one ArgumentParser instance and the arguments
// registered on it, plus any subcommand parsers.
type argParser struct {
	varName     string
	prog        string
	description string
	args        []argArgument
	subcommands []*argSubcommand
}

type argSubcommand struct {
	varName string
	name    string
	help    string
	args    []argArgument
}

// argArgument is one add_argument call.
type argArgument struct {
	flags      []string // "--message", "-m", or a bare positional name
	typeKw     string   // text of the type= keyword, if any
	action     string   // text of the action= keyword, if any
	help       string
	required   *bool
	defaultLit *literal
}

// literal is a Python literal constant with its inferred schema type.
type literal struct {
	value any
	typ   spec.ParamType
}

// pyAnalyzer owns one tree-sitter parser. Not safe for concurrent use;
// the walker gives each worker its own instance.
type pyAnalyzer struct {
	parser *tree_sitter.Parser
}

func newPyAnalyzer() (*pyAnalyzer, error) {
	parser := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(tree_sitter_python.Language())
	if err := parser.SetLanguage(language); err != nil {
		return nil, err
	}
	return &pyAnalyzer{parser: parser}, nil
}

func (a *pyAnalyzer) Close() {
	a.parser.Close()
}

// Analyze parses one file and collects its callable surface. Parse errors
// inside the file are tolerated: tree-sitter produces a partial tree and
// extraction works with whatever structure is present.
func (a *pyAnalyzer) Analyze(relPath string, content []byte) *pyFile {
	tree := a.parser.Parse(content, nil)
	if tree == nil {
		return &pyFile{relPath: relPath}
	}
	defer tree.Close()

	file := &pyFile{relPath: relPath}
	root := tree.RootNode()

	// Top-level definitions first, so later walks can claim them.
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		switch child.Kind() {
		case "function_definition":
			if fn, ok := extractFunction(child, nil, content); ok {
				file.functions = append(file.functions, fn)
			}
		case "decorated_definition":
			def := child.ChildByFieldName("definition")
			if def != nil && def.Kind() == "function_definition" {
				if fn, ok := extractFunction(def, child, content); ok {
					file.functions = append(file.functions, fn)
				}
			}
		case "if_statement":
			if cond := child.ChildByFieldName("condition"); cond != nil {
				if strings.Contains(nodeText(cond, content), "__name__") {
					file.hasMain = true
				}
			}
		}
	}

	// Argparse registrations can appear anywhere, including inside a
	// main() function, so this walk is unscoped. Variable names are
	// treated as file-scoped, which holds for the idiom in practice.
	ap := &argparseScan{file: file, content: content}
	ap.walk(root)

	return file
}

func nodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// extractFunction pulls name, parameters, docstring and route decorators
// from a function_definition node. decorated is the enclosing
// decorated_definition, or nil.
func extractFunction(node *tree_sitter.Node, decorated *tree_sitter.Node, content []byte) (pyFunction, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return pyFunction{}, false
	}

	fn := pyFunction{
		name: nodeText(nameNode, content),
		line: int(node.StartPosition().Row) + 1,
	}

	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		fn.params = extractParams(paramsNode, content)
	}
	fn.docstring = extractDocstring(node, content)

	if decorated != nil {
		for i := uint(0); i < decorated.ChildCount(); i++ {
			child := decorated.Child(i)
			if child.Kind() != "decorator" {
				continue
			}
			if route := parseRouteDecorator(child, content); route != nil {
				fn.route = route
				break
			}
		}
	}

	return fn, true
}

func extractParams(paramsNode *tree_sitter.Node, content []byte) []pyParam {
	var params []pyParam
	for i := uint(0); i < paramsNode.ChildCount(); i++ {
		child := paramsNode.Child(i)
		var p pyParam
		switch child.Kind() {
		case "identifier":
			p.name = nodeText(child, content)
		case "typed_parameter":
			// first child is the identifier, the "type" field carries the annotation
			if child.ChildCount() > 0 {
				p.name = nodeText(child.Child(0), content)
			}
			p.annotation = nodeText(child.ChildByFieldName("type"), content)
		case "default_parameter":
			p.name = nodeText(child.ChildByFieldName("name"), content)
			p.hasDefault = true
			p.defaultLit = parseLiteral(child.ChildByFieldName("value"), content)
		case "typed_default_parameter":
			p.name = nodeText(child.ChildByFieldName("name"), content)
			p.annotation = nodeText(child.ChildByFieldName("type"), content)
			p.hasDefault = true
			p.defaultLit = parseLiteral(child.ChildByFieldName("value"), content)
		default:
			continue
		}
		if p.name == "" || p.name == "self" || p.name == "cls" {
			continue
		}
		params = append(params, p)
	}
	return params
}

// extractDocstring returns the string literal that opens the function
// body, with quotes stripped and whitespace normalized.
func extractDocstring(fnNode *tree_sitter.Node, content []byte) string {
	body := fnNode.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Kind() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	expr := first.Child(0)
	if expr.Kind() != "string" {
		return ""
	}
	return cleanDocstring(stripQuotes(nodeText(expr, content)))
}

func stripQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// cleanDocstring keeps the first paragraph of a docstring as a one-line
// description.
func cleanDocstring(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		s = s[:idx]
	}
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// parseLiteral interprets a simple Python literal. Non-literal defaults
// (calls, names) return nil: the parameter stays optional, typed by other
// signals.
func parseLiteral(node *tree_sitter.Node, content []byte) *literal {
	if node == nil {
		return nil
	}
	text := nodeText(node, content)
	switch node.Kind() {
	case "integer":
		if v, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &literal{value: v, typ: spec.TypeInteger}
		}
	case "float":
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return &literal{value: v, typ: spec.TypeNumber}
		}
	case "true":
		return &literal{value: true, typ: spec.TypeBoolean}
	case "false":
		return &literal{value: false, typ: spec.TypeBoolean}
	case "string":
		return &literal{value: stripQuotes(text), typ: spec.TypeString}
	case "list", "tuple":
		return &literal{value: nil, typ: spec.TypeArray}
	case "unary_operator":
		// negative numbers parse as unary_operator(integer|float)
		if v, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &literal{value: v, typ: spec.TypeInteger}
		}
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return &literal{value: v, typ: spec.TypeNumber}
		}
	case "none":
		return nil
	}
	return nil
}

// pythonTypeToSchema maps a Python annotation or type keyword to the
// schema type vocabulary.
func pythonTypeToSchema(pyType string) (spec.ParamType, bool) {
	pyType = strings.TrimSpace(pyType)
	switch {
	case pyType == "int":
		return spec.TypeInteger, true
	case pyType == "float":
		return spec.TypeNumber, true
	case pyType == "str":
		return spec.TypeString, true
	case pyType == "bool":
		return spec.TypeBoolean, true
	case pyType == "list" || strings.HasPrefix(pyType, "list[") ||
		pyType == "List" || strings.HasPrefix(pyType, "List["):
		return spec.TypeArray, true
	}
	return spec.TypeString, false
}

// argparseScan walks the whole tree collecting argparse facts.
type argparseScan struct {
	file    *pyFile
	content []byte

	parserVars map[string]*argParser
	subparsers map[string]*argParser     // add_subparsers() result var -> owning parser
	subcmdVars map[string]*argSubcommand // add_parser() result var -> subcommand
}

func (s *argparseScan) walk(node *tree_sitter.Node) {
	switch node.Kind() {
	case "assignment":
		s.scanAssignment(node)
	case "call":
		s.scanCall(node)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		s.walk(node.Child(i))
	}
}

func (s *argparseScan) scanAssignment(node *tree_sitter.Node) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Kind() != "identifier" || right.Kind() != "call" {
		return
	}
	varName := nodeText(left, s.content)
	callee := nodeText(right.ChildByFieldName("function"), s.content)
	args := right.ChildByFieldName("arguments")

	switch {
	case strings.HasSuffix(callee, "ArgumentParser"):
		p := &argParser{varName: varName}
		p.prog = stringKwarg(args, "prog", s.content)
		p.description = stringKwarg(args, "description", s.content)
		if s.parserVars == nil {
			s.parserVars = make(map[string]*argParser)
		}
		s.parserVars[varName] = p
		s.file.parsers = append(s.file.parsers, p)

	case strings.HasSuffix(callee, ".add_subparsers"):
		owner := strings.TrimSuffix(callee, ".add_subparsers")
		if p, ok := s.parserVars[owner]; ok {
			if s.subparsers == nil {
				s.subparsers = make(map[string]*argParser)
			}
			s.subparsers[varName] = p
		}

	case strings.HasSuffix(callee, ".add_parser"):
		owner := strings.TrimSuffix(callee, ".add_parser")
		if p, ok := s.subparsers[owner]; ok {
			sub := &argSubcommand{
				varName: varName,
				name:    firstStringArg(args, s.content),
				help:    stringKwarg(args, "help", s.content),
			}
			if sub.name != "" {
				p.subcommands = append(p.subcommands, sub)
				if s.subcmdVars == nil {
					s.subcmdVars = make(map[string]*argSubcommand)
				}
				s.subcmdVars[varName] = sub
			}
		}
	}
}

func (s *argparseScan) scanCall(node *tree_sitter.Node) {
	callee := nodeText(node.ChildByFieldName("function"), s.content)
	if !strings.HasSuffix(callee, ".add_argument") {
		return
	}
	owner := strings.TrimSuffix(callee, ".add_argument")
	args := node.ChildByFieldName("arguments")

	arg := argArgument{
		typeKw: kwargText(args, "type", s.content),
		action: stringKwarg(args, "action", s.content),
		help:   stringKwarg(args, "help", s.content),
	}
	arg.defaultLit = parseLiteral(kwargValue(args, "default", s.content), s.content)
	if reqNode := kwargValue(args, "required", s.content); reqNode != nil {
		req := reqNode.Kind() == "true"
		arg.required = &req
	}
	for _, flag := range positionalStrings(args, s.content) {
		arg.flags = append(arg.flags, flag)
	}
	if len(arg.flags) == 0 {
		return
	}

	if sub, ok := s.subcmdVars[owner]; ok {
		sub.args = append(sub.args, arg)
	} else if p, ok := s.parserVars[owner]; ok {
		p.args = append(p.args, arg)
	}
}

// positionalStrings returns the string literals passed positionally to a
// call, e.g. the flag names of add_argument("-m", "--message", ...).
func positionalStrings(args *tree_sitter.Node, content []byte) []string {
	if args == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if child.Kind() == "string" {
			out = append(out, stripQuotes(nodeText(child, content)))
		}
		if child.Kind() == "keyword_argument" {
			break
		}
	}
	return out
}

func firstStringArg(args *tree_sitter.Node, content []byte) string {
	strs := positionalStrings(args, content)
	if len(strs) == 0 {
		return ""
	}
	return strs[0]
}

// kwargValue returns the value node of a name=value keyword argument.
func kwargValue(args *tree_sitter.Node, name string, content []byte) *tree_sitter.Node {
	if args == nil {
		return nil
	}
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if child.Kind() != "keyword_argument" {
			continue
		}
		if nodeText(child.ChildByFieldName("name"), content) == name {
			return child.ChildByFieldName("value")
		}
	}
	return nil
}

func kwargText(args *tree_sitter.Node, name string, content []byte) string {
	return nodeText(kwargValue(args, name, content), content)
}

func stringKwarg(args *tree_sitter.Node, name string, content []byte) string {
	v := kwargValue(args, name, content)
	if v == nil || v.Kind() != "string" {
		return ""
	}
	return stripQuotes(nodeText(v, content))
}

// parseRouteDecorator recognizes @obj.method("/path") and
// @obj.route("/path", methods=[...]) decorators. Returns nil when the
// decorator is not a route binding.
func parseRouteDecorator(decorator *tree_sitter.Node, content []byte) *routeBinding {
	var call *tree_sitter.Node
	for i := uint(0); i < decorator.ChildCount(); i++ {
		if child := decorator.Child(i); child.Kind() == "call" {
			call = child
			break
		}
	}
	if call == nil {
		return nil
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "attribute" {
		return nil
	}
	attr := nodeText(fn.ChildByFieldName("attribute"), content)
	args := call.ChildByFieldName("arguments")
	path := firstStringArg(args, content)
	if path == "" {
		return nil
	}

	switch attr {
	case "get", "post", "put", "patch", "delete":
		return &routeBinding{method: strings.ToUpper(attr), path: path}
	case "route":
		method := "GET"
		if methods := kwargValue(args, "methods", content); methods != nil {
			if names := positionalStrings(methods, content); len(names) > 0 {
				method = strings.ToUpper(names[0])
			}
		}
		return &routeBinding{method: method, path: path}
	}
	return nil
}
