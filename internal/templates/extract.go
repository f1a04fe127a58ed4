package templates

import (
	"fmt"
	"strings"

	"github.com/mailgun/raymond/v2/ast"
	"github.com/mailgun/raymond/v2/parser"
)

// Rule selects which part of a placeholder names its variable.
type Rule string

const (
	// RuleFirstParam prefers the first positional argument and falls back
	// to the placeholder path, so {{upper name}} binds "name".
	RuleFirstParam Rule = "first-param"
	// RulePath always uses the placeholder path, so {{upper name}} binds "upper".
	RulePath Rule = "path"
)

// DefaultRule is the identifier rule used when none is configured.
const DefaultRule = RuleFirstParam

// ParseRule validates a rule name. An empty name yields DefaultRule.
func ParseRule(name string) (Rule, error) {
	switch Rule(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultRule, nil
	case RuleFirstParam:
		return RuleFirstParam, nil
	case RulePath:
		return RulePath, nil
	default:
		return "", fmt.Errorf("unknown extraction rule %q (expected %q or %q)", name, RuleFirstParam, RulePath)
	}
}

// ParseError reports malformed template syntax.
type ParseError struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template syntax error on line %d: %s", e.Line, e.Message)
	}
	return "template syntax error: " + e.Message
}

// Extractor finds the variables referenced by top-level placeholders.
type Extractor struct {
	Rule Rule
}

// Extract returns the de-duplicated variable names of text in first-occurrence
// order, using DefaultRule.
func Extract(text string) ([]string, error) {
	return Extractor{}.Extract(text)
}

// Extract returns the de-duplicated variable names of text in first-occurrence
// order. Placeholders nested in blocks, partials and comments are not
// considered. Malformed syntax yields a *ParseError.
func (e Extractor) Extract(text string) ([]string, error) {
	program, err := parseProgram(text)
	if err != nil {
		return nil, err
	}
	return e.names(program), nil
}

func (e Extractor) names(program *ast.Program) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})
	for _, node := range program.Body {
		stmt, ok := node.(*ast.MustacheStatement)
		if !ok || stmt.Expression == nil {
			continue
		}
		name, ok := identifier(stmt.Expression, e.rule())
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (e Extractor) rule() Rule {
	if e.Rule == "" {
		return DefaultRule
	}
	return e.Rule
}

func identifier(expr *ast.Expression, rule Rule) (string, bool) {
	if rule == RuleFirstParam && len(expr.Params) > 0 {
		return paramName(expr.Params[0])
	}

	path, ok := expr.Path.(*ast.PathExpression)
	if !ok {
		return "", false
	}
	return pathName(path)
}

// paramName resolves a first argument to a literal name. Sub-expressions,
// number and boolean literals and self references do not name a variable,
// and the helper path is never used in their place.
func paramName(param ast.Node) (string, bool) {
	switch param := param.(type) {
	case *ast.PathExpression:
		return pathName(param)
	case *ast.StringLiteral:
		if name := strings.TrimSpace(param.Value); name != "" {
			return name, true
		}
	}
	return "", false
}

// pathName accepts plain single-segment paths only. Data variables, scoped
// and parent references, and dotted lookups cannot be bound by a flat store.
func pathName(path *ast.PathExpression) (string, bool) {
	if path == nil || path.Data || path.Scoped || path.Depth > 0 || len(path.Parts) != 1 {
		return "", false
	}
	name := path.Parts[0]
	if len(name) >= 2 && name[0] == '[' && name[len(name)-1] == ']' {
		name = name[1 : len(name)-1]
	}
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

func parseProgram(text string) (program *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			program = nil
			err = &ParseError{Message: fmt.Sprint(r)}
		}
	}()

	program, err = parser.Parse(text)
	if err != nil {
		return nil, newParseError(err)
	}
	return program, nil
}

func newParseError(err error) *ParseError {
	msg := err.Error()
	line := 0
	if _, scanErr := fmt.Sscanf(msg, "Parse error on line %d:", &line); scanErr == nil {
		if idx := strings.Index(msg, "\n"); idx >= 0 {
			msg = msg[idx+1:]
		}
	}
	msg = strings.TrimSpace(msg)
	if first, _, ok := strings.Cut(msg, "\n"); ok {
		msg = first
	}
	return &ParseError{Line: line, Message: msg}
}
