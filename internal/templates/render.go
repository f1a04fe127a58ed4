package templates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mailgun/raymond/v2"
	"github.com/mailgun/raymond/v2/ast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Render errors. The source text is returned alongside either.
var (
	// ErrUnknownHelper is returned when a placeholder calls a helper that is not registered.
	ErrUnknownHelper = errors.New("unknown helper")
	// ErrSelfReference is returned when a placeholder refers to the whole context ({{this}}, {{.}}).
	ErrSelfReference = errors.New("placeholder refers to the whole context")
)

// Renderer substitutes store values into Handlebars templates.
type Renderer struct {
	// Rule must match the rule used to extract the store's names.
	Rule Rule
	// EscapeHTML escapes substituted values. Off by default: output is plain text.
	EscapeHTML bool
}

// Render substitutes values into text using DefaultRule.
func Render(text string, values Store) (string, error) {
	return Renderer{}.Render(text, values)
}

// Render substitutes values into text. Variables without a value render as
// their own placeholder markup. When the template cannot be parsed or
// evaluated, the returned string is text itself and err describes the
// failure, so the output is always displayable.
func (r Renderer) Render(text string, values Store) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = text
			err = fmt.Errorf("render template: %v", rec)
		}
	}()

	program, err := parseProgram(text)
	if err != nil {
		return text, err
	}

	helpers := r.helpers()
	if err := checkPlaceholders(program, helpers); err != nil {
		return text, err
	}

	tpl, err := raymond.Parse(text)
	if err != nil {
		return text, newParseError(err)
	}
	tpl.RegisterHelpers(helpers)

	rendered, err := tpl.Exec(r.context(program, values))
	if err != nil {
		return text, fmt.Errorf("render template: %w", err)
	}
	return rendered, nil
}

func (r Renderer) rule() Rule {
	if r.Rule == "" {
		return DefaultRule
	}
	return r.Rule
}

func (r Renderer) context(program *ast.Program, values Store) map[string]interface{} {
	names := Extractor{Rule: r.rule()}.names(program)
	ctx := make(map[string]interface{}, len(names)+values.Len())
	for _, name := range values.Names() {
		ctx[name] = r.bind(name, values.Value(name))
	}
	for _, name := range names {
		if _, ok := ctx[name]; !ok {
			ctx[name] = r.bind(name, "")
		}
	}
	return ctx
}

func (r Renderer) bind(name, value string) interface{} {
	if value == "" {
		return raymond.SafeString(Placeholder(name))
	}
	if r.EscapeHTML {
		return value
	}
	return raymond.SafeString(value)
}

// helpers returns the substitution helpers. Under RulePath the helper name is
// itself the variable, so none are registered and helper calls are rejected.
func (r Renderer) helpers() map[string]interface{} {
	if r.rule() == RulePath {
		return map[string]interface{}{}
	}
	title := cases.Title(language.Und)
	wrap := func(fn func(string) string) func(string) interface{} {
		return func(value string) interface{} {
			if isPlaceholder(value) {
				return raymond.SafeString(value)
			}
			out := fn(value)
			if r.EscapeHTML {
				return out
			}
			return raymond.SafeString(out)
		}
	}
	return map[string]interface{}{
		"upper": wrap(strings.ToUpper),
		"lower": wrap(strings.ToLower),
		"trim":  wrap(strings.TrimSpace),
		"title": wrap(title.String),
	}
}

// checkPlaceholders rejects top-level placeholders the engine would render
// silently wrong: calls with arguments to an unregistered helper render as an
// empty field, and self references print the binding map.
func checkPlaceholders(program *ast.Program, helpers map[string]interface{}) error {
	for _, node := range program.Body {
		stmt, ok := node.(*ast.MustacheStatement)
		if !ok || stmt.Expression == nil {
			continue
		}
		expr := stmt.Expression
		line := stmt.Location().Line
		if refersToSelf(expr) {
			return fmt.Errorf("%w on line %d", ErrSelfReference, line)
		}
		if len(expr.Params) == 0 && expr.Hash == nil {
			continue
		}
		name := expr.HelperName()
		if name == "" {
			continue
		}
		if _, ok := helpers[name]; ok {
			continue
		}
		if _, ok := engineHelpers[name]; ok {
			continue
		}
		return fmt.Errorf("%w %q on line %d", ErrUnknownHelper, name, line)
	}
	return nil
}

func refersToSelf(expr *ast.Expression) bool {
	if expr == nil {
		return false
	}
	nodes := append([]ast.Node{expr.Path}, expr.Params...)
	if expr.Hash != nil {
		for _, pair := range expr.Hash.Pairs {
			nodes = append(nodes, pair.Val)
		}
	}
	for _, node := range nodes {
		switch n := node.(type) {
		case *ast.PathExpression:
			if !n.Data && len(n.Parts) == 0 {
				return true
			}
		case *ast.SubExpression:
			if refersToSelf(n.Expression) {
				return true
			}
		case *ast.Expression:
			if refersToSelf(n) {
				return true
			}
		}
	}
	return false
}

// engineHelpers are registered globally by the Handlebars engine.
var engineHelpers = map[string]struct{}{
	"if": {}, "unless": {}, "with": {}, "each": {}, "log": {}, "lookup": {},
	"equal": {}, "ifGt": {}, "ifLt": {}, "ifEq": {}, "ifMatchesRegexStr": {}, "pluralize": {},
}

// Placeholder returns the markup that renders for a variable without a value.
// Names that are not plain identifiers are written as segment literals.
func Placeholder(name string) string {
	if strings.ContainsAny(name, unallowedIDChars) {
		return "{{[" + name + "]}}"
	}
	return "{{" + name + "}}"
}

const unallowedIDChars = " \n\t!\"#%&'()*+,./;<=>@[\\]^`{|}~"

func isPlaceholder(value string) bool {
	return strings.HasPrefix(value, "{{") && strings.HasSuffix(value, "}}")
}

// RenderTemplate renders a library template, filling unset variables from
// their declared defaults.
func RenderTemplate(tmpl *Template, vars map[string]string, renderer Renderer) (string, error) {
	if tmpl == nil {
		return "", fmt.Errorf("template is required")
	}

	names, err := Extractor{Rule: renderer.rule()}.Extract(tmpl.Text)
	if err != nil {
		return tmpl.Text, fmt.Errorf("parse template %q: %w", tmpl.Name, err)
	}

	data := make(map[string]string, len(vars))
	for key, value := range vars {
		data[key] = value
	}
	for _, variable := range tmpl.Variables {
		if strings.TrimSpace(data[variable.Name]) != "" {
			continue
		}
		if variable.Default != "" {
			data[variable.Name] = variable.Default
			continue
		}
		if variable.Required {
			return tmpl.Text, fmt.Errorf("missing required variable %q", variable.Name)
		}
	}

	out, err := renderer.Render(tmpl.Text, NewStore(names, data))
	if err != nil {
		return out, fmt.Errorf("render template %q: %w", tmpl.Name, err)
	}
	return out, nil
}
