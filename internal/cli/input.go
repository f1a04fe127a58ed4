package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/affandhia/simple-template-string/internal/templates"
)

// templateSource is where a command reads its template from.
type templateSource struct {
	text     string
	template string
}

func (s *templateSource) resolve(args []string) (string, *templates.Template, error) {
	switch {
	case s.text != "" && (s.template != "" || len(args) > 0):
		return "", nil, fmt.Errorf("--text cannot be combined with --template or a file")
	case s.template != "" && len(args) > 0:
		return "", nil, fmt.Errorf("--template cannot be combined with a file")
	case s.text != "":
		return s.text, nil, nil
	case s.template != "":
		tmpl, err := templates.FindTemplate(projectDir(), s.template, templateDirs()...)
		if err != nil {
			return "", nil, &PreflightError{
				Message:  err.Error(),
				Hint:     "List available templates",
				NextStep: "tplstr templates list",
			}
		}
		return tmpl.Text, tmpl, nil
	case len(args) > 0 && args[0] != "-":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("failed to read template file: %w", err)
		}
		return string(data), nil, nil
	case len(args) > 0 || !stdinIsTerminal():
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read template from stdin: %w", err)
		}
		return string(data), nil, nil
	default:
		return "", nil, &PreflightError{
			Message:  "no template given",
			Hint:     "Pass a file, pipe text on stdin, or use --text / --template",
			NextStep: `tplstr vars --text "Hello {{name}}"`,
		}
	}
}

// parseAssignments parses repeated name=value flags.
func parseAssignments(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q (expected name=value)", pair)
		}
		values[name] = value
	}
	return values, nil
}

// loadValuesFile reads a flat YAML or JSON mapping of variable values.
func loadValuesFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file: %w", err)
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case nil:
			values[name] = ""
		case string:
			values[name] = v
		case bool, int, int64, float64:
			values[name] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("value of %q in %s must be a scalar", name, path)
		}
	}
	return values, nil
}

// collectValues merges the values file with --set pairs; --set wins.
func collectValues(valuesFile string, pairs []string) (map[string]string, error) {
	values := map[string]string{}
	if valuesFile != "" {
		fromFile, err := loadValuesFile(valuesFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			values[k] = v
		}
	}
	set, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		values[k] = v
	}
	return values, nil
}
