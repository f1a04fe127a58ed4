package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/daemon"
	"github.com/affandhia/simple-template-string/internal/form"
	"github.com/affandhia/simple-template-string/internal/templates"
)

var (
	renderSource     templateSource
	renderSet        []string
	renderValuesFile string
	renderPrompt     bool
	renderRemote     string
	renderStrict     bool
)

func init() {
	rootCmd.AddCommand(renderCmd)
	flags := renderCmd.Flags()
	flags.StringVar(&renderSource.text, "text", "", "template text")
	flags.StringVarP(&renderSource.template, "template", "t", "", "library template name")
	flags.StringArrayVarP(&renderSet, "set", "s", nil, "variable value as name=value (repeatable)")
	flags.StringVarP(&renderValuesFile, "values", "f", "", "YAML or JSON file of variable values")
	flags.BoolVarP(&renderPrompt, "prompt", "p", false, "prompt for variable values")
	flags.StringVar(&renderRemote, "remote", "", "render on a tplstr daemon at host:port")
	flags.BoolVar(&renderStrict, "strict", false, "exit non-zero when rendering falls back to the raw text")
}

var renderCmd = &cobra.Command{
	Use:   "render [file|-]",
	Short: "Render a template with variable values",
	Long: `Render a Handlebars template. Variables without a value render as their own
placeholder. When the template cannot be rendered the raw text is printed
and a warning is written to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, tmpl, err := renderSource.resolve(args)
		if err != nil {
			return err
		}
		values, err := collectValues(renderValuesFile, renderSet)
		if err != nil {
			return err
		}

		if renderPrompt {
			if !IsInteractive() {
				return &PreflightError{
					Message:  "--prompt needs an interactive terminal",
					Hint:     "Pass values with --set or --values instead",
					NextStep: "tplstr render --set name=value",
				}
			}
			if values, err = promptValues(ctx, text, tmpl, values); err != nil {
				return err
			}
		}

		var result RenderResult
		if renderRemote != "" {
			result, err = renderRemotely(ctx, renderRemote, text, tmpl, values)
		} else {
			result, err = renderLocally(text, tmpl, values)
		}
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			if err := WriteOutput(os.Stdout, result); err != nil {
				return err
			}
		} else {
			fmt.Print(result.Rendered)
			if !strings.HasSuffix(result.Rendered, "\n") {
				fmt.Println()
			}
			if result.Fallback {
				fmt.Fprintf(os.Stderr, "warning: rendered raw text: %s\n", result.Error)
			}
		}

		if renderStrict && result.Fallback {
			return fmt.Errorf("render failed: %s", result.Error)
		}
		return nil
	},
}

// RenderResult is the JSON payload of `tplstr render`.
type RenderResult struct {
	Rendered   string                `json:"rendered"`
	Variables  []string              `json:"variables"`
	Values     map[string]string     `json:"values"`
	Fallback   bool                  `json:"fallback"`
	Error      string                `json:"error,omitempty"`
	ParseError *templates.ParseError `json:"parse_error,omitempty"`
}

func renderLocally(text string, tmpl *templates.Template, values map[string]string) (RenderResult, error) {
	renderer := GetConfig().Renderer()
	names, extractErr := templates.Extractor{Rule: renderer.Rule}.Extract(text)
	if names == nil {
		names = []string{}
	}

	var rendered string
	var err error
	if tmpl != nil {
		rendered, err = templates.RenderTemplate(tmpl, values, renderer)
	} else {
		rendered, err = renderer.Render(text, templates.NewStore(names, values))
	}

	result := RenderResult{
		Rendered:  rendered,
		Variables: names,
		Values:    templates.NewStore(names, values).Map(),
	}
	if err != nil {
		result.Fallback = true
		result.Error = err.Error()
	}
	var parseErr *templates.ParseError
	if errors.As(extractErr, &parseErr) {
		result.ParseError = parseErr
	}
	return result, nil
}

func renderRemotely(ctx context.Context, addr, text string, tmpl *templates.Template, values map[string]string) (RenderResult, error) {
	if tmpl != nil {
		values = withDefaults(tmpl, values)
	}

	step := startProgress("Rendering on " + addr)
	client, err := daemon.Dial(addr)
	if err != nil {
		step.Fail(err)
		return RenderResult{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	remote, err := client.Render(ctx, text, values)
	if err != nil {
		step.Fail(err)
		return RenderResult{}, &PreflightError{
			Message:  fmt.Sprintf("daemon at %s: %v", addr, err),
			Hint:     "Start the daemon or check the address",
			NextStep: "tplstr serve",
		}
	}
	step.Done()

	return RenderResult{
		Rendered:   remote.Rendered,
		Variables:  remote.Variables,
		Values:     templates.NewStore(remote.Variables, values).Map(),
		Fallback:   remote.Fallback,
		Error:      remote.Error,
		ParseError: remote.ParseError,
	}, nil
}

func promptValues(ctx context.Context, text string, tmpl *templates.Template, values map[string]string) (map[string]string, error) {
	names, err := templates.Extractor{Rule: GetConfig().Rule()}.Extract(text)
	if err != nil {
		return nil, err
	}
	filled, err := form.Fill(ctx, form.NewSurveyDriver(), tmpl, templates.NewStore(names, values))
	if err != nil {
		return nil, err
	}
	out := filled.Map()
	for name, value := range values {
		if _, ok := out[name]; !ok {
			out[name] = value
		}
	}
	return out, nil
}

// withDefaults fills unset variables from the template's declared defaults.
func withDefaults(tmpl *templates.Template, values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, v := range tmpl.Variables {
		if strings.TrimSpace(out[v.Name]) == "" && v.Default != "" {
			out[v.Name] = v.Default
		}
	}
	return out
}
