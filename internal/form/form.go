package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/affandhia/simple-template-string/internal/templates"
)

// Fill asks for the value of every variable in values, in variable order.
// Existing values and declared defaults are offered as answers. tmpl may be
// nil when the text does not come from the library.
func Fill(ctx context.Context, driver PromptDriver, tmpl *templates.Template, values templates.Store) (templates.Store, error) {
	out := values
	for _, name := range values.Names() {
		decl := declared(tmpl, name)

		cfg := InputConfig{
			Message: name,
			Help:    tmpl.Describe(name),
			Default: values.Value(name),
		}
		if cfg.Default == "" {
			cfg.Default = decl.Default
		}
		if decl.Required {
			cfg.Message += " (required)"
			cfg.Validator = func(answer string) error {
				if strings.TrimSpace(answer) == "" {
					return fmt.Errorf("%s is required", name)
				}
				return nil
			}
		}

		answer, err := driver.Input(ctx, cfg)
		if err != nil {
			return values, fmt.Errorf("prompt %s: %w", name, err)
		}
		out = out.With(name, answer)
	}
	return out, nil
}

// ChooseTemplate asks the user to pick one of the library templates.
func ChooseTemplate(ctx context.Context, driver PromptDriver, library []*templates.Template) (*templates.Template, error) {
	if len(library) == 0 {
		return nil, templates.ErrTemplateNotFound
	}
	options := make([]string, len(library))
	for i, tmpl := range library {
		options[i] = tmpl.Name
		if tmpl.Description != "" {
			options[i] += " - " + tmpl.Description
		}
	}

	idx, err := driver.Select(ctx, SelectConfig{
		Message:  "Template",
		Options:  options,
		PageSize: 10,
	})
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(library) {
		return nil, fmt.Errorf("invalid template selection %d", idx)
	}
	return library[idx], nil
}

// EditText asks for a template text, starting from current.
func EditText(ctx context.Context, driver PromptDriver, current string) (string, error) {
	return driver.TextArea(ctx, InputConfig{
		Message: "Template text",
		Help:    "Handlebars placeholders like {{name}} become variables.",
		Default: current,
	})
}

func declared(tmpl *templates.Template, name string) templates.TemplateVar {
	if tmpl == nil {
		return templates.TemplateVar{}
	}
	for _, v := range tmpl.Variables {
		if v.Name == name {
			return v
		}
	}
	return templates.TemplateVar{}
}
