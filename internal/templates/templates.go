// Package templates extracts, reconciles and renders Handlebars text templates
// and loads the template library.
package templates

// Template is a named entry of the template library.
type Template struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Text        string        `yaml:"text" json:"text"`
	Variables   []TemplateVar `yaml:"variables,omitempty" json:"variables,omitempty"`
	Tags        []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Source      string        `yaml:"-" json:"source"` // file path or "builtin"
}

// TemplateVar documents a variable used in a library template.
type TemplateVar struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool   `yaml:"required" json:"required"`
}

// Describe returns the documented description of a variable, if any.
func (t *Template) Describe(name string) string {
	if t == nil {
		return ""
	}
	for _, v := range t.Variables {
		if v.Name == name {
			return v.Description
		}
	}
	return ""
}
