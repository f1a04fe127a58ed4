package templates

import (
	"cmp"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
)

// Builtin library entries ship inside the binary and rank below every
// template found on the search paths.
//
//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinSource is the Source of templates loaded from the binary.
const BuiltinSource = "builtin"

// LoadBuiltinTemplates parses the embedded library, ordered by name. Each
// entry's Source is BuiltinSource.
func LoadBuiltinTemplates() ([]*Template, error) {
	files, err := fs.Glob(builtinFS, "builtin/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list builtin templates: %w", err)
	}

	library := make([]*Template, 0, len(files))
	for _, file := range files {
		data, err := builtinFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read builtin template %s: %w", path.Base(file), err)
		}
		tmpl, err := parseTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("builtin template %s: %w", path.Base(file), err)
		}
		tmpl.Source = BuiltinSource
		library = append(library, tmpl)
	}

	slices.SortFunc(library, func(a, b *Template) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return library, nil
}
