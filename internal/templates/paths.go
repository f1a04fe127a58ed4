package templates

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrTemplateNotFound is returned when no library template has the requested name.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateSearchPaths returns library directories in precedence order:
// extra directories, the project directory, the user config directory and
// the system share directory.
func TemplateSearchPaths(projectDir string, extraDirs ...string) []string {
	paths := make([]string, 0, len(extraDirs)+3)
	for _, dir := range extraDirs {
		if dir != "" {
			paths = append(paths, dir)
		}
	}
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".tplstr", "templates"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "tplstr", "templates"))
	}
	paths = append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "tplstr", "templates"))
	return paths
}

// LoadTemplatesFromSearchPaths loads the template library. A name defined in
// more than one place resolves to its first hit; builtins come last.
func LoadTemplatesFromSearchPaths(projectDir string, extraDirs ...string) ([]*Template, error) {
	var resolved []*Template
	seen := make(map[string]struct{})
	add := func(list []*Template) {
		for _, tmpl := range list {
			if _, exists := seen[tmpl.Name]; exists {
				continue
			}
			seen[tmpl.Name] = struct{}{}
			resolved = append(resolved, tmpl)
		}
	}

	for _, dir := range TemplateSearchPaths(projectDir, extraDirs...) {
		list, err := LoadTemplatesFromDir(dir)
		if err != nil {
			return nil, err
		}
		add(list)
	}

	builtins, err := LoadBuiltinTemplates()
	if err != nil {
		return nil, err
	}
	add(builtins)

	return resolved, nil
}
