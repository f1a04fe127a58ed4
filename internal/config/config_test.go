package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affandhia/simple-template-string/internal/templates"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500*time.Millisecond, cfg.Editor.TemplateDebounce)
	assert.Equal(t, "\n{{hello}}\n", cfg.Editor.DefaultTemplate)
	assert.Equal(t, templates.RuleFirstParam, cfg.Rule())
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "simple-te:textraw", cfg.Editor.DraftKey)
	assert.Empty(t, cfg.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `editor:
  template_debounce: 250ms
  draft_key: notes
render:
  escape_html: true
  extraction_rule: path
daemon:
  port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	t.Setenv("TPLSTR_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Editor.TemplateDebounce)
	assert.Equal(t, 500*time.Millisecond, cfg.Editor.ValueDebounce)
	assert.Equal(t, "notes", cfg.Editor.DraftKey)
	assert.Equal(t, 9000, cfg.Daemon.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	renderer := cfg.Renderer()
	assert.True(t, renderer.EscapeHTML)
	assert.Equal(t, templates.RulePath, renderer.Rule)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render:\n  extraction_rule: magic\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction_rule")
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
