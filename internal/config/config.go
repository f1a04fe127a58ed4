// Package config loads tplstr configuration from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/affandhia/simple-template-string/internal/templates"
)

// EnvPrefix is the prefix of environment overrides, e.g. TPLSTR_LOGGING_LEVEL.
const EnvPrefix = "TPLSTR"

// Config is the full application configuration.
type Config struct {
	Global   GlobalConfig   `mapstructure:"global"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Render   RenderConfig   `mapstructure:"render"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Preview  PreviewConfig  `mapstructure:"preview"`

	// Path is the file the configuration was read from, if any.
	Path string `mapstructure:"-"`
}

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	DataDir      string   `mapstructure:"data_dir"`
	TemplateDirs []string `mapstructure:"template_dirs"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout_ms"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EditorConfig configures the edit session.
type EditorConfig struct {
	TemplateDebounce time.Duration `mapstructure:"template_debounce"`
	ValueDebounce    time.Duration `mapstructure:"value_debounce"`
	DefaultTemplate  string        `mapstructure:"default_template"`
	DraftKey         string        `mapstructure:"draft_key"`
}

// RenderConfig configures extraction and rendering.
type RenderConfig struct {
	EscapeHTML     bool   `mapstructure:"escape_html"`
	ExtractionRule string `mapstructure:"extraction_rule"`
}

// TUIConfig configures the terminal UI.
type TUIConfig struct {
	Theme string `mapstructure:"theme"`
}

// DaemonConfig configures the gRPC render service.
type DaemonConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	RateLimitEnabled bool   `mapstructure:"rate_limit_enabled"`
}

// PreviewConfig configures the browser preview server.
type PreviewConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Global: GlobalConfig{
			DataDir: dataDir,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "tplstr.db"),
			BusyTimeout: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "",
		},
		Editor: EditorConfig{
			TemplateDebounce: 500 * time.Millisecond,
			ValueDebounce:    500 * time.Millisecond,
			DefaultTemplate:  "\n{{hello}}\n",
			DraftKey:         "simple-te:textraw",
		},
		Render: RenderConfig{
			EscapeHTML:     false,
			ExtractionRule: string(templates.DefaultRule),
		},
		TUI: TUIConfig{
			Theme: "default",
		},
		Daemon: DaemonConfig{
			Host:             "127.0.0.1",
			Port:             7460,
			RateLimitEnabled: true,
		},
		Preview: PreviewConfig{
			Host: "127.0.0.1",
			Port: 7461,
		},
	}
}

// Load reads configuration from path, or from the default search locations
// when path is empty. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the application cannot use.
func (c *Config) Validate() error {
	if c.Editor.TemplateDebounce < 0 || c.Editor.ValueDebounce < 0 {
		return fmt.Errorf("editor debounce must not be negative")
	}
	if strings.TrimSpace(c.Editor.DraftKey) == "" {
		return fmt.Errorf("editor.draft_key is required")
	}
	if _, err := templates.ParseRule(c.Render.ExtractionRule); err != nil {
		return fmt.Errorf("render.extraction_rule: %w", err)
	}
	if c.Daemon.Port < 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	if c.Preview.Port < 0 || c.Preview.Port > 65535 {
		return fmt.Errorf("preview.port %d out of range", c.Preview.Port)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}
	return nil
}

// Rule returns the configured extraction rule.
func (c *Config) Rule() templates.Rule {
	rule, err := templates.ParseRule(c.Render.ExtractionRule)
	if err != nil {
		return templates.DefaultRule
	}
	return rule
}

// Renderer returns a renderer configured from the render section.
func (c *Config) Renderer() templates.Renderer {
	return templates.Renderer{Rule: c.Rule(), EscapeHTML: c.Render.EscapeHTML}
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/tplstr or ~/.config/tplstr.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tplstr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tplstr")
	}
	return filepath.Join(home, ".config", "tplstr")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tplstr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tplstr")
	}
	return filepath.Join(home, ".local", "share", "tplstr")
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.template_dirs", cfg.Global.TemplateDirs)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.busy_timeout_ms", cfg.Database.BusyTimeout)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("editor.template_debounce", cfg.Editor.TemplateDebounce)
	v.SetDefault("editor.value_debounce", cfg.Editor.ValueDebounce)
	v.SetDefault("editor.default_template", cfg.Editor.DefaultTemplate)
	v.SetDefault("editor.draft_key", cfg.Editor.DraftKey)
	v.SetDefault("render.escape_html", cfg.Render.EscapeHTML)
	v.SetDefault("render.extraction_rule", cfg.Render.ExtractionRule)
	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("daemon.host", cfg.Daemon.Host)
	v.SetDefault("daemon.port", cfg.Daemon.Port)
	v.SetDefault("daemon.rate_limit_enabled", cfg.Daemon.RateLimitEnabled)
	v.SetDefault("preview.host", cfg.Preview.Host)
	v.SetDefault("preview.port", cfg.Preview.Port)
}
