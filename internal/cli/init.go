package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/affandhia/simple-template-string/internal/config"
)

var (
	initForce bool

	configDirFunc = config.DefaultConfigDir
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file, data directory and database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := []func() initResult{
			createConfigFile,
			createDataDir,
			createTemplatesDir,
			initDatabase,
		}

		results := make([]initResult, 0, len(steps))
		failed := false
		for _, step := range steps {
			result := step()
			results = append(results, result)
			if result.status == "failed" {
				failed = true
				break
			}
		}

		if IsJSONOutput() || IsJSONLOutput() {
			out := make([]map[string]string, 0, len(results))
			for _, r := range results {
				out = append(out, map[string]string{"step": r.name, "status": r.status, "message": r.message})
			}
			if err := WriteOutput(os.Stdout, out); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				fmt.Printf("%-8s %s: %s\n", "["+r.status+"]", r.name, r.message)
			}
		}

		if failed {
			return fmt.Errorf("init failed")
		}
		return nil
	},
}

type initResult struct {
	name    string
	status  string // done, skipped or failed
	message string
}

func createConfigFile() initResult {
	const name = "Config file"
	dir := configDirFunc()
	path := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(path); err == nil && !initForce {
		return initResult{name: name, status: "skipped", message: path + " already exists (use --force to overwrite)"}
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(configTemplate), &parsed); err != nil {
		return initResult{name: name, status: "failed", message: fmt.Sprintf("built-in config is invalid: %v", err)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	return initResult{name: name, status: "done", message: path}
}

func createDataDir() initResult {
	const name = "Data directory"
	dir := GetConfig().Global.DataDir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return initResult{name: name, status: "skipped", message: dir + " already exists"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	return initResult{name: name, status: "done", message: dir}
}

func createTemplatesDir() initResult {
	const name = "Templates directory"
	dir := filepath.Join(configDirFunc(), "templates")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return initResult{name: name, status: "skipped", message: dir + " already exists"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	example := filepath.Join(dir, "greeting.yaml")
	if err := os.WriteFile(example, []byte(exampleTemplate), 0o644); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	return initResult{name: name, status: "done", message: dir}
}

func initDatabase() initResult {
	const name = "Database"
	database, err := openDatabase()
	if err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	defer database.Close()
	return initResult{name: name, status: "done", message: database.Path()}
}

const configTemplate = `# tplstr Configuration File
# Every setting can be overridden with TPLSTR_<SECTION>_<KEY>, e.g. TPLSTR_LOGGING_LEVEL=debug.

global:
  # data_dir: ~/.local/share/tplstr
  # Extra directories searched for library templates, before the defaults.
  template_dirs: []

database:
  # path: ~/.local/share/tplstr/tplstr.db
  busy_timeout_ms: 5000

logging:
  level: info
  # console or json; empty picks console on a terminal.
  format: ""

editor:
  # Quiet period before a template edit is committed.
  template_debounce: 500ms
  # Quiet period before a value edit is committed.
  value_debounce: 500ms
  # Text of a fresh session when no draft is saved.
  default_template: "\n{{hello}}\n"
  draft_key: "simple-te:textraw"

render:
  # first-param binds {{upper name}} to "name"; path binds it to "upper".
  extraction_rule: first-param
  escape_html: false

tui:
  # default or high-contrast
  theme: default

daemon:
  host: 127.0.0.1
  port: 7460
  rate_limit_enabled: true

preview:
  host: 127.0.0.1
  port: 7461
`

const exampleTemplate = `name: greeting
description: A short greeting
tags: [example]
text: |
  Hello {{name}},

  {{message}}

  {{sender}}
variables:
  - name: name
    description: Who the greeting is for
    required: true
  - name: message
    description: Body text
    default: Hope you are well.
  - name: sender
    description: Sign-off name
`
