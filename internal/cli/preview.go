package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/preview"
)

var (
	previewHTML       bool
	previewPort       int
	previewSet        []string
	previewValuesFile string
)

func init() {
	rootCmd.AddCommand(previewCmd)
	flags := previewCmd.Flags()
	flags.BoolVar(&previewHTML, "html", false, "also show the output as sanitized HTML")
	flags.IntVar(&previewPort, "port", 0, "port to listen on (default preview.port)")
	flags.StringArrayVarP(&previewSet, "set", "s", nil, "variable value as name=value (repeatable)")
	flags.StringVarP(&previewValuesFile, "values", "f", "", "YAML or JSON file of variable values")
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Serve a live browser preview of a template file",
	Long: `Serve the rendered output of a template file over HTTP. Open the printed
address in a browser; the page updates over a websocket whenever the file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := collectValues(previewValuesFile, previewSet)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		coordinator, stop, err := watchFile(ctx, args[0], values)
		if err != nil {
			return err
		}
		defer stop()

		cfg := GetConfig()
		config := preview.Config{Host: cfg.Preview.Host, Port: cfg.Preview.Port, HTML: previewHTML}
		if previewPort > 0 {
			config.Port = previewPort
		}
		server := preview.New(config, coordinator)

		if !IsJSONOutput() && !IsJSONLOutput() {
			fmt.Fprintf(os.Stderr, "Preview at http://%s (Ctrl+C to stop)\n", server.Addr())
		}
		return server.Run(ctx)
	},
}
