package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/templates"
)

var (
	varsSource templateSource
	varsRule   string
)

func init() {
	rootCmd.AddCommand(varsCmd)
	varsCmd.Flags().StringVar(&varsSource.text, "text", "", "template text")
	varsCmd.Flags().StringVarP(&varsSource.template, "template", "t", "", "library template name")
	varsCmd.Flags().StringVar(&varsRule, "rule", "", "extraction rule (first-param or path)")
}

var varsCmd = &cobra.Command{
	Use:   "vars [file|-]",
	Short: "List the variables of a template",
	Long:  "List the variable names referenced by top-level placeholders, in first-occurrence order.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, tmpl, err := varsSource.resolve(args)
		if err != nil {
			return err
		}

		rule := GetConfig().Rule()
		if varsRule != "" {
			if rule, err = templates.ParseRule(varsRule); err != nil {
				return err
			}
		}

		names, err := templates.Extractor{Rule: rule}.Extract(text)
		if err != nil {
			var parseErr *templates.ParseError
			if errors.As(err, &parseErr) && (IsJSONOutput() || IsJSONLOutput()) {
				return WriteOutput(os.Stdout, VarsResult{Variables: []string{}, ParseError: parseErr})
			}
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			result := VarsResult{Variables: names}
			for _, name := range names {
				if desc := tmpl.Describe(name); desc != "" {
					if result.Descriptions == nil {
						result.Descriptions = map[string]string{}
					}
					result.Descriptions[name] = desc
				}
			}
			return WriteOutput(os.Stdout, result)
		}

		for _, name := range names {
			if desc := tmpl.Describe(name); desc != "" {
				fmt.Printf("%s\t%s\n", name, desc)
				continue
			}
			fmt.Println(name)
		}
		return nil
	},
}

// VarsResult is the JSON payload of `tplstr vars`.
type VarsResult struct {
	Variables    []string              `json:"variables"`
	Descriptions map[string]string     `json:"descriptions,omitempty"`
	ParseError   *templates.ParseError `json:"parse_error,omitempty"`
}
