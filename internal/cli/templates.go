package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/templates"
)

var templatesTag string

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesListCmd.Flags().StringVar(&templatesTag, "tag", "", "only list templates with this tag")
}

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"tpl"},
	Short:   "Browse the template library",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		library, err := templates.LoadTemplatesFromSearchPaths(projectDir(), templateDirs()...)
		if err != nil {
			return err
		}
		library = filterByTag(library, templatesTag)

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, library)
		}
		if len(library) == 0 {
			fmt.Println("No templates found.")
			return nil
		}

		rows := make([][]string, 0, len(library))
		for _, tmpl := range library {
			rows = append(rows, []string{
				tmpl.Name,
				truncateCell(tmpl.Description, 48),
				strings.Join(tmpl.Tags, ","),
				sourceLabel(tmpl.Source),
			})
		}
		return writeTable(os.Stdout, []string{"NAME", "DESCRIPTION", "TAGS", "SOURCE"}, rows)
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a library template and its variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := templates.FindTemplate(projectDir(), args[0], templateDirs()...)
		if err != nil {
			return &PreflightError{
				Message:  err.Error(),
				Hint:     "List available templates",
				NextStep: "tplstr templates list",
			}
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, tmpl)
		}

		fmt.Printf("Name:        %s\n", tmpl.Name)
		if tmpl.Description != "" {
			fmt.Printf("Description: %s\n", tmpl.Description)
		}
		if len(tmpl.Tags) > 0 {
			fmt.Printf("Tags:        %s\n", strings.Join(tmpl.Tags, ", "))
		}
		fmt.Printf("Source:      %s\n", tmpl.Source)

		names, extractErr := templates.Extractor{Rule: GetConfig().Rule()}.Extract(tmpl.Text)
		if extractErr != nil {
			fmt.Printf("\nWarning: %v\n", extractErr)
		}
		if len(names) > 0 {
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, variableRow(tmpl, name))
			}
			fmt.Println()
			if err := writeTable(os.Stdout, []string{"VARIABLE", "REQUIRED", "DEFAULT", "DESCRIPTION"}, rows); err != nil {
				return err
			}
		}

		fmt.Println()
		fmt.Println(tmpl.Text)
		return nil
	},
}

func variableRow(tmpl *templates.Template, name string) []string {
	for _, v := range tmpl.Variables {
		if v.Name == name {
			return []string{name, formatYesNo(v.Required), v.Default, v.Description}
		}
	}
	return []string{name, formatYesNo(false), "", ""}
}

func filterByTag(library []*templates.Template, tag string) []*templates.Template {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return library
	}
	out := make([]*templates.Template, 0, len(library))
	for _, tmpl := range library {
		for _, t := range tmpl.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, tmpl)
				break
			}
		}
	}
	return out
}

func sourceLabel(source string) string {
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(source, home) {
		return "~" + strings.TrimPrefix(source, home)
	}
	return source
}
