package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/affandhia/simple-template-string/internal/preview"
	"github.com/affandhia/simple-template-string/internal/templates"
	"github.com/affandhia/simple-template-string/internal/tui"
)

var (
	uiTemplate string
	uiPreview  bool
)

func init() {
	rootCmd.AddCommand(uiCmd)
	uiCmd.Flags().StringVarP(&uiTemplate, "template", "t", "", "start from a library template")
	uiCmd.Flags().BoolVar(&uiPreview, "preview", false, "also serve the browser preview")
	uiCmd.Flags().StringVar(&draftKey, "key", "", "draft key (default editor.draft_key)")
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the template editor",
	Long: `Open the terminal editor. The template text is restored from the draft,
every placeholder gets an input, and the output re-renders as you type.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func runTUI(ctx context.Context) error {
	if IsNonInteractive() {
		return &PreflightError{
			Message:  "the editor requires an interactive terminal",
			Hint:     "Run with a TTY, or use render / vars",
			NextStep: "tplstr render --help",
		}
	}

	library, err := templates.LoadTemplatesFromSearchPaths(projectDir(), templateDirs()...)
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	coordinator, err := startDraftSession(ctx, database, draftKey)
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	if uiTemplate != "" {
		tmpl, err := templates.FindTemplate(projectDir(), uiTemplate, templateDirs()...)
		if err != nil {
			return &PreflightError{
				Message:  err.Error(),
				Hint:     "List available templates",
				NextStep: "tplstr templates list",
			}
		}
		if err := coordinator.EditTemplate(tmpl.Text); err != nil {
			return err
		}
		if err := applyValues(ctx, coordinator, withDefaults(tmpl, nil)); err != nil {
			return err
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(groupCtx)
	defer cancel()

	if uiPreview {
		cfg := GetConfig()
		server := preview.New(preview.Config{Host: cfg.Preview.Host, Port: cfg.Preview.Port}, coordinator)
		group.Go(func() error {
			return server.Run(runCtx)
		})
	}

	group.Go(func() error {
		defer cancel()
		err := tui.Run(runCtx, tui.Options{
			Editor:  coordinator,
			Library: library,
			Theme:   GetConfig().TUI.Theme,
		})
		if errors.Is(err, tea.ErrProgramKilled) && runCtx.Err() != nil {
			return nil
		}
		return err
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}
