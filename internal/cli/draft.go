package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/db"
	"github.com/affandhia/simple-template-string/internal/events"
	"github.com/affandhia/simple-template-string/internal/models"
)

var (
	draftKey    string
	draftSource templateSource
)

func init() {
	rootCmd.AddCommand(draftCmd)
	draftCmd.AddCommand(draftShowCmd, draftSetCmd, draftClearCmd, draftListCmd)
	draftCmd.PersistentFlags().StringVar(&draftKey, "key", "", "draft key (default editor.draft_key)")
	draftSetCmd.Flags().StringVar(&draftSource.text, "text", "", "template text")
	draftSetCmd.Flags().StringVarP(&draftSource.template, "template", "t", "", "library template name")
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Manage the persisted template draft",
	Long:  "The editor restores its template text from the draft on start and saves every edit to it.",
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the draft text",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		draft, err := db.NewDraftRepository(database).Get(cmd.Context(), resolveDraftKey())
		if errors.Is(err, db.ErrDraftNotFound) {
			return &PreflightError{
				Message:  fmt.Sprintf("no draft saved under %q", resolveDraftKey()),
				Hint:     "Open the editor or save one",
				NextStep: "tplstr draft set <file>",
			}
		}
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, draft)
		}
		fmt.Print(draft.Text)
		return nil
	},
}

var draftSetCmd = &cobra.Command{
	Use:   "set [file|-]",
	Short: "Replace the draft text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _, err := draftSource.resolve(args)
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := cmd.Context()
		key := resolveDraftKey()
		if err := db.NewDraftRepository(database).Save(ctx, &models.Draft{Key: key, Text: text}); err != nil {
			return err
		}
		if err := events.LogDraftSaved(ctx, db.NewEventRepository(database), key, text); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]any{"key": key, "length": len(text), "saved": true})
		}
		fmt.Printf("Saved draft %q (%d bytes)\n", key, len(text))
		return nil
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the draft so the editor starts from the default template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := cmd.Context()
		key := resolveDraftKey()
		deleted := true
		if err := db.NewDraftRepository(database).Delete(ctx, key); err != nil {
			if !errors.Is(err, db.ErrDraftNotFound) {
				return err
			}
			deleted = false
		}
		if deleted {
			if err := events.LogDraftDeleted(ctx, db.NewEventRepository(database), key); err != nil {
				return err
			}
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]any{"key": key, "deleted": deleted})
		}
		if deleted {
			fmt.Printf("Deleted draft %q\n", key)
		} else {
			fmt.Printf("No draft saved under %q\n", key)
		}
		return nil
	},
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		drafts, err := db.NewDraftRepository(database).List(cmd.Context())
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, drafts)
		}
		if len(drafts) == 0 {
			fmt.Println("No drafts saved.")
			return nil
		}
		rows := make([][]string, 0, len(drafts))
		for _, d := range drafts {
			rows = append(rows, []string{
				d.Key,
				fmt.Sprintf("%d", len(d.Text)),
				d.UpdatedAt.Local().Format(time.DateTime),
			})
		}
		return writeTable(os.Stdout, []string{"KEY", "BYTES", "UPDATED"}, rows)
	},
}

func resolveDraftKey() string {
	if draftKey != "" {
		return draftKey
	}
	return GetConfig().Editor.DraftKey
}
