package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/logging"
	"github.com/affandhia/simple-template-string/internal/session"
	"github.com/affandhia/simple-template-string/internal/watcher"
)

const fileSettleDelay = 50 * time.Millisecond

var (
	watchSet        []string
	watchValuesFile string
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringArrayVarP(&watchSet, "set", "s", nil, "variable value as name=value (repeatable)")
	watchCmd.Flags().StringVarP(&watchValuesFile, "values", "f", "", "YAML or JSON file of variable values")
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-render a template file whenever it changes",
	Long: `Watch a template file and print the rendered output after every change.
With --jsonl each rendering is written as a snapshot JSON line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := collectValues(watchValuesFile, watchSet)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		coordinator, stop, err := watchFile(ctx, args[0], values)
		if err != nil {
			return err
		}
		defer stop()

		return printSnapshots(ctx, os.Stdout, coordinator)
	},
}

// watchFile starts a session over the content of path and keeps it in step
// with the file. values are applied after the first commit.
func watchFile(ctx context.Context, path string, values map[string]string) (*session.Coordinator, func(), error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read template file: %w", err)
	}

	coordinator, err := startMemorySession(ctx, string(data))
	if err != nil {
		return nil, nil, err
	}
	if err := applyValues(ctx, coordinator, values); err != nil {
		coordinator.Stop()
		return nil, nil, err
	}

	logger := logging.Component("watch")
	fw, err := watcher.New(path, fileSettleDelay, func(text string, removed bool) {
		if removed {
			logger.Warn().Str("path", path).Msg("template file removed; keeping last text")
			return
		}
		if err := coordinator.EditTemplate(text); err != nil {
			logger.Debug().Err(err).Msg("edit after stop")
		}
	})
	if err != nil {
		coordinator.Stop()
		return nil, nil, err
	}
	if err := fw.Start(ctx); err != nil {
		coordinator.Stop()
		return nil, nil, err
	}

	stop := func() {
		_ = fw.Stop()
		_ = coordinator.Stop()
	}
	return coordinator, stop, nil
}

// printSnapshots writes each newly committed rendering until ctx is done.
func printSnapshots(ctx context.Context, out io.Writer, source interface {
	Subscribe() (<-chan session.Snapshot, func())
}) error {
	updates, cancel := source.Subscribe()
	defer cancel()

	var last *session.Snapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.State != session.StateIdle {
				continue
			}
			if last != nil && last.Rendered == snap.Rendered && last.Validation() == snap.Validation() {
				continue
			}
			last = &snap
			if err := writeSnapshot(out, snap); err != nil {
				return err
			}
		}
	}
}

func writeSnapshot(out io.Writer, snap session.Snapshot) error {
	if IsJSONLOutput() || IsJSONOutput() {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}

	fmt.Fprintf(out, "── revision %d · %s ──\n", snap.Revision, snap.UpdatedAt.Local().Format(time.TimeOnly))
	if msg := snap.Validation(); msg != "" {
		fmt.Fprintln(out, msg)
	} else if snap.RenderError != "" {
		fmt.Fprintf(out, "warning: rendered raw text: %s\n", snap.RenderError)
	}
	_, err := fmt.Fprintln(out, snap.Rendered)
	return err
}
