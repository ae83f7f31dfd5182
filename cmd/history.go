package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"burstq/internal/storage"
	"burstq/internal/tui/history"
	"burstq/internal/tui/result"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Browse archived runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		store, err := storage.OpenBolt(c.Storage.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			res, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			fmt.Println(result.Render(*res))
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFINISHED\tURL\tREQS\tCONC\tSUCCESS\tRPS\tP99 MS")
			for i, row := range history.Rows(runs) {
				fmt.Fprintf(tw, "%s", runs[i].ID)
				for _, col := range row {
					fmt.Fprintf(tw, "\t%s", col)
				}
				fmt.Fprintln(tw)
			}
			return tw.Flush()
		}

		if _, err := tea.NewProgram(history.NewModel(store, limit)).Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Maximum runs to show, newest first")
	historyCmd.Flags().Bool("plain", false, "Print a plain table instead of the TUI")
}
