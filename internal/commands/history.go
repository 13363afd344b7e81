package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/ghostbar/internal/history"
)

var historyFormatFlag string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved transcripts",
	Long: `View and manage transcripts saved when the overlay is dismissed.

Transcripts are only written when save_history is enabled:
  ghostbar config set save_history true

` + history.ListAliases(),
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved transcripts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runHistoryList(cmd.OutOrStdout(), store)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Print a transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runHistoryShow(cmd.OutOrStdout(), store, args[0], historyFormatFlag)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete a transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runHistoryDelete(cmd.OutOrStdout(), store, args[0])
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all transcripts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runHistoryClear(cmd.OutOrStdout(), store)
	},
}

func init() {
	historyShowCmd.Flags().StringVar(&historyFormatFlag, "format", "markdown", "Output format (markdown or json)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runHistoryList(w io.Writer, store *history.Store) error {
	transcripts, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}

	if len(transcripts) == 0 {
		fmt.Fprintln(w, "No transcripts found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tID\tTITLE\tMODEL\tMESSAGES\tSAVED")

	for i, t := range transcripts {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1, shortID(t.ID), truncate(t.Title, 40), t.Model, len(t.Messages),
			history.FormatRelativeTime(t.CreatedAt))
	}

	return tw.Flush()
}

func runHistoryShow(w io.Writer, store *history.Store, ref, format string) error {
	exportFormat, err := history.ParseExportFormat(format)
	if err != nil {
		return err
	}

	t, err := history.NewResolver(store).ResolveTranscript(ref)
	if err != nil {
		return err
	}

	out, err := history.Export(t, exportFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

func runHistoryDelete(w io.Writer, store *history.Store, ref string) error {
	id, err := history.NewResolver(store).Resolve(ref)
	if err != nil {
		return err
	}

	if err := store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	fmt.Fprintf(w, "Deleted transcript: %s\n", id)
	return nil
}

func runHistoryClear(w io.Writer, store *history.Store) error {
	n, err := store.ClearAll()
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	fmt.Fprintf(w, "Deleted %d transcripts.\n", n)
	return nil
}

// shortID keeps the first block of a uuid, enough to resolve it again
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
