package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/receipt"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show and prune update receipts",
		Long: `History lists the receipts written after every finished update attempt.

Receipts are stored in the history directory from the Hoistfile
(default ~/.local/state/hoist/history). They are an audit trail only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd.OutOrStdout(), hoistfile)
		},
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List receipts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd.OutOrStdout(), hoistfile)
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one receipt",
		Long:  `Show prints a receipt by attempt ID or unique prefix. Use 'latest' for the most recent.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd.OutOrStdout(), hoistfile, args[0])
		},
	}
}

func newHistoryPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old receipts",
		Long: `Prune deletes old receipts, keeping only the most recent N.

By default, keeps history.keep from the Hoistfile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = hoistfile.History.Keep
			}
			return runHistoryPrune(cmd.OutOrStdout(), hoistfile, keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", config.DefaultHistoryKeep, "Number of receipts to keep")

	return cmd
}

func historyManager(cfg *config.Hoistfile) *receipt.Manager {
	return receipt.NewManager(expandHomePath(cfg.History.Dir), hoistVersion)
}

func runHistoryList(w io.Writer, cfg *config.Hoistfile) error {
	receipts, err := historyManager(cfg).List()
	if err != nil {
		return err
	}

	writer, err := newWriter(w)
	if err != nil {
		return err
	}

	report := output.HistoryReport{Entries: make([]output.HistoryEntry, 0, len(receipts))}
	for _, r := range receipts {
		report.Entries = append(report.Entries, output.HistoryEntry{
			ID:         r.ID,
			Version:    r.Version,
			State:      r.State.String(),
			Location:   r.Location,
			Error:      r.Error,
			FinishedAt: r.FinishedAt,
		})
	}
	return writer.Write(report)
}

func runHistoryShow(w io.Writer, cfg *config.Hoistfile, id string) error {
	r, err := historyManager(cfg).Get(id)
	if err != nil {
		return err
	}

	writer, err := newWriter(w)
	if err != nil {
		return err
	}
	if !writer.IsText() {
		return writer.Write(r)
	}

	_, _ = fmt.Fprintf(w, "ID:       %s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Version:  %s\n", r.Version)
	_, _ = fmt.Fprintf(w, "State:    %s\n", r.State)
	if r.Strategy != "" {
		_, _ = fmt.Fprintf(w, "Strategy: %s\n", r.Strategy)
	}
	if r.Location != "" {
		_, _ = fmt.Fprintf(w, "Location: %s\n", r.Location)
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:    %s\n", r.Error)
	}
	_, _ = fmt.Fprintf(w, "Started:  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "Finished: %s\n", r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func runHistoryPrune(w io.Writer, cfg *config.Hoistfile, keep int) error {
	result, err := historyManager(cfg).Prune(keep)
	if err != nil {
		return err
	}

	writer, err := newWriter(w)
	if err != nil {
		return err
	}

	if !writer.IsText() {
		return writer.Write(result)
	}

	if len(result.Deleted) == 0 {
		_, _ = fmt.Fprintf(w, "No receipts to prune. Keeping %d receipts.\n", result.Kept)
		return nil
	}

	_, _ = fmt.Fprintf(w, "Pruned %d receipt(s), keeping %d:\n", len(result.Deleted), result.Kept)
	for _, r := range result.Deleted {
		_, _ = fmt.Fprintf(w, "  - %s %s (%s)\n", r.ID, r.Version, r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
