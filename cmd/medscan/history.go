package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/pkg/models"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show or clear saved summaries",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryShowCmd(), newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved summaries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := app.History().Entries()
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if ui.JSON() {
				return ui.PrintJSON(models.HistoryResponse{Entries: entries, Count: len(entries)})
			}
			if len(entries) == 0 {
				ui.Warning("No saved summaries")
				return nil
			}
			for _, e := range entries {
				ui.HistoryLine(e)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n entries")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "show ENTRY_ID",
		Short: "Print one saved summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok := app.History().Entry(args[0])
			if !ok {
				return apperrors.NewNotFoundError(fmt.Sprintf("history entry %q not found", args[0]), nil)
			}
			if ui.JSON() {
				return ui.PrintJSON(entry)
			}
			lang, err := resolveLanguage(language)
			if err != nil {
				return err
			}
			ui.Summary(entry.Summary, lang)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "language to show first (english|hindi)")
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.History().Clear(cmd.Context()); err != nil {
				return err
			}
			ui.Success("History cleared")
			return nil
		},
	}
}
