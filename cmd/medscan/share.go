package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "go-medreport-scanner/internal/errors"
)

func newShareCmd() *cobra.Command {
	var (
		channels []string
		language string
		title    string
	)

	cmd := &cobra.Command{
		Use:   "share ENTRY_ID",
		Short: "Share a saved summary",
		Long: `Share sends one saved summary through each requested channel. A failing
channel does not stop the others.

Channels: whatsapp, email, pdf, clipboard, generic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok := app.History().Entry(args[0])
			if !ok {
				return apperrors.NewNotFoundError(fmt.Sprintf("history entry %q not found", args[0]), nil)
			}
			lang, err := resolveLanguage(language)
			if err != nil {
				return err
			}
			return shareTo(cmd.Context(), entry.Summary.Text(lang), channels, title)
		},
	}

	cmd.Flags().StringSliceVar(&channels, "channel", []string{"generic"}, "channels to share through")
	cmd.Flags().StringVarP(&language, "language", "l", "", "summary language (english|hindi)")
	cmd.Flags().StringVar(&title, "title", "", "share title (default from SHARE_TITLE)")
	return cmd
}
