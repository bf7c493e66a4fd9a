package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-medreport-scanner/pkg/models"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
	}
	cmd.AddCommand(newSettingsShowCmd(), newSettingsSetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printSettings(app.History().Settings())
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	var (
		language      string
		saveToGallery bool
		darkMode      bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		Long: `Set updates only the flags that are given, for example:

  medscan settings set --language hindi
  medscan settings set --save-to-gallery=false --dark-mode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("language") {
				lang, err := resolveLanguage(language)
				if err != nil {
					return err
				}
				patch.DefaultLanguage = &lang
			}
			if flags.Changed("save-to-gallery") {
				patch.SaveToGallery = &saveToGallery
			}
			if flags.Changed("dark-mode") {
				patch.DarkMode = &darkMode
			}
			if patch == (models.SettingsPatch{}) {
				return fmt.Errorf("nothing to change, pass --language, --save-to-gallery or --dark-mode")
			}

			settings, err := app.History().SaveSettings(cmd.Context(), patch)
			if err != nil {
				return err
			}
			ui.Success("Settings saved")
			printSettings(settings)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "default summary language (english|hindi)")
	cmd.Flags().BoolVar(&saveToGallery, "save-to-gallery", false, "save enhanced scans to the gallery album")
	cmd.Flags().BoolVar(&darkMode, "dark-mode", false, "prefer a dark theme in clients")
	return cmd
}

func printSettings(s models.Settings) {
	if ui.JSON() {
		_ = ui.PrintJSON(s)
		return
	}
	fmt.Printf("default language: %s\n", s.DefaultLanguage)
	fmt.Printf("save to gallery:  %t\n", s.SaveToGallery)
	fmt.Printf("dark mode:        %t\n", s.DarkMode)
}
