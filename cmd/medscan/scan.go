package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/internal/pipeline"
	"go-medreport-scanner/internal/share"
	"go-medreport-scanner/pkg/models"
)

const maxSkewDegrees = 10

func newScanCmd() *cobra.Command {
	var (
		galleryRef  string
		fromGallery bool
		language    string
		channels    []string
		title       string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Capture a report and print its summary",
		Long: `Scan requests camera permission, captures a frame (or picks one from the
gallery with --gallery), enhances it and prints the summary.

Press Ctrl+C before processing starts to cancel. Once the image is being
enhanced the run can no longer be cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := resolveLanguage(language)
			if err != nil {
				return err
			}

			p := app.Pipeline()
			st, err := p.Start(cmd.Context())
			if err != nil {
				return err
			}
			if st.Stage == pipeline.StageFailed {
				return reportFailure(st)
			}

			stop := cancelOnInterrupt(p)
			if fromGallery || galleryRef != "" {
				st, err = p.PickFromGallery(context.Background(), galleryRef)
			} else {
				st, err = p.Capture(context.Background())
			}
			stop()
			if err != nil {
				return err
			}

			switch st.Stage {
			case pipeline.StageCancelled:
				ui.Warning("Scan cancelled")
				return nil
			case pipeline.StageFailed:
				return reportFailure(st)
			}

			if ui.JSON() {
				return ui.PrintJSON(st)
			}

			if !st.Enhanced {
				ui.Warning("Image enhancement failed, the original photo was used")
			}
			if st.Quality != nil && st.Quality.NeedsRetake() {
				ui.Warning("The photo looks blurry or poorly lit. Consider a retake if the summary looks wrong.")
			}
			if st.Quality != nil && st.Quality.SkewDegrees != nil && math.Abs(*st.Quality.SkewDegrees) > maxSkewDegrees {
				ui.Warning("The report looks tilted by about %.0f degrees", *st.Quality.SkewDegrees)
			}
			ui.Summary(*st.Summary, lang)
			if st.Entry != nil {
				ui.Success("Saved to history as %s", st.Entry.ID)
			}

			if len(channels) > 0 {
				return shareTo(cmd.Context(), st.Summary.Text(lang), channels, title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&galleryRef, "gallery", "", "pick a named image from the gallery instead of the camera")
	cmd.Flags().BoolVar(&fromGallery, "latest", false, "pick the most recent gallery image")
	cmd.Flags().StringVarP(&language, "language", "l", "", "summary language to show first and share (english|hindi)")
	cmd.Flags().StringSliceVar(&channels, "share", nil, "share the summary when done (whatsapp, email, pdf, clipboard, generic)")
	cmd.Flags().StringVar(&title, "title", "", "title used when sharing")

	return cmd
}

// cancelOnInterrupt cancels the run on SIGINT while cancellation is allowed.
func cancelOnInterrupt(p *pipeline.Pipeline) (stop func()) {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-sig:
				if _, err := p.Cancel(context.Background()); err != nil {
					if errors.Is(err, apperrors.ErrCancelRefused) {
						ui.Warning("Processing has started and cannot be cancelled")
						continue
					}
					logger.WithError(err).Debug("Cancel ignored")
				}
			}
		}
	}()

	return func() {
		signal.Stop(sig)
		close(done)
	}
}

func reportFailure(st pipeline.State) error {
	view := pipeline.Project(st)
	if ui.JSON() {
		if err := ui.PrintJSON(st); err != nil {
			return err
		}
	} else {
		ui.Error("%s", view.ErrorMessage)
		if view.RetakeHint {
			ui.Warning("Run medscan scan again to retake")
		}
	}
	return fmt.Errorf("scan failed: %s", st)
}

func resolveLanguage(flag string) (models.Language, error) {
	if flag == "" {
		return app.History().Settings().DefaultLanguage, nil
	}
	lang, err := models.ParseLanguage(flag)
	if err != nil {
		return "", apperrors.NewValidationError("language must be english or hindi", err)
	}
	return lang, nil
}

func shareTo(ctx context.Context, content string, names []string, title string) error {
	channels, err := parseChannels(names)
	if err != nil {
		return err
	}

	results := app.Dispatcher().Broadcast(ctx, content, channels, title)
	if ui.JSON() {
		return ui.PrintJSON(models.ShareResponse{Results: results})
	}

	failed := 0
	for _, r := range results {
		if r.OK {
			ui.Success("Shared via %s", r.Channel)
			continue
		}
		failed++
		ui.Error("Share via %s failed: %s", r.Channel, r.Error)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d share channels failed", failed, len(results))
	}
	return nil
}

// parseChannels validates names and drops repeats, keeping the first order
func parseChannels(names []string) ([]share.ChannelName, error) {
	seen := make(map[share.ChannelName]bool, len(names))
	channels := make([]share.ChannelName, 0, len(names))
	for _, n := range names {
		ch, err := share.ParseChannel(n)
		if err != nil {
			return nil, err
		}
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}
	return channels, nil
}
