package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"go-medreport-scanner/pkg/models"
)

// UI renders command output for humans or as JSON.
type UI struct {
	jsonMode bool
}

// NewUI creates a new UI instance.
func NewUI(jsonMode, noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{jsonMode: jsonMode}
}

// JSON reports whether output is machine readable.
func (ui *UI) JSON() bool {
	return ui.jsonMode
}

// PrintJSON writes v to stdout.
func (ui *UI) PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgYellow).Fprintf(os.Stderr, "! %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Summary prints both halves of a summary, the preferred language first.
func (ui *UI) Summary(s models.Summary, preferred models.Language) {
	order := []models.Language{models.English, models.Hindi}
	if preferred == models.Hindi {
		order = []models.Language{models.Hindi, models.English}
	}

	heading := color.New(color.FgCyan, color.Bold)
	for i, lang := range order {
		if i > 0 {
			fmt.Println()
		}
		heading.Println(languageTitle(lang))
		fmt.Println(s.Text(lang))
	}
}

// HistoryLine prints one history entry on a single line.
func (ui *UI) HistoryLine(e models.HistoryEntry) {
	id := color.New(color.FgHiBlack).Sprint(e.ID)
	ts := color.New(color.FgBlue).Sprint(e.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("%s  %s  %s\n", ts, id, preview(e.Summary.English, 60))
}

func languageTitle(lang models.Language) string {
	if lang == models.Hindi {
		return "Hindi Summary"
	}
	return "English Summary"
}

func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
