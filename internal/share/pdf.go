package share

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"go-medreport-scanner/internal/logger"
)

// PDFFileName is the transient artifact produced before sharing
const PDFFileName = "Medical_Summary.pdf"

// PDFChannel renders the summary into a PDF and opens it
type PDFChannel struct {
	OutputDir string
	// FontPath points to a UTF-8 TTF. Without it Helvetica is used and
	// characters outside cp1252 are lost.
	FontPath string
	Opener   Opener
}

func (c *PDFChannel) Name() ChannelName { return PDF }

func (c *PDFChannel) Share(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.Render(msg)
	if err != nil {
		return err
	}
	if c.Opener == nil {
		return nil
	}
	return c.Opener.OpenFile(path)
}

// Render writes the PDF and returns its path
func (c *PDFChannel) Render(msg Message) (string, error) {
	dir := c.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create pdf dir: %w", err)
	}
	path := filepath.Join(dir, PDFFileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(msg.Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	family := "Helvetica"
	tr := func(s string) string { return s }
	if c.FontPath != "" {
		family = "report"
		pdf.AddUTF8Font(family, "", c.FontPath)
		pdf.AddUTF8Font(family, "B", c.FontPath)
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
		logger.WithField("channel", PDF).Debug("No PDF font configured, using Helvetica")
	}
	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("load pdf font: %w", err)
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 16)
	pdf.MultiCell(0, 9, tr(msg.Title), "", "L", false)
	pdf.Ln(6)
	pdf.SetFont(family, "", 12)
	pdf.MultiCell(0, 6, tr(msg.Content), "", "L", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}
