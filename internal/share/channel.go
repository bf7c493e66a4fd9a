// Package share sends finished summaries to external destinations.
package share

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
)

// ChannelName selects a share destination
type ChannelName string

const (
	WhatsApp  ChannelName = "whatsapp"
	Email     ChannelName = "email"
	PDF       ChannelName = "pdf"
	Clipboard ChannelName = "clipboard"
	Generic   ChannelName = "generic"
)

// ParseChannel accepts channel names and "copy" as an alias for clipboard
func ParseChannel(s string) (ChannelName, error) {
	switch c := ChannelName(strings.ToLower(strings.TrimSpace(s))); c {
	case WhatsApp, Email, PDF, Clipboard, Generic:
		return c, nil
	case "copy":
		return Clipboard, nil
	default:
		return "", fmt.Errorf("unknown share channel %q", s)
	}
}

// Message is what gets shared
type Message struct {
	Title   string
	Content string
}

// Channel is one independent share integration
type Channel interface {
	Name() ChannelName
	Share(ctx context.Context, msg Message) error
}

// Opener hands URLs and files to the desktop
type Opener interface {
	OpenURL(url string) error
	OpenFile(path string) error
}

// BrowserOpener opens through the system browser or file handler
type BrowserOpener struct{}

func (BrowserOpener) OpenURL(u string) error {
	return browser.OpenURL(u)
}

func (BrowserOpener) OpenFile(path string) error {
	return browser.OpenFile(path)
}

// escape percent-encodes for URL query values, with %20 for spaces
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// WhatsAppChannel opens the WhatsApp send intent with the text prefilled
type WhatsAppChannel struct {
	Opener Opener
}

func (c *WhatsAppChannel) Name() ChannelName { return WhatsApp }

func (c *WhatsAppChannel) Share(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Opener.OpenURL("whatsapp://send?text=" + escape(msg.Content))
}

// EmailChannel opens a mailto draft
type EmailChannel struct {
	Opener Opener
}

func (c *EmailChannel) Name() ChannelName { return Email }

func (c *EmailChannel) Share(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Opener.OpenURL("mailto:?subject=" + escape(msg.Title) + "&body=" + escape(msg.Content))
}

// ClipboardChannel copies the content to the system clipboard
type ClipboardChannel struct {
	write func(string) error
}

// NewClipboardChannel uses the system clipboard
func NewClipboardChannel() *ClipboardChannel {
	return &ClipboardChannel{}
}

func (c *ClipboardChannel) Name() ChannelName { return Clipboard }

func (c *ClipboardChannel) Share(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.write != nil {
		return c.write(msg.Content)
	}
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not available on this system")
	}
	return clipboard.WriteAll(msg.Content)
}

// GenericChannel writes the titled text to a stream, the terminal in the CLI
type GenericChannel struct {
	Out io.Writer
}

func (c *GenericChannel) Name() ChannelName { return Generic }

func (c *GenericChannel) Share(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.Out, "%s\n\n%s\n", msg.Title, msg.Content)
	return err
}
