package share

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/pkg/models"
)

type recordingOpener struct {
	mu    sync.Mutex
	urls  []string
	files []string
	err   error
}

func (o *recordingOpener) OpenURL(u string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, u)
	return o.err
}

func (o *recordingOpener) OpenFile(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files = append(o.files, path)
	return o.err
}

type failingChannel struct {
	name  ChannelName
	err   error
	panic bool
}

func (c *failingChannel) Name() ChannelName { return c.name }

func (c *failingChannel) Share(context.Context, Message) error {
	if c.panic {
		panic("integration crashed")
	}
	return c.err
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelName
		wantErr bool
	}{
		{"whatsapp", WhatsApp, false},
		{" Email ", Email, false},
		{"pdf", PDF, false},
		{"copy", Clipboard, false},
		{"clipboard", Clipboard, false},
		{"generic", Generic, false},
		{"fax", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhatsAppAndEmailURLs(t *testing.T) {
	opener := &recordingOpener{}
	d := NewDispatcher("", &WhatsAppChannel{Opener: opener}, &EmailChannel{Opener: opener})
	ctx := context.Background()

	require.NoError(t, d.Share(ctx, "BIRADS 5 & biopsy", WhatsApp, ""))
	require.NoError(t, d.Share(ctx, "BIRADS 5 & biopsy", Email, ""))

	require.Len(t, opener.urls, 2)
	assert.Equal(t, "whatsapp://send?text=BIRADS%205%20%26%20biopsy", opener.urls[0])
	assert.Equal(t, "mailto:?subject=Medical%20Report%20Summary&body=BIRADS%205%20%26%20biopsy", opener.urls[1])
}

func TestClipboardChannel(t *testing.T) {
	var copied string
	c := &ClipboardChannel{write: func(s string) error {
		copied = s
		return nil
	}}

	require.NoError(t, NewDispatcher("", c).Share(context.Background(), "text", Clipboard, ""))
	assert.Equal(t, "text", copied)
}

func TestGenericChannel(t *testing.T) {
	var out bytes.Buffer
	d := NewDispatcher("Report", &GenericChannel{Out: &out})

	require.NoError(t, d.Share(context.Background(), "hello", Generic, ""))
	assert.Equal(t, "Report\n\nhello\n", out.String())
}

func TestPDFChannel_WritesArtifact(t *testing.T) {
	dir := t.TempDir()
	opener := &recordingOpener{}
	c := &PDFChannel{OutputDir: dir, Opener: opener}

	require.NoError(t, NewDispatcher("", c).Share(context.Background(), "The lymph nodes appear normal.", PDF, ""))

	require.Len(t, opener.files, 1)
	assert.True(t, strings.HasSuffix(opener.files[0], PDFFileName))
	data, err := os.ReadFile(opener.files[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFChannel_MissingFont(t *testing.T) {
	c := &PDFChannel{OutputDir: t.TempDir(), FontPath: "/does/not/exist.ttf"}

	_, err := c.Render(Message{Title: "t", Content: "c"})
	assert.Error(t, err)
}

func TestDispatcher_Errors(t *testing.T) {
	d := NewDispatcher("", &failingChannel{name: Email, err: errors.New("no mail client")})
	ctx := context.Background()

	err := d.Share(ctx, "text", Email, "")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeShareChannel, appErr.Type)
	assert.Equal(t, "email", appErr.Details)

	assert.True(t, apperrors.IsType(d.Share(ctx, "text", PDF, ""), apperrors.ErrorTypeValidation))
	assert.True(t, apperrors.IsType(d.Share(ctx, "  ", Email, ""), apperrors.ErrorTypeValidation))
}

func TestDispatcher_BroadcastIsolatesFailures(t *testing.T) {
	var out bytes.Buffer
	d := NewDispatcher("",
		&GenericChannel{Out: &out},
		&failingChannel{name: Email, err: errors.New("no mail client")},
		&failingChannel{name: WhatsApp, panic: true},
		&ClipboardChannel{write: func(string) error { return nil }},
	)

	results := d.Broadcast(context.Background(), "summary", []ChannelName{Email, Generic, WhatsApp, Clipboard, PDF}, "")

	require.Len(t, results, 5)
	assert.Equal(t, models.ShareResult{Channel: "email", OK: false, Error: "no mail client"}, results[0])
	assert.Equal(t, models.ShareResult{Channel: "generic", OK: true}, results[1])
	assert.False(t, results[2].OK)
	assert.Contains(t, results[2].Error, "panicked")
	assert.True(t, results[3].OK)
	assert.False(t, results[4].OK, "unregistered channel fails")
	assert.Contains(t, out.String(), "summary")
}

func TestDispatcher_Channels(t *testing.T) {
	d := NewDispatcher("", &GenericChannel{}, NewClipboardChannel(), &PDFChannel{})
	assert.Equal(t, []ChannelName{Clipboard, Generic, PDF}, d.Channels())
}
