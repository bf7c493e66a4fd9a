package share

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/pkg/models"
)

// DefaultTitle is used when a share request has no title
const DefaultTitle = "Medical Report Summary"

// Dispatcher routes content to registered channels
type Dispatcher struct {
	channels     map[ChannelName]Channel
	defaultTitle string
}

// NewDispatcher registers the channels. An empty title selects DefaultTitle.
func NewDispatcher(defaultTitle string, channels ...Channel) *Dispatcher {
	if defaultTitle == "" {
		defaultTitle = DefaultTitle
	}
	d := &Dispatcher{
		channels:     make(map[ChannelName]Channel, len(channels)),
		defaultTitle: defaultTitle,
	}
	for _, c := range channels {
		d.channels[c.Name()] = c
	}
	return d
}

// Channels lists the registered channel names
func (d *Dispatcher) Channels() []ChannelName {
	names := make([]ChannelName, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Share sends content through one channel. Failures are returned as
// share_channel errors.
func (d *Dispatcher) Share(ctx context.Context, content string, channel ChannelName, title string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.NewValidationError("nothing to share", nil)
	}
	c, ok := d.channels[channel]
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported share channel %q", channel), nil)
	}
	if title == "" {
		title = d.defaultTitle
	}

	if err := safeShare(ctx, c, Message{Title: title, Content: content}); err != nil {
		logger.WithError(err).WithField("channel", channel).Warn("Share failed")
		return apperrors.NewShareChannelError(string(channel), err)
	}
	logger.WithField("channel", channel).Info("Summary shared")
	return nil
}

// Broadcast shares through every listed channel concurrently. One failing
// channel does not affect the others; results keep the request order.
func (d *Dispatcher) Broadcast(ctx context.Context, content string, channels []ChannelName, title string) []models.ShareResult {
	results := make([]models.ShareResult, len(channels))

	var g errgroup.Group
	g.SetLimit(4)
	for i, channel := range channels {
		g.Go(func() error {
			r := models.ShareResult{Channel: string(channel), OK: true}
			if err := d.Share(ctx, content, channel, title); err != nil {
				r.OK = false
				r.Error = apperrors.UserMessage(err)
				if appErr, ok := apperrors.As(err); ok && appErr.Cause != nil {
					r.Error = appErr.Cause.Error()
				}
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	logger.WithFields(logrus.Fields{
		"channels": len(channels),
		"failed":   failed,
	}).Debug("Broadcast finished")
	return results
}

func safeShare(ctx context.Context, c Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return c.Share(ctx, msg)
}
