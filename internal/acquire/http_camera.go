package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	snapshotAttempts = 3
	maxSnapshotBytes = 20 * 1024 * 1024
)

// HTTPCamera grabs a still frame from a network camera's snapshot endpoint
type HTTPCamera struct {
	url     string
	client  *http.Client
	backoff time.Duration
}

// NewHTTPCamera creates a camera for the given snapshot URL
func NewHTTPCamera(snapshotURL string, timeout time.Duration) *HTTPCamera {
	transport := &http.Transport{
		// One device, one frame at a time
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPCamera{
		url: snapshotURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff: time.Second,
	}
}

// Capture implements Camera. Network errors and 5xx answers are retried with
// a linear backoff; 4xx answers are not.
func (c *HTTPCamera) Capture(ctx context.Context) (models.CapturedImage, error) {
	var lastErr error

	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		data, retryable, err := c.fetch(ctx)
		if err == nil {
			return Decode(data, c.url, models.SourceCamera)
		}
		lastErr = err

		if !retryable || attempt == snapshotAttempts-1 {
			break
		}

		logger.WithError(err).WithFields(logrus.Fields{
			"url":     c.url,
			"attempt": attempt + 1,
		}).Debug("Snapshot failed, retrying")

		select {
		case <-ctx.Done():
			return models.CapturedImage{}, apperrors.NewCaptureError("Camera is not ready", ctx.Err())
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}

	return models.CapturedImage{}, apperrors.NewCaptureError("Failed to capture image",
		fmt.Errorf("snapshot failed after %d attempts: %w", snapshotAttempts, lastErr))
}

func (c *HTTPCamera) fetch(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "Go-MedReport-Scanner/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		// A cancelled context will not get better on retry.
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read snapshot: %w", err)
	}
	return data, false, nil
}
