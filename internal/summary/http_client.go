package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/pkg/models"
)

const (
	// DefaultTimeout bounds the whole round trip
	DefaultTimeout = 30 * time.Second

	imageField    = "image"
	imageFilename = "document.jpg"
	maxBodyBytes  = 1 << 20
)

// HTTPClient posts the image as multipart form data to the summary endpoint
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a client for the given endpoint
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// Generate implements Client. It is not retried: the upload is not idempotent.
func (c *HTTPClient) Generate(ctx context.Context, img models.EnhancedImage) (models.Summary, error) {
	req, err := c.newRequest(ctx, img)
	if err != nil {
		return models.Summary{}, apperrors.NewRequestSetupError("An unexpected error occurred.", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return models.Summary{}, apperrors.NewNetworkError("Network error. Please check your connection.", err)
	}
	defer resp.Body.Close()

	logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Summary backend responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain for connection reuse
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return models.Summary{}, apperrors.NewServerError(resp.StatusCode, nil)
	}

	var summary models.Summary
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&summary); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return models.Summary{}, apperrors.NewNetworkError("Network error. Please check your connection.", err)
		}
		return models.Summary{}, apperrors.NewServerError(resp.StatusCode, fmt.Errorf("decode summary: %w", err))
	}
	return summary, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, img models.EnhancedImage) (*http.Request, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("enhanced image has no data")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, imageFilename))
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}
