// Package summary obtains bilingual report summaries from a remote backend or
// a fixed mock.
package summary

import (
	"context"

	"go-medreport-scanner/internal/config"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/pkg/models"
)

// Client turns an enhanced image into a bilingual summary
type Client interface {
	Generate(ctx context.Context, img models.EnhancedImage) (models.Summary, error)
}

// NewClient selects the HTTP backend when an endpoint is configured and the
// mock otherwise.
func NewClient(cfg config.SummaryConfig) Client {
	if cfg.Endpoint == "" {
		logger.Warn("No summary endpoint configured, using mock summaries")
		return NewMockClient()
	}
	logger.WithField("endpoint", cfg.Endpoint).Info("Using remote summary backend")
	return NewHTTPClient(cfg.Endpoint, cfg.Timeout)
}
