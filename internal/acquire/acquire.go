// Package acquire produces captured images from cameras and galleries.
package acquire

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/pkg/models"
)

// Camera produces a new frame each call
type Camera interface {
	Capture(ctx context.Context) (models.CapturedImage, error)
}

// Gallery picks a stored image. An empty ref picks the most recent one.
type Gallery interface {
	Pick(ctx context.Context, ref string) (models.CapturedImage, error)
}

// GallerySaver stores an image into the named album and returns its locator
type GallerySaver interface {
	Save(ctx context.Context, img models.EnhancedImage, album, name string) (string, error)
}

// Decode inspects encoded image bytes and builds a CapturedImage. Data that is
// not a decodable image is a capture failure.
func Decode(data []byte, locator string, source models.Source) (models.CapturedImage, error) {
	if len(data) == 0 {
		return models.CapturedImage{}, apperrors.NewCaptureError("image is empty", nil)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.CapturedImage{}, apperrors.NewCaptureError("failed to decode image", err)
	}
	return models.CapturedImage{
		Locator: locator,
		Data:    data,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Format:  format,
		Source:  source,
	}, nil
}
