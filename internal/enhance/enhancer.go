// Package enhance turns captured photos into images that are easier to read.
package enhance

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/pkg/models"
)

// Stage is one image transform. Stages run in order on the previous output.
type Stage func(img image.Image) (image.Image, error)

// Enhancer applies resize, contrast, sharpen and JPEG compression in that order.
// It never fails: on any error the original image is returned unchanged.
type Enhancer struct {
	opts   Options
	stages []Stage
}

// New creates an enhancer with the given options
func New(opts Options) *Enhancer {
	opts = opts.normalized()
	return &Enhancer{
		opts:   opts,
		stages: []Stage{resizeStage(opts), contrastStage(opts), sharpenStage(opts)},
	}
}

// Options returns the effective options
func (e *Enhancer) Options() Options {
	return e.opts
}

// Enhance returns the enhanced image, or the original one if any stage fails.
// Callers detect the fallback by comparing locators.
func (e *Enhancer) Enhance(ctx context.Context, src models.CapturedImage) (out models.EnhancedImage) {
	defer func() {
		if r := recover(); r != nil {
			e.logFallback(src, fmt.Errorf("panic: %v", r))
			out = models.Unenhanced(src)
		}
	}()

	enhanced, err := e.run(ctx, src)
	if err != nil {
		e.logFallback(src, err)
		return models.Unenhanced(src)
	}
	return enhanced
}

func (e *Enhancer) run(ctx context.Context, src models.CapturedImage) (models.EnhancedImage, error) {
	if len(src.Data) == 0 {
		return models.EnhancedImage{}, fmt.Errorf("no image data")
	}

	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return models.EnhancedImage{}, fmt.Errorf("decode: %w", err)
	}

	for i, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return models.EnhancedImage{}, err
		}
		img, err = stage(img)
		if err != nil {
			return models.EnhancedImage{}, fmt.Errorf("stage %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	quality := int(math.Round(e.opts.Quality * 100))
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return models.EnhancedImage{}, fmt.Errorf("encode: %w", err)
	}

	bounds := img.Bounds()
	return models.EnhancedImage{
		Locator: enhancedLocator(src.Locator),
		Data:    buf.Bytes(),
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Format:  "jpeg",
	}, nil
}

func (e *Enhancer) logFallback(src models.CapturedImage, err error) {
	logger.WithFields(logrus.Fields{
		"locator": src.Locator,
		"source":  src.Source,
		"error":   err.Error(),
	}).Warn("Image enhancement failed, using original image")
}

func resizeStage(opts Options) Stage {
	return func(img image.Image) (image.Image, error) {
		// Downscale only
		if img.Bounds().Dx() <= opts.TargetWidth {
			return img, nil
		}
		return imaging.Resize(img, opts.TargetWidth, 0, imaging.Lanczos), nil
	}
}

func contrastStage(opts Options) Stage {
	return func(img image.Image) (image.Image, error) {
		if opts.Contrast == 1 {
			return img, nil
		}
		return imaging.AdjustContrast(img, (opts.Contrast-1)*100), nil
	}
}

func sharpenStage(opts Options) Stage {
	return func(img image.Image) (image.Image, error) {
		if opts.Sharpen == 0 {
			return img, nil
		}
		return imaging.Sharpen(img, opts.Sharpen), nil
	}
}

func enhancedLocator(locator string) string {
	if locator == "" {
		return "capture_enhanced.jpg"
	}
	ext := filepath.Ext(locator)
	return strings.TrimSuffix(locator, ext) + "_enhanced.jpg"
}

// Info describes an encoded image without decoding its pixels
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

// ReadInfo returns the dimensions and format of encoded image data
func ReadInfo(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("read image info: %w", err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format, Size: len(data)}, nil
}
