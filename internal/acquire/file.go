package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/pkg/models"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// FileCamera reads the current frame from a fixed path, as written by a
// capture device or a scanner driver.
type FileCamera struct {
	Path string
}

// Capture implements Camera
func (c *FileCamera) Capture(ctx context.Context) (models.CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return models.CapturedImage{}, err
	}
	if c.Path == "" {
		return models.CapturedImage{}, apperrors.NewCaptureError("Camera is not ready", nil)
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return models.CapturedImage{}, apperrors.NewCaptureError("Failed to capture image", err)
	}
	return Decode(data, c.Path, models.SourceCamera)
}

// DirGallery is a gallery backed by a local directory. Albums are
// subdirectories.
type DirGallery struct {
	Dir string
}

// Pick implements Gallery
func (g *DirGallery) Pick(ctx context.Context, ref string) (models.CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return models.CapturedImage{}, err
	}

	path := ""
	if ref != "" {
		// Only names inside the gallery are accepted.
		path = filepath.Join(g.Dir, filepath.Clean("/"+ref))
	} else {
		latest, err := g.latest()
		if err != nil {
			return models.CapturedImage{}, err
		}
		path = latest
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.CapturedImage{}, apperrors.NewCaptureError("Failed to pick image from gallery", err)
	}
	return Decode(data, path, models.SourceGallery)
}

// Save implements GallerySaver
func (g *DirGallery) Save(ctx context.Context, img models.EnhancedImage, album, name string) (string, error) {
	dir := filepath.Join(g.Dir, album)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create album: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

func (g *DirGallery) latest() (string, error) {
	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		return "", apperrors.NewCaptureError("Failed to pick image from gallery", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{filepath.Join(g.Dir, e.Name()), info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", apperrors.NewCaptureError("Gallery is empty", nil)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}
