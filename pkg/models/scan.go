package models

// Source identifies where a captured image came from
type Source string

const (
	SourceCamera  Source = "camera"
	SourceGallery Source = "gallery"
)

// CapturedImage is a raw frame produced by acquisition. Data holds the encoded
// bytes; Locator names where they came from (path, URL or blob name).
type CapturedImage struct {
	Locator string `json:"locator"`
	Data    []byte `json:"-"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"`
	Source  Source `json:"source"`
}

// EnhancedImage is the only artifact sent to the summary backend. When
// enhancement falls back, it carries the original locator and bytes.
type EnhancedImage struct {
	Locator string `json:"locator"`
	Data    []byte `json:"-"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"`
}

// Unenhanced wraps a captured image unchanged.
func Unenhanced(img CapturedImage) EnhancedImage {
	return EnhancedImage{
		Locator: img.Locator,
		Data:    img.Data,
		Width:   img.Width,
		Height:  img.Height,
		Format:  img.Format,
	}
}
