// Package quality scores how legible an enhanced scan is likely to be.
package quality

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"go-medreport-scanner/pkg/models"
)

// Thresholds for the report flags
type Thresholds struct {
	// BlurVariance is the Laplacian variance at or below which a scan is blurry.
	BlurVariance float64
	// Dark and Bright bound the mean gray level (0-255).
	Dark   float64
	Bright float64
	// SampleWidth downsizes large scans before scoring. 0 keeps full size.
	SampleWidth int
}

// DefaultThresholds returns thresholds tuned for printed reports
func DefaultThresholds() Thresholds {
	return Thresholds{
		BlurVariance: 100,
		Dark:         80,
		Bright:       220,
		SampleWidth:  600,
	}
}

// Report is attached to the pipeline state. It never changes transitions.
type Report struct {
	Brightness   float64 `json:"brightness"`
	LaplacianVar float64 `json:"laplacian_var"`
	Blurry       bool    `json:"blurry"`
	TooDark      bool    `json:"too_dark"`
	TooBright    bool    `json:"too_bright"`
	// SkewDegrees is nil when too few edges were found. It is informational.
	SkewDegrees *float64 `json:"skew_degrees,omitempty"`
}

// NeedsRetake reports whether any flag is set
func (r Report) NeedsRetake() bool {
	return r.Blurry || r.TooDark || r.TooBright
}

// Assessor computes quality reports
type Assessor struct {
	thresholds Thresholds
}

// NewAssessor creates an assessor
func NewAssessor(t Thresholds) *Assessor {
	return &Assessor{thresholds: t}
}

// Assess decodes the image and scores it
func (a *Assessor) Assess(img models.EnhancedImage) (Report, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Report{}, fmt.Errorf("decode for quality: %w", err)
	}
	if a.thresholds.SampleWidth > 0 && decoded.Bounds().Dx() > a.thresholds.SampleWidth {
		decoded = imaging.Resize(decoded, a.thresholds.SampleWidth, 0, imaging.Box)
	}
	return a.AssessImage(decoded), nil
}

// AssessImage scores an already decoded image
func (a *Assessor) AssessImage(img image.Image) Report {
	gray := toGray(img)
	r := Report{
		Brightness:   Brightness(gray),
		LaplacianVar: LaplacianVariance(gray),
		SkewDegrees:  Skew(gray),
	}
	r.Blurry = r.LaplacianVar <= a.thresholds.BlurVariance
	r.TooDark = r.Brightness < a.thresholds.Dark
	r.TooBright = r.Brightness > a.thresholds.Bright
	return r
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Brightness is the mean gray level
func Brightness(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return 0
	}
	values := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			values = append(values, float64(gray.GrayAt(x, y).Y))
		}
	}
	return stat.Mean(values, nil)
}

// LaplacianVariance measures sharpness with the kernel [0 1 0; 1 -4 1; 0 1 0]
func LaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		return float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}

	data := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			laplacian := -4*at(x, y) + at(x, y-1) + at(x, y+1) + at(x-1, y) + at(x+1, y)
			data = append(data, laplacian)
		}
	}
	return stat.Variance(data, nil)
}

// Skew estimates the text line angle in degrees, normalized to [-45, 45], by
// fitting a line through Sobel edge points.
func Skew(gray *image.Gray) *float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()

	at := func(x, y int) int {
		return int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}

	var xs, ys []float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) - 2*at(x-1, y) + 2*at(x+1, y) - at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) + at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if math.Sqrt(float64(gx*gx+gy*gy)) > 50 {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	if len(xs) < 10 {
		return nil
	}

	angle := skewAngle(xs, ys)
	return &angle
}

func skewAngle(xs, ys []float64) float64 {
	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)

	var sumXY, sumX2 float64
	for i := range xs {
		dx := xs[i] - meanX
		sumXY += dx * (ys[i] - meanY)
		sumX2 += dx * dx
	}
	if math.Abs(sumX2) < 1e-10 {
		return 0
	}

	angle := math.Atan(sumXY/sumX2) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return angle
}
