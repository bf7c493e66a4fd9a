package enhance

// Options controls the enhancement stages
type Options struct {
	// TargetWidth is the maximum output width. Narrower images are kept as is.
	TargetWidth int
	// Contrast is a multiplier, 1 leaves the image unchanged.
	Contrast float64
	// Sharpen is the gaussian sigma of the unsharp pass, 0 disables it.
	Sharpen float64
	// Quality is the JPEG quality in (0, 1].
	Quality float64
}

// DefaultOptions returns the options used for document photos
func DefaultOptions() Options {
	return Options{
		TargetWidth: 1200,
		Contrast:    1.2,
		Sharpen:     0.5,
		Quality:     0.8,
	}
}

// normalized replaces out-of-range values with defaults
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.TargetWidth <= 0 {
		o.TargetWidth = def.TargetWidth
	}
	if o.Contrast <= 0 {
		o.Contrast = def.Contrast
	}
	if o.Sharpen < 0 {
		o.Sharpen = 0
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = def.Quality
	}
	return o
}
