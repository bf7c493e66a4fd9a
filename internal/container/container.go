package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"go-medreport-scanner/internal/acquire"
	"go-medreport-scanner/internal/config"
	"go-medreport-scanner/internal/enhance"
	"go-medreport-scanner/internal/history"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/internal/observer"
	"go-medreport-scanner/internal/permission"
	"go-medreport-scanner/internal/pipeline"
	"go-medreport-scanner/internal/quality"
	"go-medreport-scanner/internal/share"
	"go-medreport-scanner/internal/summary"
	"go-medreport-scanner/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	store      *history.Store
	dispatcher *share.Dispatcher
	metrics    *observer.MetricsObserver
	pipeline   *pipeline.Pipeline
	handler    http.Handler
}

type options struct {
	prompter  permission.Prompter
	out       io.Writer
	opener    share.Opener
	observers []observer.Observer
}

// Option customizes the container
type Option func(*options)

// WithPrompter overrides the prompter chosen by PERMISSION_MODE
func WithPrompter(p permission.Prompter) Option {
	return func(o *options) { o.prompter = p }
}

// WithOutput sets where the generic share channel writes
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithOpener replaces the desktop URL/file opener
func WithOpener(op share.Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithObserver subscribes an extra pipeline observer
func WithObserver(obs observer.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	o := options{out: os.Stdout, opener: share.BrowserOpener{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prompter == nil {
		o.prompter = prompterFor(cfg.Permission.Mode)
	}

	backend, err := history.NewBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open history storage: %w", err)
	}
	store := history.NewStore(backend)
	store.Load(ctx)

	camera := newCamera(cfg.Camera)
	gallery, saver, err := newGallery(cfg.Gallery)
	if err != nil {
		backend.Close()
		return nil, err
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)
	for _, obs := range o.observers {
		events.Subscribe(obs)
	}

	gate := permission.NewGate(o.prompter)
	deps := pipeline.Deps{
		Permissions: gate,
		Camera:      camera,
		Enhancer: enhance.New(enhance.Options{
			TargetWidth: cfg.Enhance.TargetWidth,
			Contrast:    cfg.Enhance.Contrast,
			Sharpen:     cfg.Enhance.Sharpen,
			Quality:     cfg.Enhance.Quality,
		}),
		Assessor:   quality.NewAssessor(quality.DefaultThresholds()),
		Summarizer: summary.NewClient(cfg.Summary),
		History:    store,
		Events:     events,
		Gallery:    gallery,
		Saver:      saver,
		Album:      cfg.Gallery.Album,
	}
	p := pipeline.New(deps)

	dispatcher := share.NewDispatcher(cfg.Share.Title,
		&share.WhatsAppChannel{Opener: o.opener},
		&share.EmailChannel{Opener: o.opener},
		&share.PDFChannel{OutputDir: cfg.Share.OutputDir, FontPath: cfg.Share.FontPath, Opener: o.opener},
		share.NewClipboardChannel(),
		&share.GenericChannel{Out: o.out},
	)

	handler := transport.NewHandler(transport.Services{
		Pipeline: p,
		History:  store,
		Sharer:   dispatcher,
		Metrics:  metrics,
	}, cfg)

	logger.WithFields(logrus.Fields{
		"storage":    cfg.Storage.Driver,
		"permission": cfg.Permission.Mode,
		"gallery":    gallery != nil,
	}).Debug("Container initialized")

	return &Container{
		config:     cfg,
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		pipeline:   p,
		handler:    handler,
	}, nil
}

func prompterFor(mode string) permission.Prompter {
	switch mode {
	case config.PermissionDeny:
		return permission.Static(false)
	case config.PermissionPrompt:
		return &permission.Terminal{In: os.Stdin, Out: os.Stderr}
	default:
		return permission.Static(true)
	}
}

func newCamera(cfg config.CameraConfig) acquire.Camera {
	if cfg.SnapshotURL != "" {
		return acquire.NewHTTPCamera(cfg.SnapshotURL, cfg.Timeout)
	}
	return &acquire.FileCamera{Path: cfg.ImagePath}
}

type galleryStore interface {
	acquire.Gallery
	acquire.GallerySaver
}

func newGallery(cfg config.GalleryConfig) (acquire.Gallery, acquire.GallerySaver, error) {
	var g galleryStore
	switch {
	case cfg.UseAzure():
		azure, err := acquire.NewAzureGallery(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create azure gallery: %w", err)
		}
		g = azure
	case cfg.Dir != "":
		g = &acquire.DirGallery{Dir: cfg.Dir}
	default:
		return nil, nil, nil
	}
	return g, g, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Pipeline returns the capture pipeline
func (c *Container) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// History returns the history store
func (c *Container) History() *history.Store {
	return c.store
}

// Dispatcher returns the share dispatcher
func (c *Container) Dispatcher() *share.Dispatcher {
	return c.dispatcher
}

// Metrics returns the run metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close releases storage connections
func (c *Container) Close() error {
	return c.store.Close()
}
