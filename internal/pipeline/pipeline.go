// Package pipeline coordinates one scan from permission check to stored
// summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-medreport-scanner/internal/acquire"
	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/internal/observer"
	"go-medreport-scanner/internal/permission"
	"go-medreport-scanner/internal/quality"
	"go-medreport-scanner/internal/summary"
	"go-medreport-scanner/pkg/models"
)

// Permissions is the subset of the permission gate used by the pipeline
type Permissions interface {
	RequestCameraAccess(ctx context.Context) permission.State
	RequestGalleryAccess(ctx context.Context) permission.State
}

// Enhancer never fails; a fallback returns the original locator
type Enhancer interface {
	Enhance(ctx context.Context, img models.CapturedImage) models.EnhancedImage
}

// Assessor scores the enhanced image
type Assessor interface {
	Assess(img models.EnhancedImage) (quality.Report, error)
}

// History records finished summaries and exposes settings
type History interface {
	AddEntry(ctx context.Context, s models.Summary) (models.HistoryEntry, error)
	Settings() models.Settings
}

// Deps are the collaborators of a pipeline. Gallery, Saver, Assessor and
// Events are optional.
type Deps struct {
	Permissions Permissions
	Camera      acquire.Camera
	Gallery     acquire.Gallery
	Saver       acquire.GallerySaver
	Enhancer    Enhancer
	Assessor    Assessor
	Summarizer  summary.Client
	History     History
	Events      observer.Subject
	// Album receives enhanced scans when saveToGallery is on
	Album string
	Now   func() time.Time
}

// Pipeline is the capture-to-summary state machine. Only one run is in
// flight at a time.
type Pipeline struct {
	deps Deps

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// New creates a pipeline in StageAwaitingPermission
func New(deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Album == "" {
		deps.Album = "DEECOGS"
	}
	p := &Pipeline{deps: deps}
	p.state = State{
		RunID:     uuid.NewString(),
		Stage:     StageAwaitingPermission,
		UpdatedAt: deps.Now(),
	}
	return p
}

// State returns a snapshot of the current state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Start resolves the camera permission: Ready when granted,
// Failed(permission) otherwise.
func (p *Pipeline) Start(ctx context.Context) (State, error) {
	p.mu.Lock()
	if p.state.Stage != StageAwaitingPermission {
		st := p.state.clone()
		p.mu.Unlock()
		if st.Stage == StageReady {
			return st, nil
		}
		return st, apperrors.ErrInvalidTransition
	}
	runID := p.state.RunID
	p.mu.Unlock()

	return p.resolvePermission(ctx, runID), nil
}

// Retake abandons a finished run and starts a fresh one, re-checking the
// camera permission. It is a no-op in Ready.
func (p *Pipeline) Retake(ctx context.Context) (State, error) {
	p.mu.Lock()
	switch {
	case p.state.Stage == StageReady:
		st := p.state.clone()
		p.mu.Unlock()
		return st, nil
	case p.state.Stage.InFlight():
		st := p.state.clone()
		p.mu.Unlock()
		return st, apperrors.ErrBusy
	case p.state.Stage == StageAwaitingPermission:
		runID := p.state.RunID
		p.mu.Unlock()
		return p.resolvePermission(ctx, runID), nil
	}

	p.state = State{
		RunID:     uuid.NewString(),
		Stage:     StageAwaitingPermission,
		UpdatedAt: p.deps.Now(),
	}
	runID := p.state.RunID
	ev := p.stageEventLocked()
	p.mu.Unlock()

	p.publish(ctx, ev)
	return p.resolvePermission(ctx, runID), nil
}

// Capture takes a photo with the camera and processes it
func (p *Pipeline) Capture(ctx context.Context) (State, error) {
	return p.run(ctx, models.SourceCamera, "")
}

// PickFromGallery processes a stored image. An empty ref picks the latest.
func (p *Pipeline) PickFromGallery(ctx context.Context, ref string) (State, error) {
	return p.run(ctx, models.SourceGallery, ref)
}

// Cancel ends the run while nothing is being processed yet. Once enhancement
// has started it returns ErrCancelRefused and the run continues.
func (p *Pipeline) Cancel(ctx context.Context) (State, error) {
	p.mu.Lock()
	switch p.state.Stage {
	case StageReady, StageCapturing:
	case StageEnhancing, StageSummarizing:
		st := p.state.clone()
		p.mu.Unlock()
		return st, apperrors.ErrCancelRefused
	default:
		st := p.state.clone()
		p.mu.Unlock()
		return st, apperrors.ErrInvalidTransition
	}

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.setStageLocked(StageCancelled)
	st := p.state.clone()
	p.mu.Unlock()

	p.publish(ctx, observer.PipelineEvent{
		EventType: observer.RunCancelled,
		RunID:     st.RunID,
		Stage:     string(StageCancelled),
		Source:    string(st.Source),
	})
	return st, nil
}

func (p *Pipeline) resolvePermission(ctx context.Context, runID string) State {
	granted := p.deps.Permissions.RequestCameraAccess(ctx) == permission.Granted

	p.mu.Lock()
	if p.state.RunID != runID || p.state.Stage != StageAwaitingPermission {
		st := p.state.clone()
		p.mu.Unlock()
		return st
	}
	if !granted {
		err := apperrors.NewPermissionDeniedError("camera access denied", nil)
		ev := p.failLocked(FailedPermission, err)
		st := p.state.clone()
		p.mu.Unlock()
		p.publish(ctx, ev)
		return st
	}
	p.setStageLocked(StageReady)
	ev := p.stageEventLocked()
	st := p.state.clone()
	p.mu.Unlock()

	p.publish(ctx, ev)
	return st
}

func (p *Pipeline) run(ctx context.Context, source models.Source, ref string) (State, error) {
	if st, err := p.checkReady(); err != nil {
		return st, err
	}

	// Prompts happen before Capturing is announced so progress output
	// never draws over them.
	grants := p.resolveAccess(ctx, source)

	p.mu.Lock()
	if p.state.Stage != StageReady {
		// Another run started while prompting
		st := p.state.clone()
		p.mu.Unlock()
		return st, apperrors.ErrBusy
	}

	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.cancel = cancel

	runID := p.state.RunID
	p.state.Source = source
	p.state.StartedAt = p.deps.Now()
	p.setStageLocked(StageCapturing)
	ev := p.stageEventLocked()
	p.mu.Unlock()
	p.publish(ctx, ev)

	img, err := p.acquire(acquireCtx, source, ref, grants)
	if err != nil {
		return p.failRun(ctx, runID, FailedCapture, err), nil
	}

	// Processing is never aborted by the caller going away; the summary
	// client's own timeout is the only deadline from here on.
	procCtx := context.WithoutCancel(ctx)

	st, ok := p.advance(ctx, runID, StageCapturing, StageEnhancing, nil)
	if !ok {
		return st, nil
	}

	enhanced := p.deps.Enhancer.Enhance(procCtx, img)
	isEnhanced := enhanced.Locator != img.Locator
	if !isEnhanced {
		p.publish(ctx, observer.PipelineEvent{
			EventType: observer.EnhancementFallback,
			RunID:     runID,
			Stage:     string(StageEnhancing),
			Source:    string(source),
		})
	}

	report := p.assess(enhanced, runID)
	p.saveToGallery(procCtx, enhanced, runID, grants.gallery)

	// Leaving Enhancing is unconditional
	p.advance(ctx, runID, StageEnhancing, StageSummarizing, func(s *State) {
		meta := enhanced
		meta.Data = nil
		s.Image = &meta
		s.Enhanced = isEnhanced
		s.Quality = report
	})

	result, err := p.deps.Summarizer.Generate(procCtx, enhanced)
	if err != nil {
		return p.failRun(ctx, runID, FailedSummary, err), nil
	}

	entry, err := p.deps.History.AddEntry(procCtx, result)
	if err != nil {
		logger.WithError(err).WithField("run_id", runID).Warn("Failed to persist history entry")
	}

	p.mu.Lock()
	if p.state.RunID != runID {
		st := p.state.clone()
		p.mu.Unlock()
		return st, nil
	}
	p.state.Summary = &result
	p.state.Entry = &entry
	p.setStageLocked(StageComplete)
	st = p.state.clone()
	p.cancel = nil
	p.mu.Unlock()

	p.publish(ctx, observer.PipelineEvent{
		EventType: observer.RunCompleted,
		RunID:     runID,
		Stage:     string(StageComplete),
		Source:    string(source),
		Duration:  st.UpdatedAt.Sub(st.StartedAt),
		Metadata:  map[string]interface{}{"entry_id": entry.ID, "enhanced": isEnhanced},
	})
	return st, nil
}

// checkReady returns the control error for starting a run outside Ready
func (p *Pipeline) checkReady() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state.clone()
	switch {
	case st.Stage == StageReady:
		return st, nil
	case st.Stage.InFlight():
		return st, apperrors.ErrBusy
	default:
		return st, apperrors.ErrInvalidTransition
	}
}

type access struct {
	camera, gallery bool
}

// resolveAccess asks for every permission the run will need
func (p *Pipeline) resolveAccess(ctx context.Context, source models.Source) access {
	var a access
	if source == models.SourceGallery {
		if p.deps.Gallery != nil {
			a.gallery = p.deps.Permissions.RequestGalleryAccess(ctx) == permission.Granted
		}
		return a
	}
	if p.deps.Camera != nil {
		a.camera = p.deps.Permissions.RequestCameraAccess(ctx) == permission.Granted
	}
	if p.deps.Saver != nil && p.deps.History.Settings().SaveToGallery {
		a.gallery = p.deps.Permissions.RequestGalleryAccess(ctx) == permission.Granted
	}
	return a
}

func (p *Pipeline) acquire(ctx context.Context, source models.Source, ref string, a access) (models.CapturedImage, error) {
	switch source {
	case models.SourceGallery:
		if p.deps.Gallery == nil {
			return models.CapturedImage{}, apperrors.NewCaptureError("No gallery configured", nil)
		}
		if !a.gallery {
			return models.CapturedImage{}, apperrors.NewPermissionDeniedError("gallery access denied", nil)
		}
		return p.deps.Gallery.Pick(ctx, ref)
	default:
		if p.deps.Camera == nil {
			return models.CapturedImage{}, apperrors.NewCaptureError("Camera is not ready", nil)
		}
		if !a.camera {
			return models.CapturedImage{}, apperrors.NewPermissionDeniedError("camera access denied", nil)
		}
		return p.deps.Camera.Capture(ctx)
	}
}

func (p *Pipeline) assess(img models.EnhancedImage, runID string) *quality.Report {
	if p.deps.Assessor == nil {
		return nil
	}
	report, err := p.deps.Assessor.Assess(img)
	if err != nil {
		logger.WithError(err).WithField("run_id", runID).Debug("Quality assessment skipped")
		return nil
	}
	return &report
}

// saveToGallery stores the enhanced scan when the user asked for it. Any
// failure is logged and ignored.
func (p *Pipeline) saveToGallery(ctx context.Context, img models.EnhancedImage, runID string, granted bool) {
	if p.deps.Saver == nil || !p.deps.History.Settings().SaveToGallery {
		return
	}
	fields := logrus.Fields{"run_id": runID, "album": p.deps.Album}
	if !granted {
		logger.WithFields(fields).Warn("Gallery access denied, scan not saved")
		return
	}
	ext := ".jpg"
	if img.Format == "png" {
		ext = ".png"
	}
	loc, err := p.deps.Saver.Save(ctx, img, p.deps.Album, "scan_"+runID+ext)
	if err != nil {
		logger.WithError(err).WithFields(fields).Warn("Failed to save scan to gallery")
		return
	}
	logger.WithFields(fields).WithField("locator", loc).Info("Scan saved to gallery")
}

// advance moves from one stage to the next if the run is still current and
// in the expected stage.
func (p *Pipeline) advance(ctx context.Context, runID string, from, to Stage, mutate func(*State)) (State, bool) {
	p.mu.Lock()
	if p.state.RunID != runID || p.state.Stage != from {
		st := p.state.clone()
		p.mu.Unlock()
		return st, false
	}
	if mutate != nil {
		mutate(&p.state)
	}
	if from == StageCapturing {
		// Past the point of cancellation
		p.cancel = nil
	}
	p.setStageLocked(to)
	ev := p.stageEventLocked()
	st := p.state.clone()
	p.mu.Unlock()

	p.publish(ctx, ev)
	return st, true
}

func (p *Pipeline) failRun(ctx context.Context, runID string, stage FailedStage, err error) State {
	p.mu.Lock()
	if p.state.RunID != runID || p.state.Stage.Terminal() {
		// Cancelled or superseded meanwhile
		st := p.state.clone()
		p.mu.Unlock()
		return st
	}
	ev := p.failLocked(stage, err)
	p.cancel = nil
	st := p.state.clone()
	p.mu.Unlock()

	p.publish(ctx, ev)
	return st
}

func (p *Pipeline) failLocked(stage FailedStage, err error) observer.PipelineEvent {
	err = classify(stage, err)
	appErr, _ := apperrors.As(err)

	p.state.Failure = &Failure{
		Stage:   stage,
		Reason:  appErr.Type,
		Message: apperrors.UserMessage(err),
		Detail:  err.Error(),
		Err:     err,
	}
	p.setStageLocked(StageFailed)

	return observer.PipelineEvent{
		EventType:    observer.RunFailed,
		RunID:        p.state.RunID,
		Stage:        string(stage),
		Source:       string(p.state.Source),
		ErrorMessage: err.Error(),
		Metadata:     map[string]interface{}{"reason": appErr.Type},
	}
}

// classify makes sure every failure carries a taxonomy type
func classify(stage FailedStage, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case stage == FailedPermission:
		return apperrors.NewPermissionDeniedError("access denied", err)
	case stage == FailedCapture:
		return apperrors.NewCaptureError("Failed to capture image", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewNetworkError("Network error. Please check your connection.", err)
	default:
		return apperrors.NewRequestSetupError("An unexpected error occurred.", err)
	}
}

func (p *Pipeline) setStageLocked(stage Stage) {
	p.state.Stage = stage
	p.state.UpdatedAt = p.deps.Now()
}

func (p *Pipeline) stageEventLocked() observer.PipelineEvent {
	return observer.PipelineEvent{
		EventType: observer.StageEntered,
		RunID:     p.state.RunID,
		Stage:     string(p.state.Stage),
		Source:    string(p.state.Source),
		Message:   progressMessage(p.state.Stage),
	}
}

func (p *Pipeline) publish(ctx context.Context, ev observer.PipelineEvent) {
	if p.deps.Events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.deps.Now()
	}
	p.deps.Events.NotifyObservers(ctx, ev)
}

// String is used in logs
func (s State) String() string {
	if s.Failure != nil {
		return fmt.Sprintf("%s(%s, %s)", s.Stage, s.Failure.Stage, s.Failure.Reason)
	}
	return string(s.Stage)
}
