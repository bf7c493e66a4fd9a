package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PipelineEvent represents one step of a pipeline run
type PipelineEvent struct {
	EventType EventType     `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Stage     string        `json:"stage,omitempty"`
	Source    string        `json:"source,omitempty"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	// ErrorMessage is set for failures and absorbed errors
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// StageEntered when the pipeline moves to a new state
	StageEntered EventType = "stage_entered"
	// RunCompleted when a summary has been produced and recorded
	RunCompleted EventType = "run_completed"
	// RunFailed when a stage fails the run
	RunFailed EventType = "run_failed"
	// RunCancelled when the user backs out before processing
	RunCancelled EventType = "run_cancelled"
	// EnhancementFallback when the original image is used unenhanced
	EnhancementFallback EventType = "enhancement_fallback"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"run_id":     event.RunID,
	}
	if event.Stage != "" {
		fields["stage"] = event.Stage
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration.String()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case StageEntered:
		entry.Debug("Pipeline stage entered")
	case RunCompleted:
		entry.Info("Scan completed")
	case RunFailed:
		entry.Error("Scan failed")
	case RunCancelled:
		entry.Info("Scan cancelled")
	case EnhancementFallback:
		entry.Warn("Enhancement fell back to original image")
	default:
		entry.Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects run counters
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalRuns           int64
	completedRuns       int64
	cancelledRuns       int64
	fallbacks           int64
	failuresByStage     map[string]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{failuresByStage: make(map[string]int64)}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case StageEntered:
		if event.Stage == "capturing" {
			o.totalRuns++
		}
	case RunCompleted:
		o.completedRuns++
		o.totalProcessingTime += event.Duration
	case RunFailed:
		o.failuresByStage[event.Stage]++
	case RunCancelled:
		o.cancelledRuns++
	case EnhancementFallback:
		o.fallbacks++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.completedRuns > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.completedRuns)
	}

	failures := make(map[string]int64, len(o.failuresByStage))
	var failed int64
	for stage, n := range o.failuresByStage {
		failures[stage] = n
		failed += n
	}

	return map[string]interface{}{
		"total_runs":            o.totalRuns,
		"completed_runs":        o.completedRuns,
		"failed_runs":           failed,
		"cancelled_runs":        o.cancelledRuns,
		"failures_by_stage":     failures,
		"enhancement_fallbacks": o.fallbacks,
		"avg_processing_time":   avgProcessingTime.String(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription order
// before returning, so events from one run are never reordered.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event PipelineEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
