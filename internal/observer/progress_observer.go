package observer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// ProgressObserver shows a terminal spinner while a run is processing
type ProgressObserver struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	active  bool
}

// NewProgressObserver writes the spinner to w
func NewProgressObserver(w io.Writer) *ProgressObserver {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	return &ProgressObserver{spinner: s}
}

// OnEvent starts, updates or stops the spinner
func (o *ProgressObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case StageEntered:
		if event.Message == "" {
			o.stopLocked()
			return
		}
		o.spinner.Lock()
		o.spinner.Suffix = " " + event.Message
		o.spinner.Unlock()
		if !o.active {
			o.spinner.Start()
			o.active = true
		}
	case RunCompleted, RunFailed, RunCancelled:
		o.stopLocked()
	}
}

func (o *ProgressObserver) stopLocked() {
	if o.active {
		o.spinner.Stop()
		o.active = false
	}
}

// Active reports whether the spinner is running
func (o *ProgressObserver) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// GetObserverName returns the observer name
func (o *ProgressObserver) GetObserverName() string {
	return "progress_observer"
}
