package pipeline

import (
	"time"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/quality"
	"go-medreport-scanner/pkg/models"
)

// Stage is the current position of a run in the state machine
type Stage string

const (
	StageAwaitingPermission Stage = "awaiting_permission"
	StageReady              Stage = "ready"
	StageCapturing          Stage = "capturing"
	StageEnhancing          Stage = "enhancing"
	StageSummarizing        Stage = "summarizing"
	StageComplete           Stage = "complete"
	StageFailed             Stage = "failed"
	StageCancelled          Stage = "cancelled"
)

// Terminal reports whether the run is over
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed || s == StageCancelled
}

// InFlight reports whether a capture is being processed
func (s Stage) InFlight() bool {
	return s == StageCapturing || s == StageEnhancing || s == StageSummarizing
}

// FailedStage names the step that failed a run
type FailedStage string

const (
	FailedPermission FailedStage = "permission"
	FailedCapture    FailedStage = "capture"
	FailedSummary    FailedStage = "summary"
)

// Failure describes why a run ended in StageFailed
type Failure struct {
	Stage  FailedStage         `json:"stage"`
	Reason apperrors.ErrorType `json:"reason"`
	// Message is safe to show to the user
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

// State is a snapshot of the pipeline. Only the pipeline mutates it.
type State struct {
	RunID  string                `json:"run_id"`
	Stage  Stage                 `json:"stage"`
	Source models.Source         `json:"source,omitempty"`
	Image  *models.EnhancedImage `json:"image,omitempty"`
	// Enhanced is false when the original image was used
	Enhanced  bool                 `json:"enhanced"`
	Quality   *quality.Report      `json:"quality,omitempty"`
	Summary   *models.Summary      `json:"summary,omitempty"`
	Entry     *models.HistoryEntry `json:"entry,omitempty"`
	Failure   *Failure             `json:"failure,omitempty"`
	StartedAt time.Time            `json:"started_at,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (s State) clone() State {
	out := s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if s.Quality != nil {
		q := *s.Quality
		if q.SkewDegrees != nil {
			skew := *q.SkewDegrees
			q.SkewDegrees = &skew
		}
		out.Quality = &q
	}
	if s.Summary != nil {
		sum := *s.Summary
		out.Summary = &sum
	}
	if s.Entry != nil {
		e := *s.Entry
		out.Entry = &e
	}
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}
