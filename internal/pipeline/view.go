package pipeline

import "go-medreport-scanner/pkg/models"

// View is what a presentation layer renders. It is derived from State only.
type View struct {
	Stage        Stage           `json:"stage"`
	Processing   bool            `json:"processing"`
	Message      string          `json:"message,omitempty"`
	BackLocked   bool            `json:"back_locked"`
	CanCapture   bool            `json:"can_capture"`
	CanRetake    bool            `json:"can_retake"`
	CanCancel    bool            `json:"can_cancel"`
	RetakeHint   bool            `json:"retake_hint"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Summary      *models.Summary `json:"summary,omitempty"`
}

// Project maps a state to its view
func Project(s State) View {
	v := View{
		Stage:      s.Stage,
		Processing: s.Stage.InFlight(),
		Message:    progressMessage(s.Stage),
		BackLocked: s.Stage == StageEnhancing || s.Stage == StageSummarizing,
		CanCapture: s.Stage == StageReady,
		CanRetake:  s.Stage.Terminal(),
		CanCancel:  s.Stage == StageReady || s.Stage == StageCapturing,
		RetakeHint: s.Quality != nil && s.Quality.NeedsRetake(),
	}
	if s.Stage == StageFailed && s.Failure != nil {
		v.ErrorMessage = s.Failure.Message
	}
	if s.Stage == StageComplete && s.Summary != nil {
		sum := *s.Summary
		v.Summary = &sum
	}
	return v
}

func progressMessage(stage Stage) string {
	switch stage {
	case StageAwaitingPermission:
		return "Requesting camera permission..."
	case StageCapturing:
		return "Capturing image..."
	case StageEnhancing:
		return "Enhancing image..."
	case StageSummarizing:
		return "Generating summary..."
	default:
		return ""
	}
}
