package http

import (
	"time"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
	"github.com/veranemoloko/dubbing-sync/internal/engine"
	"github.com/veranemoloko/dubbing-sync/internal/presentation"
)

// TaskView is the rendered state of a task as served to browsers.
type TaskView struct {
	TaskID    string              `json:"task_id"`
	Loading   bool                `json:"loading"`
	Terminal  bool                `json:"terminal"`
	Error     string              `json:"error,omitempty"`
	Seq       uint64              `json:"seq"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
	Task      *domain.TaskPayload `json:"task,omitempty"`

	Stage             *int   `json:"stage,omitempty"`
	StatusLabel       string `json:"status_label,omitempty"`
	StatusColor       string `json:"status_color,omitempty"`
	ProgressColor     string `json:"progress_color,omitempty"`
	Duration          string `json:"duration,omitempty"`
	SourceLanguage    string `json:"source_language_name,omitempty"`
	TargetLanguage    string `json:"target_language_name,omitempty"`
	CompletionMessage string `json:"completion_message,omitempty"`
}

// ArtifactView is a saved artifact with a human readable size.
type ArtifactView struct {
	domain.SavedArtifact
	Size string `json:"size"`
}

func newArtifactViews(saved []domain.SavedArtifact) []ArtifactView {
	out := make([]ArtifactView, 0, len(saved))
	for _, a := range saved {
		out = append(out, ArtifactView{SavedArtifact: a, Size: presentation.FormatFileSize(a.Bytes)})
	}
	return out
}

// NewTaskView renders an observation. Segments are listed in display order.
func NewTaskView(obs engine.Observation) TaskView {
	v := TaskView{
		TaskID:   obs.TaskID,
		Loading:  obs.Loading(),
		Terminal: obs.Terminal(),
		Seq:      obs.Seq,
	}
	if obs.Err != nil {
		v.Error = obs.Err.Error()
	}
	if !obs.UpdatedAt.IsZero() {
		ts := obs.UpdatedAt
		v.UpdatedAt = &ts
	}

	t := obs.Task
	if t == nil {
		return v
	}

	sorted := *t
	sorted.Segments = t.SortedSegments()
	p := sorted.Payload()
	v.Task = &p

	if stage := t.Status.Stage(); stage >= 0 {
		v.Stage = &stage
	}
	v.StatusLabel = presentation.StatusLabel(t.Status)
	v.StatusColor = presentation.StatusColor(t.Status)
	v.ProgressColor = presentation.ProgressColor(t.Status)
	v.SourceLanguage = presentation.LanguageName(t.SourceLanguage)
	v.TargetLanguage = presentation.LanguageName(t.TargetLanguage)
	if t.VideoDurationMs > 0 {
		v.Duration = presentation.FormatDuration(t.VideoDurationMs)
	}
	if t.Status == domain.TaskStatusCompleted {
		v.CompletionMessage = presentation.CompletionMessage(t.SubtitleMode, t.HasSubtitleArtifact())
	}
	return v
}
