package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
)

// UnknownFailureMessage stands in for the reason of a failed task that arrived without one.
const UnknownFailureMessage = "unknown error"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// The backend emits zone-less ISO timestamps; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTask decodes and structurally validates a snapshot payload.
func ParseTask(raw []byte) (*Task, error) {
	var p TaskPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &errpkg.ParseError{Err: fmt.Errorf("decode payload: %w", err)}
	}
	return TaskFromPayload(p)
}

// TaskFromPayload validates an already decoded payload and converts it into a Task.
func TaskFromPayload(p TaskPayload) (*Task, error) {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &errpkg.ParseError{
				TaskID: p.ID,
				Field:  strings.TrimPrefix(verrs[0].Namespace(), "TaskPayload."),
				Err:    fmt.Errorf("failed %q validation", verrs[0].Tag()),
			}
		}
		return nil, &errpkg.ParseError{TaskID: p.ID, Err: err}
	}

	status := ParseStatus(p.Status)
	errMsg := strings.TrimSpace(deref(p.ErrorMessage))
	switch {
	case status == TaskStatusFailed && errMsg == "":
		// The server can fail a task with an empty message; it is still terminal.
		errMsg = UnknownFailureMessage
	case status != TaskStatusFailed && status != TaskStatusUnknown:
		errMsg = ""
	}

	task := &Task{
		ID:               p.ID,
		Title:            deref(p.Title),
		SourceLanguage:   p.SourceLanguage,
		TargetLanguage:   p.TargetLanguage,
		Status:           status,
		RawStatus:        p.Status,
		SubtitleMode:     ParseSubtitleMode(p.SubtitleMode),
		Progress:         p.Progress,
		CurrentStep:      deref(p.CurrentStep),
		ErrorMessage:     errMsg,
		SegmentCount:     p.SegmentCount,
		SubtitleFilePath: deref(p.SubtitleFilePath),
		OutputVideoPath:  deref(p.OutputVideoPath),
	}
	if p.VideoDurationMs != nil {
		task.VideoDurationMs = *p.VideoDurationMs
	}

	var err error
	if task.CreatedAt, err = parseTimestamp(p.CreatedAt); err != nil {
		return nil, &errpkg.ParseError{TaskID: p.ID, Field: "created_at", Err: err}
	}
	if task.UpdatedAt, err = parseTimestamp(p.UpdatedAt); err != nil {
		return nil, &errpkg.ParseError{TaskID: p.ID, Field: "updated_at", Err: err}
	}
	if p.CompletedAt != nil && *p.CompletedAt != "" {
		completed, err := parseTimestamp(*p.CompletedAt)
		if err != nil {
			return nil, &errpkg.ParseError{TaskID: p.ID, Field: "completed_at", Err: err}
		}
		task.CompletedAt = &completed
	}

	if len(p.Segments) > 0 {
		task.Segments = make([]Segment, 0, len(p.Segments))
		for _, s := range p.Segments {
			task.Segments = append(task.Segments, Segment{
				ID:             s.ID,
				Index:          s.SegmentIndex,
				StartTimeMs:    s.StartTimeMs,
				EndTimeMs:      s.EndTimeMs,
				SpeakerID:      deref(s.SpeakerID),
				VoiceID:        deref(s.VoiceID),
				Emotion:        deref(s.Emotion),
				Confidence:     s.Confidence,
				OriginalText:   deref(s.OriginalText),
				TranslatedText: deref(s.TranslatedText),
			})
		}
	}

	return task, nil
}

// Payload converts the exposed fields of t back into wire form.
func (t *Task) Payload() TaskPayload {
	p := TaskPayload{
		ID:               t.ID,
		Title:            ref(t.Title),
		SourceLanguage:   t.SourceLanguage,
		TargetLanguage:   t.TargetLanguage,
		Status:           t.RawStatus,
		SubtitleMode:     string(t.SubtitleMode),
		Progress:         t.Progress,
		CurrentStep:      ref(t.CurrentStep),
		ErrorMessage:     ref(t.ErrorMessage),
		SegmentCount:     t.SegmentCount,
		SubtitleFilePath: ref(t.SubtitleFilePath),
		OutputVideoPath:  ref(t.OutputVideoPath),
		CreatedAt:        formatTimestamp(t.CreatedAt),
		UpdatedAt:        formatTimestamp(t.UpdatedAt),
	}
	if p.Status == "" {
		p.Status = string(t.Status)
	}
	if t.VideoDurationMs != 0 {
		d := t.VideoDurationMs
		p.VideoDurationMs = &d
	}
	if t.CompletedAt != nil {
		p.CompletedAt = ref(formatTimestamp(*t.CompletedAt))
	}
	for _, s := range t.Segments {
		p.Segments = append(p.Segments, SegmentPayload{
			ID:             s.ID,
			SegmentIndex:   s.Index,
			StartTimeMs:    s.StartTimeMs,
			EndTimeMs:      s.EndTimeMs,
			OriginalText:   ref(s.OriginalText),
			TranslatedText: ref(s.TranslatedText),
			SpeakerID:      ref(s.SpeakerID),
			Emotion:        ref(s.Emotion),
			Confidence:     s.Confidence,
			VoiceID:        ref(s.VoiceID),
		})
	}
	return p
}

// EncodeTask serialises the fields a Task exposes. ParseTask(EncodeTask(t)) yields an equal Task.
func EncodeTask(t *Task) ([]byte, error) {
	data, err := json.Marshal(t.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	return data, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339Nano)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
