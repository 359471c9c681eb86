package domain

import "strings"

// TaskStatus represents the current stage of a dubbing Task as reported by the remote service.
type TaskStatus string

const (
	TaskStatusPending      TaskStatus = "pending"
	TaskStatusExtracting   TaskStatus = "extracting"
	TaskStatusTranscribing TaskStatus = "transcribing"
	TaskStatusTranslating  TaskStatus = "translating"
	TaskStatusSynthesizing TaskStatus = "synthesizing"
	TaskStatusMuxing       TaskStatus = "muxing"
	TaskStatusCompleted    TaskStatus = "completed"
	TaskStatusFailed       TaskStatus = "failed"

	// TaskStatusUnknown stands in for statuses this client does not know yet.
	TaskStatusUnknown TaskStatus = "unknown"
)

var statusOrder = []TaskStatus{
	TaskStatusPending,
	TaskStatusExtracting,
	TaskStatusTranscribing,
	TaskStatusTranslating,
	TaskStatusSynthesizing,
	TaskStatusMuxing,
	TaskStatusCompleted,
	TaskStatusFailed,
}

// Statuses returns every known status in pipeline order followed by TaskStatusUnknown.
func Statuses() []TaskStatus {
	out := make([]TaskStatus, 0, len(statusOrder)+1)
	out = append(out, statusOrder...)
	return append(out, TaskStatusUnknown)
}

// ParseStatus maps a wire value onto the enumeration. Unrecognised values yield TaskStatusUnknown.
func ParseStatus(raw string) TaskStatus {
	s := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range statusOrder {
		if s == known {
			return s
		}
	}
	return TaskStatusUnknown
}

// IsTerminal reports whether no further transitions can occur.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Stage returns the position of s in the pipeline order, or -1 for unknown statuses.
func (s TaskStatus) Stage() int {
	for i, known := range statusOrder {
		if s == known {
			return i
		}
	}
	return -1
}

func (s TaskStatus) String() string {
	return string(s)
}

// SubtitleMode controls how subtitles are delivered with the dubbed video.
type SubtitleMode string

const (
	SubtitleModeNone     SubtitleMode = "none"
	SubtitleModeExternal SubtitleMode = "external"
	SubtitleModeBurn     SubtitleMode = "burn"
)

// SubtitleModes returns all subtitle modes.
func SubtitleModes() []SubtitleMode {
	return []SubtitleMode{SubtitleModeNone, SubtitleModeExternal, SubtitleModeBurn}
}

// ParseSubtitleMode is case-insensitive; the server answers in upper case.
// Missing or unrecognised values yield SubtitleModeNone.
func ParseSubtitleMode(raw string) SubtitleMode {
	switch SubtitleMode(strings.ToLower(strings.TrimSpace(raw))) {
	case SubtitleModeExternal:
		return SubtitleModeExternal
	case SubtitleModeBurn:
		return SubtitleModeBurn
	default:
		return SubtitleModeNone
	}
}

func (m SubtitleMode) String() string {
	return string(m)
}
