package presentation

import (
	"fmt"
	"math"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
)

const defaultColor = "bg-gray-100 text-gray-800"

var statusLabels = map[domain.TaskStatus]string{
	domain.TaskStatusPending:      "Pending",
	domain.TaskStatusExtracting:   "Extracting audio",
	domain.TaskStatusTranscribing: "Transcribing",
	domain.TaskStatusTranslating:  "Translating",
	domain.TaskStatusSynthesizing: "Synthesizing speech",
	domain.TaskStatusMuxing:       "Muxing video",
	domain.TaskStatusCompleted:    "Completed",
	domain.TaskStatusFailed:       "Failed",
	domain.TaskStatusUnknown:      "Unknown",
}

var statusColors = map[domain.TaskStatus]string{
	domain.TaskStatusPending:      "bg-gray-100 text-gray-800",
	domain.TaskStatusExtracting:   "bg-blue-100 text-blue-800",
	domain.TaskStatusTranscribing: "bg-purple-100 text-purple-800",
	domain.TaskStatusTranslating:  "bg-yellow-100 text-yellow-800",
	domain.TaskStatusSynthesizing: "bg-pink-100 text-pink-800",
	domain.TaskStatusMuxing:       "bg-indigo-100 text-indigo-800",
	domain.TaskStatusCompleted:    "bg-green-100 text-green-800",
	domain.TaskStatusFailed:       "bg-red-100 text-red-800",
	domain.TaskStatusUnknown:      defaultColor,
}

var languageNames = map[string]string{
	"zh": "Chinese",
	"en": "English",
	"ja": "Japanese",
	"ko": "Korean",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ru": "Russian",
}

// StatusLabel returns a human-readable label. Values outside the enumeration
// are shown as they are.
func StatusLabel(s domain.TaskStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// StatusColor returns the CSS classes of the status badge.
func StatusColor(s domain.TaskStatus) string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return defaultColor
}

// ProgressColor returns the CSS class of the progress bar.
func ProgressColor(s domain.TaskStatus) string {
	switch s {
	case domain.TaskStatusCompleted:
		return "bg-green-500"
	case domain.TaskStatusFailed:
		return "bg-red-500"
	default:
		return "bg-blue-500"
	}
}

// CompletionMessage is shown once a task completed successfully.
func CompletionMessage(mode domain.SubtitleMode, hasSubtitleFile bool) string {
	const base = "Dubbing finished, download the result above"
	switch {
	case mode == domain.SubtitleModeExternal && hasSubtitleFile:
		return base + " (includes a subtitle file)"
	case mode == domain.SubtitleModeBurn:
		return base + " (subtitles are burned into the video)"
	default:
		return base
	}
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss from one hour on.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes%60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds%60)
}

// FormatFileSize renders a byte count with a binary unit, e.g. "1.50 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(i)), units[i])
}

// LanguageName returns the display name of a language code, or the code itself.
func LanguageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}
