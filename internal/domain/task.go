package domain

import (
	"slices"
	"time"
)

// Task is a single point-in-time read of a dubbing job owned by the remote service.
type Task struct {
	ID             string
	Title          string
	SourceLanguage string
	TargetLanguage string

	Status       TaskStatus
	RawStatus    string
	SubtitleMode SubtitleMode
	Progress     int
	CurrentStep  string
	ErrorMessage string

	SegmentCount     int
	VideoDurationMs  int64
	SubtitleFilePath string
	OutputVideoPath  string
	Segments         []Segment

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Segment is one transcript/translation unit of a Task.
type Segment struct {
	ID             string
	Index          int
	StartTimeMs    int64
	EndTimeMs      int64
	SpeakerID      string
	VoiceID        string
	Emotion        string
	Confidence     *float64
	OriginalText   string
	TranslatedText string
}

// SortedSegments returns a copy of the segments ordered by start time.
// Segments sharing a start time keep their arrival order.
func (t *Task) SortedSegments() []Segment {
	out := slices.Clone(t.Segments)
	slices.SortStableFunc(out, func(a, b Segment) int {
		switch {
		case a.StartTimeMs < b.StartTimeMs:
			return -1
		case a.StartTimeMs > b.StartTimeMs:
			return 1
		default:
			return 0
		}
	})
	return out
}

// HasSubtitleArtifact reports whether a separately downloadable subtitle file exists.
func (t *Task) HasSubtitleArtifact() bool {
	return t.SubtitleMode == SubtitleModeExternal && t.SubtitleFilePath != ""
}

// DownloadGrant is a time-limited capability to fetch the artifacts of a completed Task.
// SubtitleURL is empty when no subtitle download is available.
type DownloadGrant struct {
	TaskID      string
	PrimaryURL  string
	SubtitleURL string
	ExpiresIn   time.Duration
	IssuedAt    time.Time
}

// HasSubtitle reports whether the grant carries a subtitle location.
func (g *DownloadGrant) HasSubtitle() bool {
	return g.SubtitleURL != ""
}

// ExpiresAt is advisory: the remote service controls the real lifetime.
func (g *DownloadGrant) ExpiresAt() time.Time {
	return g.IssuedAt.Add(g.ExpiresIn)
}

func (g *DownloadGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt())
}

// ArtifactKind names the role of a file behind a DownloadGrant.
type ArtifactKind string

const (
	ArtifactVideo    ArtifactKind = "video"
	ArtifactSubtitle ArtifactKind = "subtitle"
)

// SavedArtifact describes an artifact written to the local download directory.
type SavedArtifact struct {
	Kind    ArtifactKind `json:"kind"`
	Path    string       `json:"path"`
	Bytes   int64        `json:"bytes"`
	Resumed bool         `json:"resumed"`
}
