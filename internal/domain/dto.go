package domain

// TaskPayload is the wire form of GET /tasks/{id}.
type TaskPayload struct {
	ID             string  `json:"id" validate:"required"`
	Title          *string `json:"title"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	Status         string  `json:"status" validate:"required"`
	SubtitleMode   string  `json:"subtitle_mode,omitempty"`
	Progress       int     `json:"progress" validate:"min=0,max=100"`
	CurrentStep    *string `json:"current_step"`
	ErrorMessage   *string `json:"error_message"`

	SegmentCount     int              `json:"segment_count"`
	VideoDurationMs  *int64           `json:"video_duration_ms,omitempty"`
	SubtitleFilePath *string          `json:"subtitle_file_path,omitempty"`
	OutputVideoPath  *string          `json:"output_video_path,omitempty"`
	Segments         []SegmentPayload `json:"segments,omitempty" validate:"dive"`

	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
	CompletedAt *string `json:"completed_at"`
}

// SegmentPayload is the wire form of one segment inside a TaskPayload.
type SegmentPayload struct {
	ID             string   `json:"id,omitempty"`
	SegmentIndex   int      `json:"segment_index"`
	StartTimeMs    int64    `json:"start_time_ms" validate:"min=0"`
	EndTimeMs      int64    `json:"end_time_ms" validate:"gtefield=StartTimeMs"`
	OriginalText   *string  `json:"original_text"`
	TranslatedText *string  `json:"translated_text"`
	SpeakerID      *string  `json:"speaker_id"`
	Emotion        *string  `json:"emotion,omitempty"`
	Confidence     *float64 `json:"confidence" validate:"omitempty,min=0,max=1"`
	VoiceID        *string  `json:"voice_id"`
}

// ResultResponse is the wire form of GET /tasks/{id}/result.
type ResultResponse struct {
	DownloadURL string `json:"download_url"`
	SubtitleURL string `json:"subtitle_url,omitempty"`
	ExpiresIn   int    `json:"expires_in"`
}

// CreateTaskRequest represents the form fields of POST /tasks besides the video file.
type CreateTaskRequest struct {
	SourceLanguage string `json:"source_language" validate:"required,min=2,max=16"`
	TargetLanguage string `json:"target_language" validate:"required,min=2,max=16,nefield=SourceLanguage"`
	Title          string `json:"title,omitempty" validate:"max=255"`
	SubtitleMode   string `json:"subtitle_mode,omitempty" validate:"omitempty,oneof=none external burn"`
}

// TaskListResponse is the wire form of GET /tasks.
type TaskListResponse struct {
	Items      []TaskPayload `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// HealthStatus is the wire form of GET /monitoring/health.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
	Version  string          `json:"version"`
}
