package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
)

const fullPayload = `{
	"id": "t1",
	"title": "demo",
	"source_language": "zh",
	"target_language": "en",
	"status": "translating",
	"subtitle_mode": "EXTERNAL",
	"progress": 45,
	"current_step": "translating segments",
	"error_message": null,
	"segment_count": 3,
	"video_duration_ms": 9000,
	"created_at": "2024-05-01T10:00:00.123456",
	"updated_at": "2024-05-01T10:01:00Z",
	"completed_at": null,
	"segments": [
		{"id": "s2", "segment_index": 1, "start_time_ms": 5000, "end_time_ms": 8000, "original_text": "b", "translated_text": null, "speaker_id": null, "confidence": 0.8, "voice_id": null},
		{"id": "s1", "segment_index": 0, "start_time_ms": 0, "end_time_ms": 4000, "original_text": "a", "translated_text": "A", "speaker_id": "spk1", "confidence": null, "voice_id": "v1"},
		{"id": "s3", "segment_index": 2, "start_time_ms": 5000, "end_time_ms": 9000, "original_text": "c", "translated_text": null, "speaker_id": null, "confidence": 1, "voice_id": null}
	]
}`

func TestParseTask_Full(t *testing.T) {
	task, err := ParseTask([]byte(fullPayload))
	require.NoError(t, err)

	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, TaskStatusTranslating, task.Status)
	assert.Equal(t, SubtitleModeExternal, task.SubtitleMode)
	assert.Equal(t, 45, task.Progress)
	assert.Equal(t, "translating segments", task.CurrentStep)
	assert.Empty(t, task.ErrorMessage)
	assert.Equal(t, int64(9000), task.VideoDurationMs)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, 2024, task.CreatedAt.Year())
	require.Len(t, task.Segments, 3)
	assert.Equal(t, "s2", task.Segments[0].ID)
	require.NotNil(t, task.Segments[0].Confidence)
	assert.InDelta(t, 0.8, *task.Segments[0].Confidence, 1e-9)
}

func TestParseTask_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{name: "not json", input: `{`, field: ""},
		{name: "missing id", input: `{"status":"pending"}`, field: "id"},
		{name: "missing status", input: `{"id":"t1"}`, field: "status"},
		{name: "progress above range", input: `{"id":"t1","status":"muxing","progress":101}`, field: "progress"},
		{name: "negative progress", input: `{"id":"t1","status":"muxing","progress":-1}`, field: "progress"},
		{name: "segment ends before start", input: `{"id":"t1","status":"muxing","segments":[{"start_time_ms":10,"end_time_ms":5}]}`, field: "segments[0].end_time_ms"},
		{name: "confidence out of range", input: `{"id":"t1","status":"muxing","segments":[{"start_time_ms":0,"end_time_ms":5,"confidence":1.5}]}`, field: "segments[0].confidence"},
		{name: "bad timestamp", input: `{"id":"t1","status":"pending","created_at":"yesterday"}`, field: "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTask([]byte(tt.input))
			var perr *errpkg.ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestParseTask_UnknownStatusDegrades(t *testing.T) {
	task, err := ParseTask([]byte(`{"id":"t1","status":"uploading","progress":3}`))
	require.NoError(t, err)
	assert.Equal(t, TaskStatusUnknown, task.Status)
	assert.Equal(t, "uploading", task.RawStatus)
	assert.False(t, task.Status.IsTerminal())
}

func TestParseTask_FailedWithMessage(t *testing.T) {
	task, err := ParseTask([]byte(`{"id":"t1","status":"failed","progress":30,"error_message":"asr timeout"}`))
	require.NoError(t, err)
	assert.True(t, task.Status.IsTerminal())
	assert.Equal(t, "asr timeout", task.ErrorMessage)
}

func TestParseTask_FailedWithoutMessageIsTerminal(t *testing.T) {
	inputs := []string{
		`{"id":"t1","status":"failed","progress":20,"error_message":""}`,
		`{"id":"t1","status":"failed","progress":20,"error_message":"   "}`,
		`{"id":"t1","status":"failed","progress":20}`,
	}
	for _, in := range inputs {
		task, err := ParseTask([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, TaskStatusFailed, task.Status)
		assert.True(t, task.Status.IsTerminal())
		assert.Equal(t, UnknownFailureMessage, task.ErrorMessage)
	}
}

func TestParseTask_MessageOnRunningTaskDropped(t *testing.T) {
	task, err := ParseTask([]byte(`{"id":"t1","status":"muxing","progress":90,"error_message":"retrying"}`))
	require.NoError(t, err)
	assert.Equal(t, TaskStatusMuxing, task.Status)
	assert.Empty(t, task.ErrorMessage)
}

func TestSortedSegments_DisplayOrder(t *testing.T) {
	task, err := ParseTask([]byte(`{"id":"t1","status":"muxing","segments":[
		{"start_time_ms":5000,"end_time_ms":8000},
		{"start_time_ms":0,"end_time_ms":4000}
	]}`))
	require.NoError(t, err)

	sorted := task.SortedSegments()
	require.Len(t, sorted, 2)
	assert.Equal(t, int64(0), sorted[0].StartTimeMs)
	assert.Equal(t, int64(4000), sorted[0].EndTimeMs)
	assert.Equal(t, int64(5000), sorted[1].StartTimeMs)
	assert.Equal(t, int64(8000), sorted[1].EndTimeMs)

	// arrival order is untouched
	assert.Equal(t, int64(5000), task.Segments[0].StartTimeMs)
}

func TestSortedSegments_StableOnTies(t *testing.T) {
	task, err := ParseTask([]byte(fullPayload))
	require.NoError(t, err)

	sorted := task.SortedSegments()
	ids := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)
}

func TestEncodeTask_RoundTrip(t *testing.T) {
	first, err := ParseTask([]byte(fullPayload))
	require.NoError(t, err)

	data, err := EncodeTask(first)
	require.NoError(t, err)

	second, err := ParseTask(data)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, first.SortedSegments(), second.SortedSegments())
	assert.Equal(t, first, second)

	again, err := EncodeTask(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestEncodeTask_KeepsUnknownStatus(t *testing.T) {
	first, err := ParseTask([]byte(`{"id":"t1","status":"queued_for_review"}`))
	require.NoError(t, err)

	data, err := EncodeTask(first)
	require.NoError(t, err)

	second, err := ParseTask(data)
	require.NoError(t, err)
	assert.Equal(t, "queued_for_review", second.RawStatus)
}
