package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
)

func TestLookupsAreTotal(t *testing.T) {
	for _, s := range domain.Statuses() {
		_, hasLabel := statusLabels[s]
		_, hasColor := statusColors[s]
		assert.True(t, hasLabel, "label for %s", s)
		assert.True(t, hasColor, "color for %s", s)
		assert.NotEmpty(t, StatusLabel(s))
		assert.NotEmpty(t, StatusColor(s))
	}
}

func TestStatusLabel_FallsBackToValue(t *testing.T) {
	assert.Equal(t, "Completed", StatusLabel(domain.TaskStatusCompleted))
	assert.Equal(t, "archived", StatusLabel(domain.TaskStatus("archived")))
	assert.Equal(t, defaultColor, StatusColor(domain.TaskStatus("archived")))
}

func TestProgressColor(t *testing.T) {
	assert.Equal(t, "bg-green-500", ProgressColor(domain.TaskStatusCompleted))
	assert.Equal(t, "bg-red-500", ProgressColor(domain.TaskStatusFailed))
	assert.Equal(t, "bg-blue-500", ProgressColor(domain.TaskStatusMuxing))
}

func TestCompletionMessage(t *testing.T) {
	plain := CompletionMessage(domain.SubtitleModeNone, false)
	withFile := CompletionMessage(domain.SubtitleModeExternal, true)
	burned := CompletionMessage(domain.SubtitleModeBurn, false)

	assert.Contains(t, withFile, "subtitle file")
	assert.Contains(t, burned, "burned")
	assert.NotEqual(t, plain, withFile)
	assert.NotEqual(t, plain, burned)
	assert.Equal(t, plain, CompletionMessage(domain.SubtitleModeExternal, false), "external without a file")

	for _, m := range domain.SubtitleModes() {
		assert.NotEmpty(t, CompletionMessage(m, true))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{9000, "0:09"},
		{65_000, "1:05"},
		{3_599_999, "59:59"},
		{3_600_000, "1:00:00"},
		{3_725_000, "1:02:05"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.ms), "ms=%d", tt.ms)
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatFileSize(0))
	assert.Equal(t, "512.00 B", FormatFileSize(512))
	assert.Equal(t, "1.50 KB", FormatFileSize(1536))
	assert.Equal(t, "2.00 GB", FormatFileSize(2<<30))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Japanese", LanguageName("ja"))
	assert.Equal(t, "pt", LanguageName("pt"))
}
