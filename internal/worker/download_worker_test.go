package worker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
	"github.com/veranemoloko/dubbing-sync/internal/storage"
)

func makeTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "artifactworker_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T) (*ArtifactWorker, string) {
	t.Helper()
	dir := makeTempDir(t)
	return NewArtifactWorker(storage.NewArtifactStore(dir), 10*time.Second, 2, newTestLogger()), dir
}

func TestArtifactWorker_Fetch_FullDownload(t *testing.T) {
	worker, dir := newTestWorker(t)

	wantContent := "dubbed video"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, wantContent); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	art, err := worker.Fetch(context.Background(), server.URL+"/t1.mp4", "t1.mp4")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if art.Bytes != int64(len(wantContent)) {
		t.Errorf("expected Bytes=%d, got %d", len(wantContent), art.Bytes)
	}
	if art.Resumed {
		t.Errorf("expected Resumed=false")
	}

	data, err := os.ReadFile(filepath.Join(dir, "t1.mp4"))
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != wantContent {
		t.Errorf("expected file content %q, got %q", wantContent, string(data))
	}
}

func TestArtifactWorker_Fetch_Resume(t *testing.T) {
	worker, dir := newTestWorker(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Range"), "bytes=3-") {
			w.WriteHeader(http.StatusPartialContent)
			_, _ = io.WriteString(w, "lo world")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "hello world")
	}))
	defer server.Close()

	if err := os.WriteFile(filepath.Join(dir, "t2.mp4.part"), []byte("hel"), 0o644); err != nil {
		t.Fatalf("failed to create partial file: %v", err)
	}

	art, err := worker.Fetch(context.Background(), server.URL, "t2.mp4")
	if err != nil {
		t.Fatalf("Fetch resume error: %v", err)
	}
	if !art.Resumed {
		t.Errorf("expected Resumed=true")
	}
	if art.Bytes != 11 {
		t.Errorf("expected Bytes=11, got %d", art.Bytes)
	}

	data, err := os.ReadFile(filepath.Join(dir, "t2.mp4"))
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected resumed content 'hello world', got %q", string(data))
	}
}

func TestArtifactWorker_Fetch_RangeIgnored(t *testing.T) {
	worker, dir := newTestWorker(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "hello world")
	}))
	defer server.Close()

	if err := os.WriteFile(filepath.Join(dir, "t3.mp4.part"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("failed to create partial file: %v", err)
	}

	if _, err := worker.Fetch(context.Background(), server.URL, "t3.mp4"); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "t3.mp4"))
	if string(data) != "hello world" {
		t.Errorf("expected full content after restart, got %q", string(data))
	}
}

func TestArtifactWorker_Fetch_HTTPError(t *testing.T) {
	worker, dir := newTestWorker(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := worker.Fetch(context.Background(), server.URL, "t4.mp4"); err == nil {
		t.Errorf("expected error for 403 response, got nil")
	}
	if _, err := os.Stat(filepath.Join(dir, "t4.mp4")); !os.IsNotExist(err) {
		t.Errorf("expected no file for failed download")
	}
}

func TestArtifactWorker_Fetch_CompletePartialRestarts(t *testing.T) {
	worker, dir := newTestWorker(t)

	var (
		mu       sync.Mutex
		requests []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Header.Get("Range"))
		mu.Unlock()
		if r.Header.Get("Range") != "" {
			w.Header().Set("Content-Range", "bytes */5")
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		_, _ = io.WriteString(w, "video")
	}))
	defer server.Close()

	if err := os.WriteFile(filepath.Join(dir, "t7.mp4.part"), []byte("video"), 0o644); err != nil {
		t.Fatalf("failed to create partial file: %v", err)
	}

	art, err := worker.Fetch(context.Background(), server.URL, "t7.mp4")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if art.Resumed || art.Bytes != 5 {
		t.Errorf("expected fresh 5-byte download, got %+v", art)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 2 || requests[0] != "bytes=5-" || requests[1] != "" {
		t.Errorf("expected ranged request then plain retry, got %q", requests)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "t7.mp4"))
	if string(data) != "video" {
		t.Errorf("expected content 'video', got %q", string(data))
	}
	if _, err := os.Stat(filepath.Join(dir, "t7.mp4.part")); !os.IsNotExist(err) {
		t.Errorf("expected partial file to be gone")
	}
}

func TestArtifactWorker_SaveGrant_SubtitleFallbackExtension(t *testing.T) {
	worker, dir := newTestWorker(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/video", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "video")
	})
	mux.HandleFunc("/subtitle", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "[Script Info]")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	grant := &domain.DownloadGrant{
		TaskID:      "t8",
		PrimaryURL:  server.URL + "/video",
		SubtitleURL: server.URL + "/subtitle",
		ExpiresIn:   time.Hour,
		IssuedAt:    time.Now(),
	}

	saved, err := worker.SaveGrant(context.Background(), grant)
	if err != nil {
		t.Fatalf("SaveGrant error: %v", err)
	}
	if saved[0].Path != filepath.Join(dir, "t8.mp4") {
		t.Errorf("unexpected video path %q", saved[0].Path)
	}
	if saved[1].Path != filepath.Join(dir, "t8.ass") {
		t.Errorf("unexpected subtitle path %q", saved[1].Path)
	}
}

func TestArtifactWorker_SaveGrant_ExpiredGrant(t *testing.T) {
	worker, dir := newTestWorker(t)

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "video")
	}))
	defer server.Close()

	grant := &domain.DownloadGrant{
		TaskID:     "t9",
		PrimaryURL: server.URL + "/t9.mp4",
		ExpiresIn:  time.Hour,
		IssuedAt:   time.Now().Add(-2 * time.Hour),
	}

	if _, err := worker.SaveGrant(context.Background(), grant); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired grant error, got %v", err)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("expected no requests for an expired grant, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "t9.mp4")); !os.IsNotExist(err) {
		t.Errorf("expected no file for expired grant")
	}
}

func TestArtifactWorker_SaveGrant_VideoAndSubtitle(t *testing.T) {
	worker, dir := newTestWorker(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/out/t5.MP4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "video")
	})
	mux.HandleFunc("/out/t5.vtt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "WEBVTT")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	grant := &domain.DownloadGrant{
		TaskID:      "t5",
		PrimaryURL:  server.URL + "/out/t5.MP4?X-Amz-Signature=abc",
		SubtitleURL: server.URL + "/out/t5.vtt?X-Amz-Signature=def",
		ExpiresIn:   time.Hour,
		IssuedAt:    time.Now(),
	}

	saved, err := worker.SaveGrant(context.Background(), grant)
	if err != nil {
		t.Fatalf("SaveGrant error: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(saved))
	}
	if saved[0].Kind != domain.ArtifactVideo || saved[0].Path != filepath.Join(dir, "t5.mp4") {
		t.Errorf("unexpected video artifact: %+v", saved[0])
	}
	if saved[1].Kind != domain.ArtifactSubtitle || saved[1].Path != filepath.Join(dir, "t5.vtt") {
		t.Errorf("unexpected subtitle artifact: %+v", saved[1])
	}
}

func TestArtifactWorker_SaveGrant_PartialFailure(t *testing.T) {
	worker, _ := newTestWorker(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/t6.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "video")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	grant := &domain.DownloadGrant{
		TaskID:      "t6",
		PrimaryURL:  server.URL + "/t6.mp4",
		SubtitleURL: server.URL + "/missing.srt",
		ExpiresIn:   time.Hour,
		IssuedAt:    time.Now(),
	}

	if _, err := worker.SaveGrant(context.Background(), grant); err == nil {
		t.Errorf("expected error when subtitle download fails")
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		taskID, url, fallback, want string
	}{
		{"t1", "https://oss.example.com/a/b/out.mp4?sig=1", ".mp4", "t1.mp4"},
		{"t1", "https://oss.example.com/download?id=1", ".ass", "t1.ass"},
		{"t1", "https://oss.example.com/sub.ASS", ".srt", "t1.ass"},
		{"a/b", "https://oss.example.com/x.mp4", ".mp4", "a_b.mp4"},
	}

	for _, tt := range tests {
		if got := artifactName(tt.taskID, tt.url, tt.fallback); got != tt.want {
			t.Errorf("artifactName(%q, %q) = %q, want %q", tt.taskID, tt.url, got, tt.want)
		}
	}
}
