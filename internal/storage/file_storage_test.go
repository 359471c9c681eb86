package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func makeTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "artifactstore_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func writePartial(t *testing.T, s *ArtifactStore, name, data string, resume bool) {
	t.Helper()
	f, err := s.OpenPartial(name, resume)
	if err != nil {
		t.Fatalf("OpenPartial error: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatalf("write error: %v", err)
	}
}

func TestArtifactStore_WriteAndCommit(t *testing.T) {
	dir := makeTempDir(t)
	s := NewArtifactStore(dir)

	writePartial(t, s, "t1.mp4", "video", false)
	if got := s.PartialSize("t1.mp4"); got != 5 {
		t.Errorf("expected partial size 5, got %d", got)
	}

	path, err := s.Commit("t1.mp4")
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if path != filepath.Join(dir, "t1.mp4") {
		t.Errorf("unexpected path %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "video" {
		t.Errorf("expected 'video', got %q", string(data))
	}
	if s.PartialSize("t1.mp4") != 0 {
		t.Errorf("expected partial file to be gone after commit")
	}
}

func TestArtifactStore_ResumeAppends(t *testing.T) {
	s := NewArtifactStore(makeTempDir(t))

	writePartial(t, s, "t1.srt", "part1", false)
	writePartial(t, s, "t1.srt", "part2", true)

	path, err := s.Commit("t1.srt")
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "part1part2" {
		t.Errorf("expected 'part1part2', got %q", string(content))
	}
}

func TestArtifactStore_RestartTruncates(t *testing.T) {
	s := NewArtifactStore(makeTempDir(t))

	writePartial(t, s, "t1.mp4", "stale bytes", false)
	writePartial(t, s, "t1.mp4", "new", false)

	if got := s.PartialSize("t1.mp4"); got != 3 {
		t.Errorf("expected partial size 3, got %d", got)
	}
}

func TestArtifactStore_Discard(t *testing.T) {
	s := NewArtifactStore(makeTempDir(t))

	writePartial(t, s, "t1.mp4", "abc", false)
	if err := s.Discard("t1.mp4"); err != nil {
		t.Fatalf("Discard error: %v", err)
	}
	if s.PartialSize("t1.mp4") != 0 {
		t.Errorf("expected partial file removed")
	}
	if err := s.Discard("t1.mp4"); err != nil {
		t.Errorf("discarding a missing file should succeed, got %v", err)
	}
}

func TestArtifactStore_RejectsPathNames(t *testing.T) {
	s := NewArtifactStore(makeTempDir(t))

	for _, name := range []string{"", "..", "../escape.mp4", `a\b.mp4`, "sub/t1.mp4"} {
		if _, err := s.OpenPartial(name, false); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}
