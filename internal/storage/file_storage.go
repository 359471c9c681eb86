package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const partialSuffix = ".part"

// ArtifactStore keeps downloaded artifacts in a single directory.
// Files are written as "<name>.part" and renamed once complete, so a
// partial file left behind by an interrupted transfer can be resumed.
type ArtifactStore struct {
	dir string
}

func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Path returns the final location of an artifact.
func (s *ArtifactStore) Path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// PartialSize returns the size of an interrupted transfer, or 0 if there is none.
func (s *ArtifactStore) PartialSize(name string) int64 {
	if checkName(name) != nil {
		return 0
	}
	info, err := os.Stat(filepath.Join(s.dir, name+partialSuffix))
	if err != nil {
		return 0
	}
	return info.Size()
}

// OpenPartial opens the partial file for writing. With resume the file is appended to,
// otherwise it is truncated.
func (s *ArtifactStore) OpenPartial(name string, resume bool) (*os.File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(filepath.Join(s.dir, name+partialSuffix), flags, 0o644)
}

// Commit moves a finished partial file into place, replacing any older copy.
func (s *ArtifactStore) Commit(name string) (string, error) {
	final, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.Rename(final+partialSuffix, final); err != nil {
		return "", fmt.Errorf("commit %s: %w", name, err)
	}
	return final, nil
}

// Discard removes a partial file.
func (s *ArtifactStore) Discard(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, name+partialSuffix))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
