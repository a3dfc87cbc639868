// Package storage manages the temp directory where design attachments are
// downloaded during project intake. Paths are uuid-prefixed so two admins
// uploading files with the same name cannot collide; removal is best-effort
// because a leftover temp file is an annoyance, not a failure.
package storage

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// designsSubdir is where promoted attachments live; Sweep never enters it.
const designsSubdir = "designs"

// FileStore hands out paths under a single temp directory and cleans them up.
// Attachments that must outlive the intake flow are promoted into a designs
// subdirectory that sweeping leaves alone.
type FileStore struct {
	Dir string
}

// NewFileStore creates the temp directory (and the designs subdirectory) if
// needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, designsSubdir), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

// TempPath returns a fresh destination path for an attachment, keeping the
// original file name for readability.
func (s *FileStore) TempPath(fileName string) string {
	return filepath.Join(s.Dir, uuid.NewString()+"_"+filepath.Base(fileName))
}

// Promote moves a downloaded attachment out of the sweepable area and
// returns its permanent path. Callers persist the returned path.
func (s *FileStore) Promote(path string) (string, error) {
	dest := filepath.Join(s.Dir, designsSubdir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Remove deletes a file best-effort: a failure is logged and swallowed.
func (s *FileStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}

// Sweep removes every regular file left in the temp directory. Used at
// shutdown so aborted intakes do not accumulate attachments.
func (s *FileStore) Sweep() {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", s.Dir).Msg("failed to sweep temp dir")
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		s.Remove(filepath.Join(s.Dir, e.Name()))
	}
}
