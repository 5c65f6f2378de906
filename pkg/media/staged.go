// Package media implements the per-message media pipeline pieces: fetching a
// remote file into a scratch location, and validating the downloaded bytes
// against the relay's size and content-type policy.
package media

import (
	"os"
	"path/filepath"

	"github.com/tinyland-inc/mediaclaw/pkg/logger"
)

// StagedFile is a process-local temporary copy of a remote file, scoped to a
// single pipeline run. Whoever creates one owns its removal; Remove is
// idempotent so it can sit in a defer on every exit path.
type StagedFile struct {
	path string
	size int64
}

// NewStagedFile wraps an existing file on disk as a staged file. The normal
// path is Fetcher.Fetch; this exists for callers that already hold bytes
// locally (and for tests).
func NewStagedFile(path string) (*StagedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &StagedFile{path: path, size: info.Size()}, nil
}

func (f *StagedFile) Path() string {
	return f.path
}

func (f *StagedFile) Size() int64 {
	return f.size
}

// Name returns the base name of the scratch file, used as the upload filename.
func (f *StagedFile) Name() string {
	return filepath.Base(f.path)
}

// Remove deletes the scratch file. Safe to call multiple times and on nil.
func (f *StagedFile) Remove() {
	if f == nil || f.path == "" {
		return
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		logger.WarnCF("media", "Failed to remove scratch file", map[string]any{
			"path":  f.path,
			"error": err.Error(),
		})
	}
	f.path = ""
}
