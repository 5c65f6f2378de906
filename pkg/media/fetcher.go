package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/mediaclaw/pkg/logger"
)

// MediaReference is the opaque handle a chat platform hands out for a remotely
// stored file, plus the sender's declared filename hint. Immutable once built.
type MediaReference struct {
	FileID   string
	FileName string
}

// Ext returns the lowercased extension of the declared filename hint, or ""
// when there is none. Advisory only: the hint is sender-controlled.
func (r MediaReference) Ext() string {
	return strings.ToLower(filepath.Ext(r.FileName))
}

// URLResolver turns a platform file id into a transient download URL. The
// Telegram channel implements this against the bot API.
type URLResolver interface {
	ResolveFileURL(fileID string) (string, error)
}

// FetchError describes a failed download. Status is set when the remote
// answered with a non-success code; otherwise Err carries the transport
// failure (including timeouts).
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch: remote status %d", e.Status)
	}
	return fmt.Sprintf("fetch: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves remote files into uniquely named scratch files.
type Fetcher struct {
	resolver URLResolver
	client   *http.Client
	dir      string
}

func NewFetcher(resolver URLResolver, dir string, timeout time.Duration) *Fetcher {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Fetcher{
		resolver: resolver,
		client:   &http.Client{Timeout: timeout},
		dir:      dir,
	}
}

// Fetch resolves ref to a download URL, streams the body to a scratch file and
// returns the staged copy. On success exactly one file exists on disk; on any
// failure none does. A single attempt, no retries.
func (f *Fetcher) Fetch(ctx context.Context, ref MediaReference) (*StagedFile, error) {
	downloadURL, err := f.resolver.ResolveFileURL(ref.FileID)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("resolve file url: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Status: resp.StatusCode}
	}

	path := filepath.Join(f.dir, scratchName(ref.Ext()))
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	size, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		// Never leave a partial file behind.
		if rmErr := os.Remove(path); rmErr != nil {
			logger.WarnCF("media", "Failed to remove partial download", map[string]any{
				"path":  path,
				"error": rmErr.Error(),
			})
		}
		return nil, &FetchError{Err: err}
	}

	logger.DebugCF("media", "File staged", map[string]any{
		"file_id": ref.FileID,
		"bytes":   size,
	})

	return &StagedFile{path: path, size: size}, nil
}

// scratchName builds a non-guessable scratch file name. The extension hint is
// appended only when it is allow-listed, so sender input never shapes the name
// beyond a known-safe suffix.
func scratchName(ext string) string {
	name := "mediaclaw-" + uuid.New().String()
	if AllowedExtension(ext) {
		name += ext
	}
	return name
}

// IsNetworkError reports whether err is a fetch failure of the transport kind
// (as opposed to a remote status rejection).
func IsNetworkError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == 0
}
