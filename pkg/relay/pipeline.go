// Package relay drives the per-message pipeline: extension pre-check, fetch,
// validate, upload, reply, cleanup. Every run reaches a terminal state on the
// first failure, and the scratch file never survives the run.
package relay

import (
	"context"
	"errors"

	"github.com/tinyland-inc/mediaclaw/pkg/logger"
	"github.com/tinyland-inc/mediaclaw/pkg/media"
	"github.com/tinyland-inc/mediaclaw/pkg/telegraph"
)

// Uploader is the slice of the Telegraph client the pipeline needs.
type Uploader interface {
	Upload(ctx context.Context, f *media.StagedFile) (string, error)
	ResolveURL(path string) string
}

// Reply is the terminal outcome of one pipeline run: what to tell the user.
type Reply struct {
	Text string
	HTML bool
}

type Pipeline struct {
	fetcher   *media.Fetcher
	validator *media.Validator
	uploader  Uploader
}

func NewPipeline(fetcher *media.Fetcher, validator *media.Validator, uploader Uploader) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		validator: validator,
		uploader:  uploader,
	}
}

// Process runs one media reference through the full pipeline and returns the
// user-facing reply. It always returns a reply; internal failures degrade to
// a generic message rather than an error for the caller to interpret.
func (p *Pipeline) Process(ctx context.Context, ref media.MediaReference) Reply {
	// Advisory early rejection on the declared extension. Cheap, but never
	// authoritative: the sniffed-type check below decides.
	if !media.AllowedExtension(ref.Ext()) {
		logger.InfoCF("relay", "Rejected by extension pre-check", map[string]any{
			"ext": ref.Ext(),
		})
		return Reply{Text: msgUnsupportedExtension(ref.Ext())}
	}

	staged, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		logger.ErrorCF("relay", "Fetch failed", map[string]any{
			"file_id": ref.FileID,
			"error":   err.Error(),
		})
		return Reply{Text: msgDownloadFailed}
	}
	// Cleanup on every exit path from here on, panics included.
	defer staged.Remove()

	verdict, err := p.validator.Validate(staged)
	if err != nil {
		logger.ErrorCF("relay", "Validation read failed", map[string]any{
			"error": err.Error(),
		})
		return Reply{Text: msgSomethingWrong}
	}
	if !verdict.Accepted {
		switch verdict.Reason {
		case media.ReasonTooLarge:
			logger.InfoCF("relay", "Rejected: file too large", map[string]any{
				"bytes": verdict.Size,
			})
			return Reply{Text: msgTooLarge(verdict.Size)}
		case media.ReasonUnsupportedType:
			logger.InfoCF("relay", "Rejected: unsupported type", map[string]any{
				"mime": verdict.DetectedMIME,
			})
			return Reply{Text: msgUnsupportedType(verdict.DetectedMIME)}
		default:
			return Reply{Text: msgSomethingWrong}
		}
	}

	logger.InfoCF("relay", "Processing file", map[string]any{
		"name":  staged.Name(),
		"bytes": staged.Size(),
		"mime":  verdict.DetectedMIME,
	})

	path, err := p.uploader.Upload(ctx, staged)
	if err != nil {
		return Reply{Text: uploadFailureMessage(err)}
	}

	return Reply{Text: msgSuccess(p.uploader.ResolveURL(path)), HTML: true}
}

func uploadFailureMessage(err error) string {
	var rejected *telegraph.RemoteRejectedError
	var network *telegraph.NetworkError
	switch {
	case errors.Is(err, telegraph.ErrNoCredential):
		logger.ErrorC("relay", "Upload skipped: no Telegraph credential")
		return msgNoCredential
	case errors.As(err, &rejected):
		logger.ErrorCF("relay", "Upload rejected by remote", map[string]any{
			"status": rejected.Status,
		})
		return msgUploadFailed
	case errors.Is(err, telegraph.ErrMalformedResponse):
		logger.ErrorCF("relay", "Upload response malformed", map[string]any{
			"error": err.Error(),
		})
		return msgUploadFailed
	case errors.As(err, &network):
		logger.ErrorCF("relay", "Upload network failure", map[string]any{
			"error": err.Error(),
		})
		return msgUploadFailed
	default:
		logger.ErrorCF("relay", "Upload failed", map[string]any{
			"error": err.Error(),
		})
		return msgSomethingWrong
	}
}
