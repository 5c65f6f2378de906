package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxFileBytes is the Telegraph upload limit.
const DefaultMaxFileBytes = 5 * 1024 * 1024

// allowedMIMEs is the fixed allow-list of sniffed content types.
var allowedMIMEs = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"video/mp4":  {},
}

// allowedExtensions mirrors allowedMIMEs for the advisory pre-download check.
// Extensions are attacker-controlled; the sniffed type is authoritative.
var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".mp4":  {},
}

// AllowedExtension reports whether a declared filename extension is one the
// relay would even attempt to download. Case-insensitive.
func AllowedExtension(ext string) bool {
	_, ok := allowedExtensions[strings.ToLower(ext)]
	return ok
}

// SupportedFormats is the user-facing list of accepted formats.
const SupportedFormats = "JPG, PNG, GIF, or MP4"

type RejectReason int

const (
	// ReasonNone marks an accepted verdict.
	ReasonNone RejectReason = iota
	// ReasonTooLarge: the staged file exceeds the size limit.
	ReasonTooLarge
	// ReasonUnsupportedType: the sniffed content type is not allow-listed.
	ReasonUnsupportedType
)

// Verdict is the outcome of validating a staged file. For rejections it
// carries what the user-facing message needs: the observed size for
// ReasonTooLarge, the detected type for ReasonUnsupportedType.
type Verdict struct {
	Accepted     bool
	Reason       RejectReason
	Size         int64
	DetectedMIME string
}

// Validator applies the relay's acceptance policy to downloaded bytes.
type Validator struct {
	maxBytes int64
}

func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// Validate checks size first, then the sniffed content type, short-circuiting
// on the first failure. It never consults the filename: senders control that.
// The returned error covers only I/O problems reading the staged file.
func (v *Validator) Validate(f *StagedFile) (Verdict, error) {
	if f.Size() > v.maxBytes {
		return Verdict{Reason: ReasonTooLarge, Size: f.Size()}, nil
	}

	mime, err := DetectMIME(f.Path())
	if err != nil {
		return Verdict{}, err
	}
	if _, ok := allowedMIMEs[mime]; !ok {
		return Verdict{Reason: ReasonUnsupportedType, DetectedMIME: mime}, nil
	}

	return Verdict{Accepted: true, Size: f.Size(), DetectedMIME: mime}, nil
}

// DetectMIME sniffs the content type from the file's magic signature.
func DetectMIME(path string) (string, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mime.String(), nil
}
