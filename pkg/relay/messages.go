package relay

import (
	"fmt"

	"github.com/tinyland-inc/mediaclaw/pkg/media"
)

// User-facing reply strings. Every failure reason maps to exactly one of
// these; technical detail (status codes, paths, bodies) stays in the log.
const (
	msgWelcome = "Hey, I'm your Media to Telegraph Bot! 😎 Send me an image, video, or document, " +
		"and I'll give you a Telegraph link to share it. Supported formats: " + media.SupportedFormats + "."

	msgSendMedia = "Please send an image, video, or document to get a Telegraph link."

	msgDownloadFailed = "Failed to download the file. Try again!"

	msgUploadFailed = "Failed to upload to Telegraph. Please try again."

	msgNoCredential = "The upload service is not configured right now. Please try again later."

	msgSomethingWrong = "Something went wrong! Please try again."
)

func msgUnsupportedExtension(ext string) string {
	if ext == "" {
		return "Sorry, files without an extension are not supported. Please use " + media.SupportedFormats + "."
	}
	return fmt.Sprintf("Sorry, %s is not supported. Please use %s.", ext, media.SupportedFormats)
}

func msgTooLarge(size int64) string {
	return fmt.Sprintf("File is too large for Telegraph (max 5MB). Got %.2fMB.",
		float64(size)/1024/1024)
}

func msgUnsupportedType(mime string) string {
	return fmt.Sprintf("Unsupported file type: %s. Please use %s.", mime, media.SupportedFormats)
}

func msgSuccess(url string) string {
	return fmt.Sprintf("Here's your Telegraph link: <a href='%s'>View Media</a>", url)
}
