// Package telegraph is the upload gateway for telegra.ph. It pushes validated
// media bytes to the upload endpoint and decodes the two response shapes the
// service is known to produce.
package telegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tinyland-inc/mediaclaw/pkg/logger"
	"github.com/tinyland-inc/mediaclaw/pkg/media"
)

const (
	// DefaultBaseURL is the public origin files are served from; resource
	// paths returned by Upload are joined against it.
	DefaultBaseURL = "https://telegra.ph"

	// DefaultAPIBaseURL is the account-management API origin.
	DefaultAPIBaseURL = "https://api.telegra.ph"

	userAgent = "MediaToTelegraphBot/1.0"

	// pathPrefix is the one known prefix of bare-string upload responses.
	pathPrefix = "/file/"
)

// ErrNoCredential is returned when Upload is called without an access token.
// The gateway never attempts an anonymous upload.
var ErrNoCredential = errors.New("telegraph: no access token configured")

// ErrMalformedResponse is returned when the remote answers 200 with a body in
// neither of the two known shapes.
var ErrMalformedResponse = errors.New("telegraph: malformed upload response")

// RemoteRejectedError is a non-200 answer from the upload endpoint.
type RemoteRejectedError struct {
	Status int
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("telegraph: upload rejected with status %d", e.Status)
}

// NetworkError wraps a transport-level failure, including client timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("telegraph: network: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Config holds gateway settings. AccessToken is immutable once the client is
// built; provision it first via CreateAccount when none is configured.
type Config struct {
	BaseURL     string
	APIBaseURL  string
	UploadURL   string // defaults to BaseURL + "/upload"
	AccessToken string
	ShortName   string
	AuthorName  string
}

type Client struct {
	baseURL    string
	uploadURL  string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	uploadURL := cfg.UploadURL
	if uploadURL == "" {
		uploadURL = baseURL + "/upload"
	}
	return &Client{
		baseURL:    baseURL,
		uploadURL:  uploadURL,
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload pushes the staged file to the upload endpoint and returns the
// resource path (e.g. "/file/abc.png"). The content type is sniffed again
// here, independently of any earlier validation, since Upload may be reached
// from entry points that did not run the full pipeline. A single attempt.
func (c *Client) Upload(ctx context.Context, f *media.StagedFile) (string, error) {
	if c.token == "" {
		return "", ErrNoCredential
	}

	mime, err := media.DetectMIME(f.Path())
	if err != nil {
		return "", fmt.Errorf("telegraph: sniff upload type: %w", err)
	}

	body, contentType, err := buildMultipart(f, mime)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		logger.ErrorCF("telegraph", "Upload rejected", map[string]any{
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return "", &RemoteRejectedError{Status: resp.StatusCode}
	}

	path, err := parseUploadResponse(raw)
	if err != nil {
		logger.ErrorCF("telegraph", "Unexpected upload response", map[string]any{
			"body": string(raw),
		})
		return "", err
	}

	logger.InfoCF("telegraph", "Upload succeeded", map[string]any{
		"path": path,
		"mime": mime,
	})
	return path, nil
}

// ResolveURL joins a resource path with the gateway's base origin to form the
// user-shareable absolute URL.
func (c *Client) ResolveURL(path string) string {
	return c.baseURL + path
}

func buildMultipart(f *media.StagedFile, mime string) (io.Reader, string, error) {
	src, err := os.Open(f.Path())
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = src.Close()
	}()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name()))
	header.Set("Content-Type", mime)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// parseUploadResponse decodes the two legitimate response shapes: a JSON
// array of objects each exposing a "src" path, or a bare JSON string carrying
// the path directly. Anything else is ErrMalformedResponse; no further shapes
// are special-cased.
func parseUploadResponse(raw []byte) (string, error) {
	var items []struct {
		Src string `json:"src"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		if len(items) == 0 || items[0].Src == "" {
			return "", fmt.Errorf("%w: array without src", ErrMalformedResponse)
		}
		return items[0].Src, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.HasPrefix(s, pathPrefix) {
			return s, nil
		}
		return "", fmt.Errorf("%w: string without %q prefix", ErrMalformedResponse, pathPrefix)
	}

	return "", ErrMalformedResponse
}

// CreateAccount provisions a Telegraph account and returns its access token.
// Called once at startup when no token is configured; the result is held as
// an immutable value for the process lifetime.
func CreateAccount(ctx context.Context, cfg Config) (string, error) {
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}

	form := url.Values{}
	form.Set("short_name", cfg.ShortName)
	form.Set("author_name", cfg.AuthorName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(apiBase, "/")+"/createAccount",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &RemoteRejectedError{Status: resp.StatusCode}
	}

	var decoded struct {
		Ok     bool   `json:"ok"`
		Error  string `json:"error"`
		Result struct {
			AccessToken string `json:"access_token"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !decoded.Ok || decoded.Result.AccessToken == "" {
		return "", fmt.Errorf("telegraph: create account failed: %s", decoded.Error)
	}

	return decoded.Result.AccessToken, nil
}
