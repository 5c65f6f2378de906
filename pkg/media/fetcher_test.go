package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

type staticResolver struct {
	url   string
	err   error
	calls int
}

func (r *staticResolver) ResolveFileURL(string) (string, error) {
	r.calls++
	return r.url, r.err
}

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFetch_StagesFile(t *testing.T) {
	payload := []byte("hello media")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(&staticResolver{url: srv.URL}, dir, 5*time.Second)

	staged, err := f.Fetch(context.Background(), MediaReference{FileID: "abc", FileName: "pic.jpg"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer staged.Remove()

	if staged.Size() != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", staged.Size(), len(payload))
	}

	names := scratchEntries(t, dir)
	if len(names) != 1 {
		t.Fatalf("scratch dir has %d files, want exactly 1", len(names))
	}
	if !strings.HasPrefix(names[0], "mediaclaw-") {
		t.Errorf("scratch name %q lacks random-token prefix", names[0])
	}
	if !strings.HasSuffix(names[0], ".jpg") {
		t.Errorf("scratch name %q lacks allow-listed extension hint", names[0])
	}
}

func TestFetch_IgnoresUnsafeExtensionHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(&staticResolver{url: srv.URL}, dir, 5*time.Second)

	staged, err := f.Fetch(context.Background(), MediaReference{FileID: "abc", FileName: "evil.sh"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer staged.Remove()

	if strings.HasSuffix(staged.Name(), ".sh") {
		t.Errorf("scratch name %q kept sender-controlled extension", staged.Name())
	}
}

func TestFetch_RemoteStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(&staticResolver{url: srv.URL}, dir, 5*time.Second)

	_, err := f.Fetch(context.Background(), MediaReference{FileID: "abc"})
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %T is not *FetchError", err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", fe.Status)
	}
	if IsNetworkError(err) {
		t.Error("remote status failure misclassified as network error")
	}
	if names := scratchEntries(t, dir); len(names) != 0 {
		t.Errorf("scratch dir has %v after failed fetch, want none", names)
	}
}

func TestFetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	dir := t.TempDir()
	f := NewFetcher(&staticResolver{url: url}, dir, 2*time.Second)

	_, err := f.Fetch(context.Background(), MediaReference{FileID: "abc"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNetworkError(err) {
		t.Errorf("expected network classification, got %v", err)
	}
	if names := scratchEntries(t, dir); len(names) != 0 {
		t.Errorf("scratch dir has %v after failed fetch, want none", names)
	}
}

func TestFetch_ResolverFailure(t *testing.T) {
	dir := t.TempDir()
	f := NewFetcher(&staticResolver{err: context.DeadlineExceeded}, dir, time.Second)

	_, err := f.Fetch(context.Background(), MediaReference{FileID: "abc"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNetworkError(err) {
		t.Errorf("expected network classification, got %v", err)
	}
}

func TestStagedFile_RemoveIdempotent(t *testing.T) {
	f := stage(t, "x.png", pngHeader)
	f.Remove()
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) && f.Path() != "" {
		t.Errorf("file still present after Remove")
	}
	f.Remove() // must not panic or log an error path
	var nilFile *StagedFile
	nilFile.Remove()
}
