package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinyland-inc/mediaclaw/pkg/bus"
	"github.com/tinyland-inc/mediaclaw/pkg/channels"
	"github.com/tinyland-inc/mediaclaw/pkg/media"
	"github.com/tinyland-inc/mediaclaw/pkg/relay"
	"github.com/tinyland-inc/mediaclaw/pkg/telegraph"
)

// TestRelayFlow exercises the whole path a Telegram photo takes: inbound bus
// message, file download, size and type validation, Telegraph upload, and the
// reply delivered back through the originating channel.

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type staticResolver struct{ url string }

func (r *staticResolver) ResolveFileURL(string) (string, error) {
	return r.url, nil
}

// captureChannel records outbound sends so the test can assert on the reply.
type captureChannel struct {
	*channels.BaseChannel
	sent chan bus.OutboundMessage
}

func (c *captureChannel) Start(context.Context) error { return nil }
func (c *captureChannel) Stop(context.Context) error  { return nil }

func (c *captureChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.sent <- msg
	return nil
}

type fixture struct {
	bus     *bus.MessageBus
	channel *captureChannel
	scratch string
}

func startRelay(t *testing.T, fileBody []byte, uploadHandler http.HandlerFunc) *fixture {
	t.Helper()

	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fileBody)
	}))
	t.Cleanup(fileSrv.Close)

	uploadSrv := httptest.NewServer(uploadHandler)
	t.Cleanup(uploadSrv.Close)

	scratch := t.TempDir()
	b := bus.NewMessageBus()
	t.Cleanup(b.Close)

	ch := &captureChannel{
		BaseChannel: channels.NewBaseChannel("telegram", b, nil),
		sent:        make(chan bus.OutboundMessage, 8),
	}

	fetcher := media.NewFetcher(&staticResolver{url: fileSrv.URL}, scratch, 5*time.Second)
	validator := media.NewValidator(media.DefaultMaxFileBytes)
	uploader := telegraph.NewClient(telegraph.Config{
		UploadURL:   uploadSrv.URL,
		AccessToken: "e2e-token",
	})
	pipeline := relay.NewPipeline(fetcher, validator, uploader)
	loop := relay.NewLoop(b, pipeline, map[string]channels.Channel{"telegram": ch})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)
	go loop.DispatchOutbound(ctx)

	return &fixture{bus: b, channel: ch, scratch: scratch}
}

func (f *fixture) awaitReply(t *testing.T) bus.OutboundMessage {
	t.Helper()
	select {
	case msg := <-f.channel.sent:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no reply delivered before timeout")
		return bus.OutboundMessage{}
	}
}

func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratch)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d scratch files left behind, want 0", len(entries))
	}
}

func TestRelayFlow_PhotoToTelegraphLink(t *testing.T) {
	body := append(append([]byte{}, jpegHeader...), make([]byte, 2*1024*1024)...)
	f := startRelay(t, body, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer e2e-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"src": "/file/xyz.jpg"}]`))
	})

	err := f.bus.PublishInbound(context.Background(), bus.InboundMessage{
		Channel:   "telegram",
		ChatID:    "42",
		MessageID: "100",
		Kind:      bus.KindPhoto,
		Media:     &media.MediaReference{FileID: "photo-1", FileName: "photo.jpg"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reply := f.awaitReply(t)
	if !strings.Contains(reply.Content, "https://telegra.ph/file/xyz.jpg") {
		t.Errorf("reply = %q, want the telegra.ph link", reply.Content)
	}
	if !reply.HTML {
		t.Error("success reply should be HTML")
	}
	if reply.ReplyTo != "100" {
		t.Errorf("ReplyTo = %q, want %q", reply.ReplyTo, "100")
	}
	f.assertScratchEmpty(t)
}

func TestRelayFlow_OversizedVideoRejected(t *testing.T) {
	// 6 MiB of MP4: fetched fine, rejected by the validator before upload.
	body := append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'},
		make([]byte, 6*1024*1024)...)
	var uploads atomic.Int32
	f := startRelay(t, body, func(w http.ResponseWriter, _ *http.Request) {
		uploads.Add(1)
		_, _ = w.Write([]byte(`[{"src": "/file/never.mp4"}]`))
	})

	err := f.bus.PublishInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Kind:    bus.KindVideo,
		Media:   &media.MediaReference{FileID: "vid-1", FileName: "clip.mp4"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reply := f.awaitReply(t)
	if !strings.Contains(reply.Content, "too large") {
		t.Errorf("reply = %q, want size rejection", reply.Content)
	}
	if n := uploads.Load(); n != 0 {
		t.Errorf("upload endpoint hit %d times, want 0", n)
	}
	f.assertScratchEmpty(t)
}

func TestRelayFlow_UploadFailureStillCleansUp(t *testing.T) {
	f := startRelay(t, jpegHeader, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})

	err := f.bus.PublishInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Kind:    bus.KindDocument,
		Media:   &media.MediaReference{FileID: "doc-1", FileName: "pic.jpg"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reply := f.awaitReply(t)
	if !strings.Contains(reply.Content, "Failed to upload") {
		t.Errorf("reply = %q, want upload failure message", reply.Content)
	}
	f.assertScratchEmpty(t)
}

func TestRelayFlow_StartCommand(t *testing.T) {
	f := startRelay(t, jpegHeader, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"src": "/file/x.jpg"}]`))
	})

	err := f.bus.PublishInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Kind:    bus.KindCommand,
		Command: "start",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reply := f.awaitReply(t)
	if !strings.Contains(reply.Content, "Media to Telegraph Bot") {
		t.Errorf("reply = %q, want welcome text", reply.Content)
	}
}
