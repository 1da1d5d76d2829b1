package joiner

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// Opener hands a meeting URL to something that can join it.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// BrowserOpener opens URLs with the desktop's default handler, which
// launches the Zoom client for zoom.us links.
type BrowserOpener struct{}

// Open starts the handler without waiting for it; the process outlives ctx.
func (BrowserOpener) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// RecordingOpener remembers URLs instead of opening them.
type RecordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (r *RecordingOpener) Open(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return nil
}

// URLs returns the URLs opened so far.
func (r *RecordingOpener) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
