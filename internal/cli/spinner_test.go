package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsMessage(t *testing.T) {
	var out syncBuffer
	s := newSpinner("Searching npm")
	s.w = &out
	s.Start()
	time.Sleep(3 * s.style.FPS)
	s.Update("Fetching metadata")
	time.Sleep(3 * s.style.FPS)
	s.Stop()

	got := out.String()
	if !strings.Contains(got, "Searching npm") || !strings.Contains(got, "Fetching metadata") {
		t.Errorf("spinner output %q missing messages", got)
	}
	if !s.Cancelled() {
		t.Error("Stop should cancel the spinner context")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.w = &syncBuffer{}
	s.Start()

	cancel()
	time.Sleep(50 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Testing idempotent stop...")
	s.w = &syncBuffer{}
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := newSpinner("never started")
	s.w = &syncBuffer{}
	s.Stop()
}

func TestSpinnerStopWithResult(t *testing.T) {
	out := captureStdout(t)

	s := newSpinner("Importing")
	s.w = &syncBuffer{}
	s.Start()
	s.StopWithSuccess("Imported 3 packages")

	s = newSpinner("Importing")
	s.w = &syncBuffer{}
	s.StopWithError("Import failed")

	if got := out.String(); !strings.Contains(got, "Imported 3 packages") || !strings.Contains(got, "Import failed") {
		t.Errorf("stdout = %q", got)
	}
}
