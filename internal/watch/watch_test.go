package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	var calls, total int32
	fired := make(chan struct{}, 4)
	d := NewDebouncer(100*time.Millisecond, func(events []Event) {
		atomic.AddInt32(&calls, 1)
		atomic.AddInt32(&total, int32(len(events)))
		fired <- struct{}{}
	})
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(Event{Path: "a"})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	time.Sleep(150 * time.Millisecond)
	if c, n := atomic.LoadInt32(&calls), atomic.LoadInt32(&total); c != 1 || n != 5 {
		t.Errorf("calls=%d events=%d, want 1 and 5", c, n)
	}
}

func TestDebouncerStop(t *testing.T) {
	var calls int32
	d := NewDebouncer(20*time.Millisecond, func([]Event) { atomic.AddInt32(&calls, 1) })
	d.Add(Event{Path: "a"})
	d.Stop()
	d.Add(Event{Path: "b"})
	time.Sleep(60 * time.Millisecond)
	if c := atomic.LoadInt32(&calls); c != 0 {
		t.Errorf("stopped debouncer fired %d times", c)
	}
}

func TestWatcherReportsFileWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "timeline-events.json")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(target, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make(chan []Event, 4)
	w, err := New(func(events []Event) { got <- events }, WithDebounceDuration(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Add(target); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := os.WriteFile(other, []byte("ignored"), 0o600); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(target, []byte(`{"events":[]}`), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case events := <-got:
		abs, _ := filepath.Abs(target)
		for _, ev := range events {
			if ev.Path != abs {
				t.Errorf("unexpected event for %s", ev.Path)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no events delivered")
	}
}

func TestWatcherErrors(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil handler")
	}
	w, err := New(func([]Event) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Add(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing path")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
