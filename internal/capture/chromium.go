package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "gitline/internal/log"
	"gitline/internal/measure"
)

// Default capture parameters. They match the width measure.Static lays the
// server-side SVG out for.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 900
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based measurement or capture.
type Options struct {
	// URL of the timeline page, e.g. "http://127.0.0.1:8080/".
	URL string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire browser session. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration

	// Settle is an extra delay after the page reports ready, letting the
	// final paints and draw animations finish.
	Settle time.Duration
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	if o.Settle <= 0 {
		o.Settle = 500 * time.Millisecond
	}
	return o
}

// Browser reads live geometry from the timeline page in headless Chromium.
// Its snapshots implement layout.Geometry, so a real browser reflow can be
// fed to the layout engine.
type Browser struct {
	opts Options
}

// NewBrowser returns a browser for the given options.
func NewBrowser(opts Options) *Browser {
	return &Browser{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (b *Browser) Options() Options { return b.opts }

// Result is the outcome of one browser session.
type Result struct {
	Snapshot *measure.Snapshot
	PNG      []byte
}

// measureScript collects the frame and every card/marker rectangle as plain
// objects. Rects are viewport-relative, like getBoundingClientRect.
const measureScript = `(() => {
  const rect = (el) => {
    const r = el.getBoundingClientRect();
    return {left: r.left, top: r.top, right: r.right, bottom: r.bottom};
  };
  const frame = document.querySelector('.timeline');
  if (!frame) {
    throw new Error('timeline frame not rendered');
  }
  const out = {
    frame: rect(frame),
    viewport: {width: window.innerWidth, height: window.innerHeight},
    elements: {},
  };
  document.querySelectorAll('.timeline-event-item[data-event-id]').forEach((item) => {
    const card = item.querySelector('.timeline-event-card');
    const marker = item.querySelector('.event-type-indicator');
    if (card && marker) {
      out.elements[item.dataset.eventId] = {card: rect(card), marker: rect(marker)};
    }
  });
  return out;
})()`

// Measure loads the page and returns its geometry.
func (b *Browser) Measure(ctx context.Context) (*measure.Snapshot, error) {
	res, err := b.run(ctx, true, false)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// CapturePNG loads the page and returns a full-page screenshot.
func (b *Browser) CapturePNG(ctx context.Context) ([]byte, error) {
	res, err := b.run(ctx, false, true)
	if err != nil {
		return nil, err
	}
	return res.PNG, nil
}

// Capture measures and screenshots the page in a single session.
func (b *Browser) Capture(ctx context.Context) (*Result, error) {
	return b.run(ctx, true, true)
}

// run launches a headless Chromium instance via chromedp, navigates to the
// page, waits for the DOM to signal that rendering is complete and then
// performs the requested reads.
//
// Rendering-complete condition:
//   - The page's .timeline element exposes data-ready="true" once the
//     branch paths returned by /api/layout have been drawn.
func (b *Browser) run(parentCtx context.Context, wantGeometry, wantPNG bool) (*Result, error) {
	if b.opts.URL == "" {
		return nil, errors.New("capture: URL is required")
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer timeoutCancel()

	res := &Result{}
	var raw measure.Snapshot
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(b.opts.Width), int64(b.opts.Height)),
		chromedp.Navigate(b.opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.Sleep(b.opts.Settle),
	}
	if wantGeometry {
		tasks = append(tasks, chromedp.Evaluate(measureScript, &raw))
	}
	if wantPNG {
		tasks = append(tasks, chromedp.FullScreenshot(&res.PNG, 100))
	}

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if wantGeometry {
		if !raw.FrameRect.Valid() {
			return nil, fmt.Errorf("capture: invalid frame rect %+v", raw.FrameRect)
		}
		if raw.Elements == nil {
			raw.Elements = make(map[string]measure.Element)
		}
		res.Snapshot = &raw
	}

	appLog.Info("browser session done",
		"url", b.opts.URL,
		"viewport", fmt.Sprintf("%dx%d", b.opts.Width, b.opts.Height),
		"elements", len(raw.Elements),
		"png_bytes", len(res.PNG),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return res, nil
}

// WritePNG stores png at path, creating the parent directory. The file is
// replaced atomically so readers never see a partial image.
func WritePNG(path string, png []byte) error {
	if path == "" {
		return errors.New("capture: output path is required")
	}
	if len(png) == 0 {
		return errors.New("capture: empty PNG")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
