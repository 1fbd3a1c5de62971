package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gitline/internal/catalog"
	"gitline/internal/config"
	"gitline/internal/layout"
	"gitline/internal/measure"
	"gitline/internal/model"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func testCatalog() *model.Catalog {
	return &model.Catalog{
		Events: []model.Event{
			{ID: "e1", Title: "First", Date: day(1983, 9, 27), Author: "Richard Stallman", Branch: "gnu", Type: "commit"},
			{ID: "e2", Title: "Second", Date: day(1991, 9, 17), Author: "Linus Torvalds", Branch: "linux", Type: "release"},
			{ID: "e3", Title: "Third", Date: day(2007, 6, 29), Author: "FSF", Branch: "gnu", Type: "merge"},
		},
		Branches: map[string]model.Branch{
			"gnu":   {Key: "gnu", Name: "GNU", Color: "#A8201A"},
			"linux": {Key: "linux", Name: "Linux", Color: "#F7C900"},
		},
	}
}

func newTestServer(t *testing.T, loaded bool) (*Server, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Capture.Output = filepath.Join(t.TempDir(), "preview.png")
	s := NewServer(cfg)
	if loaded {
		s.SetCatalog(testCatalog(), nil)
	}
	return s, cfg
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func staticSnapshot(t *testing.T, cat *model.Catalog) []byte {
	t.Helper()
	geo := measure.NewStatic(layout.CardsFor(cat.Events), measure.StaticOptions{Width: 1000})
	data, err := json.Marshal(geo.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return data
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestPageFallbackWhenCatalogMissing(t *testing.T) {
	s, cfg := newTestServer(t, false)
	rec := do(t, s.Handler(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "timeline-loading") || !strings.Contains(body, cfg.Page.ErrorMessage) {
		t.Errorf("fallback page missing error block: %s", body)
	}

	rec = do(t, s.Handler(), http.MethodPost, "/api/layout", staticSnapshot(t, testCatalog()))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("layout status = %d, want 503", rec.Code)
	}
}

func TestPage(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := do(t, s.Handler(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-event-id="e1"`, `data-event-id="e3"`, "Histoire de l&#39;Open Source", `/static/app.js`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rec.Code)
	}
}

func TestTimelineAPI(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := do(t, s.Handler(), http.MethodGet, "/api/timeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp timelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 3 || len(resp.Cards) != 3 {
		t.Errorf("events=%d cards=%d", len(resp.Events), len(resp.Cards))
	}
	if strings.Join(resp.BranchOrder, ",") != "gnu,linux" {
		t.Errorf("branch order = %v", resp.BranchOrder)
	}
}

func TestLayoutAPI(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := do(t, s.Handler(), http.MethodPost, "/api/layout", staticSnapshot(t, testCatalog()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp layoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Segments) != 3 {
		t.Fatalf("segments = %d, want 3 (one gnu pair)", len(resp.Segments))
	}
	for _, seg := range resp.Segments {
		if seg.Branch != "gnu" || seg.Color != "#A8201A" || seg.From != "e1" || seg.To != "e3" {
			t.Errorf("segment = %+v", seg)
		}
		if seg.Length <= 0 {
			t.Errorf("segment %s has no length", seg.Kind)
		}
	}
	if resp.Width != 1000 || !strings.HasPrefix(resp.ViewBox, "0 0 1000 ") {
		t.Errorf("surface = %v %q", resp.Width, resp.ViewBox)
	}
	if resp.Stroke.Class != "timeline-branch-line" || resp.Stroke.Width != 2 || resp.Stroke.Opacity != 0.3 {
		t.Errorf("stroke = %+v", resp.Stroke)
	}
	if resp.Animation == nil || len(resp.Animation.Branches) != 3 {
		t.Fatalf("animation plan = %+v", resp.Animation)
	}
	if resp.Animation.Branches[0].Scroll == nil {
		t.Error("scroll trigger expected with default config")
	}
}

func TestLayoutAPIRejectsBadSnapshot(t *testing.T) {
	s, _ := newTestServer(t, true)
	for name, body := range map[string]string{
		"not json":  "{",
		"bad frame": `{"frame":{"left":10,"top":0,"right":0,"bottom":10}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/api/layout", []byte(body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
	if rec := do(t, s.Handler(), http.MethodGet, "/api/layout", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/layout = %d, want 405", rec.Code)
	}
}

func TestLayoutAPIEmptyGeometry(t *testing.T) {
	s, _ := newTestServer(t, true)
	body := `{"frame":{"left":0,"top":0,"right":800,"bottom":600},"viewport":{"width":800,"height":600},"elements":{}}`
	rec := do(t, s.Handler(), http.MethodPost, "/api/layout", []byte(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"segments":[]`) {
		t.Errorf("expected empty segments: %s", rec.Body.String())
	}
}

func TestSVG(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := do(t, s.Handler(), http.MethodGet, "/timeline.svg?width=900", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	first := rec.Body.String()
	if !strings.Contains(first, `viewBox="0 0 900 `) || strings.Count(first, "timeline-branch-line") != 3 {
		t.Errorf("unexpected svg: %.300s", first)
	}

	again := do(t, s.Handler(), http.MethodGet, "/timeline.svg?width=900", nil).Body.String()
	if again != first {
		t.Error("cached svg differs")
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/timeline.svg?width=10", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("tiny width = %d, want 400", rec.Code)
	}
	animated := do(t, s.Handler(), http.MethodGet, "/timeline.svg?animate=1", nil).Body.String()
	if !strings.Contains(animated, "<animate ") {
		t.Error("animate=1 should add SMIL animations")
	}
}

func TestStaticAndPreview(t *testing.T) {
	s, cfg := newTestServer(t, true)
	rec := do(t, s.Handler(), http.MethodGet, "/static/app.js", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/layout") {
		t.Errorf("app.js = %d", rec.Code)
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/preview.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing preview = %d, want 404", rec.Code)
	}
	if err := os.WriteFile(cfg.Capture.Output, []byte("\x89PNG"), 0o644); err != nil {
		t.Fatalf("write preview: %v", err)
	}
	if rec := do(t, s.Handler(), http.MethodGet, "/preview.png", nil); rec.Code != http.StatusOK {
		t.Errorf("preview = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	s, cfg := newTestServer(t, true)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health behind auth = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous page = %d, want 401", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorised page = %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	s, cfg := newTestServer(t, false)
	path := filepath.Join(t.TempDir(), "timeline-events.json")
	body := `{"events":[{"id":"a","title":"A","date":"2000-01-01","branch":"core"},{"id":"b","title":"B","date":"2001-01-01","branch":"core"}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg.Catalog.Path = path

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	cat, err := s.Catalog()
	if err != nil || len(cat.Events) != 2 {
		t.Fatalf("catalog = %v, %v", cat, err)
	}

	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.json")
	rec := do(t, s.Handler(), http.MethodPost, "/api/refresh", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("refresh of missing catalog = %d, want 503", rec.Code)
	}
	if _, err := s.Catalog(); !errors.Is(err, catalog.ErrLoad) {
		t.Errorf("catalog error = %v, want ErrLoad", err)
	}
}

func TestRefreshDuringConcurrentFailedLoads(t *testing.T) {
	s, cfg := newTestServer(t, false)
	path := filepath.Join(t.TempDir(), "timeline-events.json")
	body := `{"events":[{"id":"a","title":"A","date":"2000-01-01","branch":"core"}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg.Catalog.Path = path
	h := s.Handler()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.SetCatalog(nil, errors.New("source unavailable"))
			}
		}
	}()

	for i := 0; i < 200; i++ {
		rec := do(t, h, http.MethodPost, "/api/refresh", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("refresh #%d = %d: %s", i, rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"events":1`) {
			t.Fatalf("refresh #%d body = %s", i, rec.Body.String())
		}
	}
	close(stop)
	wg.Wait()
}

func TestPageResizeDebounce(t *testing.T) {
	s, cfg := newTestServer(t, true)
	cfg.Watch.DebounceMS = 900
	cfg.Layout.ResizeDebounceMS = 350
	body := do(t, s.Handler(), http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(body, `data-resize-debounce="350"`) {
		t.Errorf("page does not carry the layout resize debounce")
	}
}

func TestAppScriptPlaysMainLine(t *testing.T) {
	s, _ := newTestServer(t, true)
	js := do(t, s.Handler(), http.MethodGet, "/static/app.js", nil).Body.String()
	for _, want := range []string{"plan.mainLine", "--timeline-progress"} {
		if !strings.Contains(js, want) {
			t.Errorf("app.js missing %q", want)
		}
	}
}
