package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gitline/internal/animate"
	"gitline/internal/catalog"
	"gitline/internal/config"
	"gitline/internal/layout"
	appLog "gitline/internal/log"
	"gitline/internal/measure"
	"gitline/internal/model"
	"gitline/internal/render"
)

// maxSnapshotBytes bounds POST /api/layout bodies.
const maxSnapshotBytes = 4 << 20

// Server hosts the timeline page and its APIs. The catalog is shared by all
// requests and swapped atomically on reload; every layout request gets its
// own engine and surface.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	catalogMu sync.RWMutex
	cat       *model.Catalog
	loadErr   error
	loadedAt  time.Time

	// In-memory cache for /timeline.svg, keyed by width and animation.
	// Cleared whenever the catalog changes.
	svgMu    sync.RWMutex
	svgCache map[svgKey]*svgCache
}

type svgKey struct {
	width   int
	animate bool
}

type svgCache struct {
	body      []byte
	updatedAt time.Time
}

// embeddedStatic contains the page script and stylesheet.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server. The catalog starts unloaded; call
// Reload (or SetCatalog) before serving.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		loadErr:  catalog.ErrLoad,
		svgCache: make(map[svgKey]*svgCache),
	}
	s.registerRoutes()
	return s
}

// Reload loads the configured catalog and swaps it in. On failure the
// previous catalog is dropped and the page switches to its error fallback.
func (s *Server) Reload(ctx context.Context) error {
	_, err := s.reload(ctx)
	return err
}

// reload returns the catalog it installed, which may already have been
// replaced by a concurrent reload when the caller looks at the server again.
func (s *Server) reload(ctx context.Context) (*model.Catalog, error) {
	opts, err := s.cfg.CatalogOptions()
	if err != nil {
		err = &catalog.LoadError{Source: s.cfg.CatalogSource().Name(), Err: err}
		s.SetCatalog(nil, err)
		return nil, err
	}
	cat, err := catalog.Load(ctx, s.cfg.CatalogSource(), opts)
	s.SetCatalog(cat, err)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// SetCatalog replaces the served catalog and its load error.
func (s *Server) SetCatalog(cat *model.Catalog, err error) {
	if err == nil && cat == nil {
		err = catalog.ErrLoad
	}
	s.catalogMu.Lock()
	s.cat, s.loadErr, s.loadedAt = cat, err, time.Now()
	s.catalogMu.Unlock()

	s.svgMu.Lock()
	s.svgCache = make(map[svgKey]*svgCache)
	s.svgMu.Unlock()
}

// Catalog returns the current catalog, or the error of the last load.
func (s *Server) Catalog() (*model.Catalog, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.cat, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gitline", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	s.mux.HandleFunc("POST /api/layout", s.handleLayout)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /timeline.svg", s.handleSVG)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.Handle("GET /static/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePage renders the timeline page, or the loading-failure fallback
// with 503 when the catalog is unavailable.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	pc := s.cfg.Page
	status := http.StatusOK

	var page render.Page
	cat, err := s.Catalog()
	if err != nil {
		status = http.StatusServiceUnavailable
		page = render.ErrorPage(pc.Lang, pc.Title, pc.Subtitle, pc.ErrorMessage)
	} else {
		page = render.NewPage(cat, pc.Lang, pc.Title, pc.Subtitle)
		page.StrokeWidth = s.cfg.Layout.StrokeWidth
		page.Opacity = s.cfg.Layout.Opacity
		page.Animate = s.cfg.Animation.Enabled
		page.ScrollTrigger = s.cfg.Animation.ScrollTrigger
		page.ResizeDebounce = s.cfg.Layout.ResizeDebounceMS
	}

	var buf bytes.Buffer
	if err := page.Write(&buf); err != nil {
		appLog.Error("page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// timelineResponse is the JSON response shape for /api/timeline.
type timelineResponse struct {
	Events      []model.Event           `json:"events"`
	Branches    map[string]model.Branch `json:"branches"`
	BranchOrder []string                `json:"branch_order"`
	Cards       []layout.RenderedCard   `json:"cards"`
	LoadedAt    time.Time               `json:"loaded_at"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, _ *http.Request) {
	cat, err := s.Catalog()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, s.cfg.Page.ErrorMessage)
		return
	}
	s.catalogMu.RLock()
	loadedAt := s.loadedAt
	s.catalogMu.RUnlock()

	writeJSON(w, http.StatusOK, timelineResponse{
		Events:      cat.Events,
		Branches:    cat.Branches,
		BranchOrder: cat.BranchOrder(),
		Cards:       layout.CardsFor(cat.Events),
		LoadedAt:    loadedAt,
	})
}

// strokeDTO carries the presentation attributes of every branch path.
type strokeDTO struct {
	Class   string  `json:"class"`
	Width   float64 `json:"width"`
	Opacity float64 `json:"opacity"`
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	Width     float64          `json:"width"`
	Height    float64          `json:"height"`
	ViewBox   string           `json:"view_box"`
	Stroke    strokeDTO        `json:"stroke"`
	Segments  []layout.Segment `json:"segments"`
	Animation *animate.Plan    `json:"animation,omitempty"`
}

// handleLayout runs one layout pass over the geometry the page measured.
//
// POST /api/layout
//
//	{"frame": {...}, "viewport": {...}, "elements": {"<event id>": {"card": {...}, "marker": {...}}}}
//
// Lanes are re-derived from the catalog order, the same way the page
// rendered them.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	cat, err := s.Catalog()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, s.cfg.Page.ErrorMessage)
		return
	}

	snap, err := measure.DecodeSnapshot(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		appLog.Debug("layout request rejected", "err", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng := layout.New(snap, s.cfg.LayoutOptions())
	surface := eng.Attach(nil)
	segments := eng.Layout(layout.Input{
		Events:   cat.Events,
		Branches: cat.Branches,
		Viewport: snap.Viewport,
		Cards:    layout.CardsFor(cat.Events),
	})
	if segments == nil {
		segments = []layout.Segment{}
	}

	size := surface.Size()
	resp := layoutResponse{
		Width:    size.Width,
		Height:   size.Height,
		ViewBox:  surface.ViewBox(),
		Segments: segments,
		Stroke: strokeDTO{
			Class:   "timeline-branch-line",
			Width:   s.cfg.Layout.StrokeWidth,
			Opacity: s.cfg.Layout.Opacity,
		},
	}
	if s.cfg.Animation.Enabled {
		plan := s.driver().Plan(cat.Events, segments)
		resp.Animation = &plan
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) driver() *animate.Driver {
	var cfg animate.Config
	if s.cfg.Animation.ScrollTrigger {
		cfg.Scroll = animate.ViewportTrigger{}
	}
	return animate.New(cfg)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cat, err := s.reload(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"events": len(cat.Events)})
}

// handleSVG renders the timeline server-side with the synthetic layout.
//
// GET /timeline.svg?width=1200&animate=1
func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	cat, err := s.Catalog()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, s.cfg.Page.ErrorMessage)
		return
	}

	q := r.URL.Query()
	static := s.cfg.Layout.Static
	if static.Width <= 0 {
		static.Width = measure.DefaultStaticOptions().Width
	}
	width := parseIntDefault(q.Get("width"), int(static.Width))
	if width < 320 || width > 8192 {
		writeError(w, http.StatusBadRequest, "width must be between 320 and 8192")
		return
	}
	static.Width = float64(width)
	key := svgKey{width: width, animate: q.Get("animate") == "1"}

	const svgCacheTTL = 5 * time.Minute
	s.svgMu.RLock()
	sc := s.svgCache[key]
	s.svgMu.RUnlock()
	if sc != nil && time.Since(sc.updatedAt) < svgCacheTTL {
		writeSVG(w, sc.body)
		return
	}

	var buf bytes.Buffer
	segments, err := render.Timeline(&buf, cat, static, s.cfg.LayoutOptions(), render.SVGOptions{
		Lang:        s.cfg.Page.Lang,
		StrokeWidth: s.cfg.Layout.StrokeWidth,
		Opacity:     s.cfg.Layout.Opacity,
		Animate:     key.animate,
	})
	if err != nil {
		appLog.Error("svg render failed", err, "width", width)
		writeError(w, http.StatusInternalServerError, "failed to render svg")
		return
	}
	appLog.Debug("svg rendered", "width", width, "segments", len(segments), "bytes", buf.Len())

	s.svgMu.Lock()
	s.svgCache[key] = &svgCache{body: buf.Bytes(), updatedAt: time.Now()}
	s.svgMu.Unlock()

	writeSVG(w, buf.Bytes())
}

func writeSVG(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handlePreview serves the last captured PNG preview from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile answers 404 for a missing preview.
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

// staticFileServer serves the embedded page script and stylesheet under
// /static/.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static assets not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
