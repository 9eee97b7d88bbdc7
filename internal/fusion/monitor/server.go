// Package monitor serves the HTTP status, query and debug endpoints of a
// running fusion process.
package monitor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/fusion/storage/sqlite"
	"github.com/banshee-data/sensor.fusion/internal/fusion/visualiser"
	"github.com/banshee-data/sensor.fusion/internal/httputil"
	"github.com/banshee-data/sensor.fusion/internal/timeutil"
	"github.com/banshee-data/sensor.fusion/internal/version"
)

// Config contains the web server dependencies. Every field except Address
// is optional; endpoints whose backing component is missing report 404 or
// 503.
type Config struct {
	Address    string
	Latest     *Latest
	Store      *sqlite.Store
	Runner     *pipeline.Runner
	Visualiser *visualiser.Publisher
	// MaxRange scales scene plot colouring.
	MaxRange float64
	Clock    timeutil.Clock
}

// Server handles the HTTP interface.
type Server struct {
	cfg     Config
	started time.Time
	server  *http.Server
	mux     *http.ServeMux
}

// NewServer creates a server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.MaxRange <= 0 {
		cfg.MaxRange = pipeline.DefaultConfig().MaxRange
	}
	s := &Server{cfg: cfg, started: cfg.Clock.Now()}
	mux, err := s.setupRoutes()
	if err != nil {
		return nil, err
	}
	s.mux = mux
	s.server = &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		fusion.Opsf("monitor: listening on %s", s.cfg.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		fusion.Opsf("monitor: shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			fusion.Opsf("monitor: force close error: %v", err)
		}
	}
	fusion.Diagf("monitor: stopped")
	return nil
}

func (s *Server) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/clusters", s.handleClusters)
	mux.HandleFunc("/api/overlay.png", s.handleOverlay)
	mux.HandleFunc("/debug/clusters", s.handleClusterChart)
	mux.HandleFunc("/debug/scene.png", s.handleScenePlot)
	if s.cfg.Store != nil {
		if err := s.cfg.Store.AttachAdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("attaching admin routes: %w", err)
		}
	}
	return mux, nil
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	LastFrame  string                     `json:"last_frame,omitempty"`
	Runner     *pipeline.RunnerStats      `json:"runner,omitempty"`
	Visualiser *visualiser.PublisherStats `json:"visualiser,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := healthResponse{
		Status:  "ok",
		Version: version.String(),
		Uptime:  s.cfg.Clock.Since(s.started).Round(time.Second).String(),
	}
	if s.cfg.Runner != nil {
		st := s.cfg.Runner.Stats()
		resp.Runner = &st
	}
	if s.cfg.Visualiser != nil {
		st := s.cfg.Visualiser.Stats()
		resp.Visualiser = &st
	}
	if s.cfg.Latest != nil {
		if f := s.cfg.Latest.Frame(); f != nil {
			resp.LastFrame = f.FrameID
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.cfg.Store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	frames, err := s.cfg.Store.RecentFrames(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if frames == nil {
		frames = []sqlite.FrameRow{}
	}
	httputil.WriteJSONOK(w, frames)
}

// handleClusters returns the ranked clusters of a stored frame, or the
// live listing when frame_id is omitted.
// Query params:
//   - frame_id (optional)
//   - camera_id (optional; required for the live listing)
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	frameID, cameraID := q.Get("frame_id"), q.Get("camera_id")

	if frameID != "" {
		if s.cfg.Store == nil {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
			return
		}
		rows, err := s.cfg.Store.FrameClusters(r.Context(), frameID, cameraID)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rows == nil {
			rows = []sqlite.ClusterRow{}
		}
		httputil.WriteJSONOK(w, rows)
		return
	}

	snap, ok := s.snapshot(w, cameraID)
	if !ok {
		return
	}
	rows := make([]sqlite.ClusterRow, len(snap.Clusters))
	for i, c := range snap.Clusters {
		rows[i] = sqlite.ClusterRow{FrameID: snap.FrameID, CameraID: snap.CameraID, Stamp: snap.Stamp, ClusterSummary: c}
	}
	httputil.WriteJSONOK(w, rows)
}

func (s *Server) snapshot(w http.ResponseWriter, cameraID string) (CameraSnapshot, bool) {
	if cameraID == "" {
		httputil.BadRequest(w, "missing 'camera_id' parameter")
		return CameraSnapshot{}, false
	}
	if s.cfg.Latest == nil {
		httputil.NotFound(w, "no live output available")
		return CameraSnapshot{}, false
	}
	snap, ok := s.cfg.Latest.Camera(cameraID)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no output for camera %q", cameraID))
		return CameraSnapshot{}, false
	}
	return snap, true
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.snapshot(w, r.URL.Query().Get("camera_id"))
	if !ok {
		return
	}
	if snap.Overlay == nil {
		httputil.NotFound(w, "no overlay for camera")
		return
	}
	httputil.WritePNG(w, snap.Overlay)
}

// handleClusterChart renders the latest clusters of every camera as an
// HTML scatter. Debugging only.
func (s *Server) handleClusterChart(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Latest == nil {
		httputil.NotFound(w, "no live output available")
		return
	}
	var snaps []CameraSnapshot
	for _, id := range s.cfg.Latest.CameraIDs() {
		if snap, ok := s.cfg.Latest.Camera(id); ok {
			snaps = append(snaps, snap)
		}
	}
	var buf bytes.Buffer
	if err := renderClusterChart(&buf, snaps); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleScenePlot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r.URL.Query().Get("camera_id"))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := renderScenePlot(&buf, snap, s.cfg.MaxRange); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
