// Package httpserver exposes the REST surface and the interview
// WebSocket on one Echo router.
package httpserver

import (
	"errors"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ejanovitz/Rehearse/internal/config"
	"github.com/ejanovitz/Rehearse/internal/decision"
	"github.com/ejanovitz/Rehearse/internal/interview"
	"github.com/ejanovitz/Rehearse/internal/storage"
	"github.com/ejanovitz/Rehearse/internal/tts"
)

// pendingTTL is how long a started session may wait for its WebSocket
// before the claim expires.
const pendingTTL = 10 * time.Minute

// Deps are the collaborators handed to every interview.
type Deps struct {
	Decider *decision.Client
	Synth   tts.Synthesizer
	Sink    interview.RecordSink
	Loader  storage.Loader
}

type pendingInterview struct {
	session interview.SessionContext
	created time.Time
}

// Server bundles the router, interview dependencies and the registry of
// sessions waiting for their WebSocket.
type Server struct {
	cfg     config.Config
	deps    Deps
	echo    *echo.Echo
	started time.Time
	timings interview.Timings
	active  atomic.Int64

	mu      sync.Mutex
	pending map[string]pendingInterview
}

// New constructs the HTTP server with routes.
func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		started: time.Now(),
		timings: interview.DefaultTimings(),
		pending: make(map[string]pendingInterview),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/status", s.status)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/session/start", s.startSession)
	e.POST("/api/tts", s.synthesize)
	e.GET("/api/report/:sessionID", s.report)
	e.GET("/ws/interview", s.serveInterview)

	s.echo = e
	return s
}

// Router returns the handler to mount on an http.Server.
func (s *Server) Router() http.Handler { return s.echo }

type startSessionRequest struct {
	Name      string `json:"name"`
	RoleTitle string `json:"roleTitle"`
	RoleDesc  string `json:"roleDesc"`
	Intensity string `json:"intensity"`
}

type startSessionResponse struct {
	decision.StartResponse
	WSPath string `json:"wsPath"`
}

// startSession proxies session creation to the decision service and
// registers the session so the WebSocket can claim it.
func (s *Server) startSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.RoleTitle) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "roleTitle is required"})
	}

	resp, err := s.deps.Decider.StartSession(c.Request().Context(), decision.StartRequest{
		Name:      req.Name,
		RoleTitle: req.RoleTitle,
		RoleDesc:  req.RoleDesc,
		Intensity: req.Intensity,
	})
	if err != nil {
		c.Echo().Logger.Errorf("session start failed: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "decision service unavailable"})
	}

	s.register(interview.SessionContext{
		SessionID:     resp.SessionID,
		Name:          req.Name,
		RoleTitle:     req.RoleTitle,
		RoleDesc:      req.RoleDesc,
		RoleBucket:    resp.RoleBucket,
		Intensity:     req.Intensity,
		Greeting:      resp.GreetingText,
		FirstQuestion: resp.FirstMainQuestion,
	})
	return c.JSON(http.StatusOK, startSessionResponse{
		StartResponse: *resp,
		WSPath:        "/ws/interview?session=" + resp.SessionID,
	})
}

func (s *Server) register(sess interview.SessionContext) {
	now := time.Now()
	s.mu.Lock()
	for id, p := range s.pending {
		if now.Sub(p.created) > pendingTTL {
			delete(s.pending, id)
		}
	}
	s.pending[sess.SessionID] = pendingInterview{session: sess, created: now}
	s.mu.Unlock()
}

// claim hands a pending session to its WebSocket exactly once.
func (s *Server) claim(sessionID string) (interview.SessionContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[sessionID]
	if !ok {
		return interview.SessionContext{}, false
	}
	delete(s.pending, sessionID)
	if time.Since(p.created) > pendingTTL {
		return interview.SessionContext{}, false
	}
	return p.session, true
}

type ttsRequest struct {
	Text string `json:"text"`
}

// synthesize returns spoken audio for arbitrary text, mainly so the
// client can pre-fetch UI prompts through the same provider.
func (s *Server) synthesize(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	clip, err := s.deps.Synth.Synthesize(c.Request().Context(), req.Text)
	if err != nil {
		c.Echo().Logger.Errorf("tts synthesis failed: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "synthesis failed"})
	}
	return c.Blob(http.StatusOK, clip.MIME, clip.Audio)
}

// report loads the persisted interview and asks the decision service
// for the final report.
func (s *Server) report(c echo.Context) error {
	sessionID := c.Param("sessionID")
	rec, err := s.deps.Loader.Load(c.Request().Context(), sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown session"})
	}
	if err != nil {
		c.Echo().Logger.Errorf("load record %s: %v", sessionID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "record load failed"})
	}

	report, err := s.deps.Decider.FinalReport(c.Request().Context(), decision.ReportRequest{
		SessionID:          rec.SessionID,
		Name:               rec.Name,
		RoleTitle:          rec.RoleTitle,
		RoleDesc:           rec.RoleDesc,
		RoleBucket:         rec.RoleBucket,
		Intensity:          rec.Intensity,
		Turns:              rec.Turns,
		RepeatRequestCount: rec.RepeatRequestCount,
	})
	if err != nil {
		c.Echo().Logger.Errorf("final report %s: %v", sessionID, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "report generation failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"incomplete": rec.Incomplete,
		"report":     report,
	})
}

// status reports process health for dashboards.
func (s *Server) status(c echo.Context) error {
	cpuPct := 0.0
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		cpuPct = percentages[0]
	}
	memPct := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}
	return c.JSON(http.StatusOK, map[string]any{
		"uptime":           time.Since(s.started).Round(time.Second).String(),
		"goroutines":       runtime.NumGoroutine(),
		"cpuPercent":       cpuPct,
		"memPercent":       memPct,
		"activeInterviews": s.active.Load(),
	})
}
