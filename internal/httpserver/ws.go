package httpserver

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ejanovitz/Rehearse/internal/bridge"
	"github.com/ejanovitz/Rehearse/internal/capture"
	"github.com/ejanovitz/Rehearse/internal/interview"
	"github.com/ejanovitz/Rehearse/internal/metrics"
	"github.com/ejanovitz/Rehearse/internal/playback"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// serveInterview claims the pending session named in the query,
// upgrades the socket and runs the interview until it finishes or the
// client goes away.
func (s *Server) serveInterview(c echo.Context) error {
	r := c.Request()
	if s.cfg.WSAuthPassword != "" && !checkAuthHeaderOrQuery(r, s.cfg.WSAuthPassword) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	sessionID := c.QueryParam("session")
	sess, ok := s.claim(sessionID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown or expired session"})
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return nil
	}

	conn := bridge.New(ws, s.cfg.RecognitionLang)
	mic := capture.NewSession(conn, capture.DefaultConfig())
	voice := playback.NewSession(s.deps.Synth, conn)

	orc, err := interview.New(interview.Config{
		Session:  sess,
		Decider:  s.deps.Decider,
		Capture:  mic,
		Voice:    voice,
		Sink:     s.deps.Sink,
		Timings:  s.timings,
		OnChange: conn.PushState,
	})
	if err != nil {
		log.Printf("[%s] interview setup: %v", sessionID, err)
		conn.Close()
		return nil
	}
	conn.Bind(orc.StopAnswer, orc.RequestExit, orc.SetMuted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := orc.Start(ctx); err != nil {
		log.Printf("[%s] interview start: %v", sessionID, err)
		conn.Close()
		return nil
	}
	s.active.Add(1)
	metrics.ActiveInterviews.Inc()
	defer func() {
		s.active.Add(-1)
		metrics.ActiveInterviews.Dec()
	}()

	readDone := make(chan struct{})
	go func() {
		conn.ReadLoop()
		close(readDone)
	}()

	select {
	case <-orc.Done():
		conn.Navigate("report")
	case <-readDone:
		// client went away; treat as exit and wait for teardown
		cancel()
		<-orc.Done()
	}
	conn.Close()
	log.Printf("[%s] interview finished", sessionID)
	return nil
}

func checkAuthHeaderOrQuery(r *http.Request, password string) bool {
	if r == nil || password == "" {
		return false
	}
	if q := r.URL.Query().Get("password"); q != "" && q == password {
		return true
	}
	ah := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		tok := strings.TrimSpace(ah[len("Bearer "):])
		if tok == password {
			return true
		}
	}
	if x := r.Header.Get("X-Auth-Token"); x != "" && x == password {
		return true
	}
	return false
}
