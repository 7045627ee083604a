package decision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ejanovitz/Rehearse/internal/interview"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_StartSession(t *testing.T) {
	paths := make(chan string, 1)
	bodies := make(chan StartRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		var req StartRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		bodies <- req
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessionId":"s-1","greetingText":"Welcome!","firstMainQuestion":"Q1?","roleBucket":"MID"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.StartSession(testCtx(t), StartRequest{
		Name:      "Dana",
		RoleTitle: "Backend Engineer",
		RoleDesc:  "Go services",
		Intensity: "medium",
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if got := <-paths; got != "/session/start" {
		t.Fatalf("path: %s", got)
	}
	body := <-bodies
	if body.RoleTitle != "Backend Engineer" || body.Intensity != "medium" {
		t.Fatalf("request body: %+v", body)
	}
	if resp.SessionID != "s-1" || resp.GreetingText != "Welcome!" || resp.FirstMainQuestion != "Q1?" || resp.RoleBucket != "MID" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestClient_StartSessionRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"greetingText":"hi"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.StartSession(testCtx(t), StartRequest{RoleTitle: "x"}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
}

func TestClient_NextTurn(t *testing.T) {
	bodies := make(chan interview.TurnRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/turn/next" {
			t.Errorf("path: %s", r.URL.Path)
		}
		var req interview.TurnRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		bodies <- req
		_, _ = w.Write([]byte(`{"action":"ASK_FOLLOWUP","aiText":"Why that approach?","mainQuestionIndex":1,"followupCount":2}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	dec, err := c.NextTurn(testCtx(t), interview.TurnRequest{
		SessionID:      "s-1",
		Phase:          interview.PhaseMain,
		AIPromptedText: "Tell me about scaling.",
		UserTranscript: "We sharded by tenant.",
		TurnsSoFar:     []interview.Turn{{Kind: interview.TurnAI, AIText: "Tell me about scaling."}},
	})
	if err != nil {
		t.Fatalf("next turn: %v", err)
	}
	body := <-bodies
	if body.Phase != interview.PhaseMain || body.UserTranscript != "We sharded by tenant." || len(body.TurnsSoFar) != 1 {
		t.Fatalf("request body: %+v", body)
	}
	if dec.Action != interview.ActionAskFollowup || dec.AIText != "Why that approach?" || dec.MainQuestionIndex != 1 || dec.FollowupCount != 2 {
		t.Fatalf("decision: %+v", dec)
	}
}

func TestClient_NextTurnRejectsBadDecisions(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown_action", `{"action":"DANCE","aiText":"?"}`},
		{"empty_ai_text", `{"action":"NEXT_MAIN","aiText":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			if _, err := c.NextTurn(testCtx(t), interview.TurnRequest{SessionID: "s-1"}); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestClient_ErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = w.Write([]byte("session not found"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.NextTurn(testCtx(t), interview.TurnRequest{SessionID: "s-1"})
	if err == nil {
		t.Fatalf("expected error; got nil")
	}
	if !strings.Contains(err.Error(), "status=500") || !strings.Contains(err.Error(), "session not found") {
		t.Fatalf("error detail: %v", err)
	}
}

func TestClient_FinalReportPassesThrough(t *testing.T) {
	raw := `{"overall":7,"strengths":["clear answers"],"verdict":"Hire"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/report/final" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(raw))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	report, err := c.FinalReport(testCtx(t), ReportRequest{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("final report: %v", err)
	}
	if string(report) != raw {
		t.Fatalf("report: %s", report)
	}
}
