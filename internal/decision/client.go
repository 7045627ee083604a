// Package decision calls the external interview decision service,
// which owns question selection, follow-up policy and report
// generation.
package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ejanovitz/Rehearse/internal/interview"
)

// Client is an HTTP client for the decision service.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// StartRequest opens a new interview session.
type StartRequest struct {
	Name      string `json:"name"`
	RoleTitle string `json:"roleTitle"`
	RoleDesc  string `json:"roleDesc"`
	Intensity string `json:"intensity"`
}

// StartResponse carries everything needed before the door opens.
type StartResponse struct {
	SessionID         string `json:"sessionId"`
	GreetingText      string `json:"greetingText"`
	FirstMainQuestion string `json:"firstMainQuestion"`
	RoleBucket        string `json:"roleBucket"`
}

// ReportRequest asks for the final report over a finished interview.
type ReportRequest struct {
	SessionID          string           `json:"sessionId"`
	Name               string           `json:"name"`
	RoleTitle          string           `json:"roleTitle"`
	RoleDesc           string           `json:"roleDesc"`
	RoleBucket         string           `json:"roleBucket"`
	Intensity          string           `json:"intensity"`
	Turns              []interview.Turn `json:"turns"`
	RepeatRequestCount int              `json:"repeatRequestCount"`
}

// StartSession creates a session and returns the greeting material.
func (c *Client) StartSession(ctx context.Context, req StartRequest) (*StartResponse, error) {
	var resp StartResponse
	if err := c.post(ctx, "/session/start", req, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("decision service returned no session id")
	}
	return &resp, nil
}

// NextTurn reports the candidate's answer and returns the next move.
// Responses with an unknown action or no question text are rejected so
// the caller can fall back to its local recovery path.
func (c *Client) NextTurn(ctx context.Context, req interview.TurnRequest) (*interview.TurnDecision, error) {
	var resp interview.TurnDecision
	if err := c.post(ctx, "/turn/next", req, &resp); err != nil {
		return nil, err
	}
	switch resp.Action {
	case interview.ActionNextMain, interview.ActionAskFollowup, interview.ActionRepeatQuestion, interview.ActionEnd:
	default:
		return nil, fmt.Errorf("decision service returned unknown action %q", resp.Action)
	}
	if resp.AIText == "" {
		return nil, fmt.Errorf("decision service returned empty aiText for action %s", resp.Action)
	}
	return &resp, nil
}

// FinalReport generates the report for a finished interview. The
// response JSON passes through untouched.
func (c *Client) FinalReport(ctx context.Context, req ReportRequest) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.post(ctx, "/report/final", req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("decision request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("decision error %s: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
