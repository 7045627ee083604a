package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBackendSynthesizer_RelaysAudio(t *testing.T) {
	bodies := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts" {
			t.Errorf("path: %s", r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		bodies <- req
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	b := NewBackendSynthesizer(srv.URL + "/")
	clip, err := b.Synthesize(testCtx(t), "hello candidate")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if req := <-bodies; req["text"] != "hello candidate" {
		t.Fatalf("request body: %v", req)
	}
	if string(clip.Audio) != "mp3-bytes" || clip.MIME != "audio/mpeg" {
		t.Fatalf("clip: %q %s", clip.Audio, clip.MIME)
	}
}

func TestBackendSynthesizer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		_, _ = w.Write([]byte("voice provider down"))
	}))
	defer srv.Close()

	b := NewBackendSynthesizer(srv.URL)
	_, err := b.Synthesize(testCtx(t), "hello")
	if err == nil {
		t.Fatalf("expected error; got nil")
	}
	if !strings.Contains(err.Error(), "status=502") || !strings.Contains(err.Error(), "voice provider down") {
		t.Fatalf("error detail: %v", err)
	}
}

func TestBackendSynthesizer_EmptyAudioRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewBackendSynthesizer(srv.URL)
	if _, err := b.Synthesize(testCtx(t), "hello"); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}
