package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ejanovitz/Rehearse/internal/config"
	"github.com/ejanovitz/Rehearse/internal/decision"
	"github.com/ejanovitz/Rehearse/internal/httpserver"
	"github.com/ejanovitz/Rehearse/internal/storage"
	"github.com/ejanovitz/Rehearse/internal/tts"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	srv := httpserver.New(cfg, buildDeps(cfg))

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}

// buildDeps assembles the record stores, the synthesizer and the
// decision client from configuration. Records always land in memory;
// Redis and Supabase join when configured and reachable.
func buildDeps(cfg config.Config) httpserver.Deps {
	memory := storage.NewMemory()
	sinks := storage.Fanout{memory}
	var loader storage.Loader = memory

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rds, err := storage.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisRecordTTL)
		cancel()
		if err != nil {
			log.Printf("Warning: redis unavailable at %s: %v", cfg.RedisAddr, err)
		} else {
			sinks = append(sinks, rds)
			loader = rds
		}
	}

	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		sb, err := storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		if err != nil {
			log.Printf("Warning: supabase archive disabled: %v", err)
		} else {
			sinks = append(sinks, sb)
		}
	}

	return httpserver.Deps{
		Decider: decision.NewClient(cfg.BackendURL),
		Synth:   buildSynthesizer(cfg),
		Sink:    sinks,
		Loader:  loader,
	}
}

func buildSynthesizer(cfg config.Config) tts.Synthesizer {
	switch cfg.TTSProvider {
	case "elevenlabs":
		return tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	case "deepgram":
		return tts.NewDeepgramClient(cfg.DeepgramKey, "")
	default:
		return tts.NewBackendSynthesizer(cfg.BackendURL)
	}
}
