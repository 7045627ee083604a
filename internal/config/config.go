package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// BackendURL is the base URL of the interview decision service.
	BackendURL string

	TTSProvider       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisRecordTTL time.Duration

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	RecognitionLang string
	WSAuthPassword  string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8085"
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		log.Println("Warning: BACKEND_URL not set - interviews cannot start")
	}

	provider := os.Getenv("TTS_PROVIDER")
	if provider == "" {
		provider = "backend"
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if provider == "elevenlabs" && elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - TTS will not work")
	}
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if provider == "deepgram" && deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	redisDB := intEnv("REDIS_DB", 0)
	ttlHours := intEnv("REDIS_RECORD_TTL_HOURS", 72)

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	supabaseBucket := os.Getenv("SUPABASE_BUCKET")
	if supabaseBucket == "" {
		supabaseBucket = "interviews"
	}
	if supabaseURL != "" && supabaseKey == "" {
		log.Println("Warning: SUPABASE_SERVICE_ROLE_KEY not set - record archiving disabled")
	}

	lang := os.Getenv("RECOGNITION_LANG")
	if lang == "" {
		lang = "en-US"
	}

	log.Printf("config: HTTP_ADDRESS=%s TTS_PROVIDER=%s", addr, provider)
	return Config{
		HTTPAddress:        addr,
		BackendURL:         backendURL,
		TTSProvider:        provider,
		ElevenLabsKey:      elevenKey,
		ElevenLabsVoiceID:  voiceID,
		DeepgramKey:        deepgramKey,
		RedisAddr:          redisAddr,
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		RedisRecordTTL:     time.Duration(ttlHours) * time.Hour,
		SupabaseURL:        supabaseURL,
		SupabaseServiceKey: supabaseKey,
		SupabaseBucket:     supabaseBucket,
		RecognitionLang:    lang,
		WSAuthPassword:     os.Getenv("WS_AUTH_PASSWORD"),
	}
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %d", key, raw, fallback)
		return fallback
	}
	return n
}
