// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Server     ServerConfig
	Store      StoreConfig
	Storage    StorageConfig
	Generation GenerationConfig
	Speech     SpeechConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// StoreConfig holds durable book store configuration.
type StoreConfig struct {
	// Path is the badger database directory for book records.
	Path string
}

// StorageConfig holds generated asset storage configuration.
type StorageConfig struct {
	ImageDir string
	VideoDir string
	SoundDir string
}

// GenerationConfig holds generative model configuration.
type GenerationConfig struct {
	APIKey      string
	ScriptModel string
	ImageModel  string
	VideoModel  string
	// MaxLinesPerPage bounds the dialogue count the script stage may emit per page.
	MaxLinesPerPage int
	// MaxConcurrentPages caps simultaneous per-page generation tasks within one
	// pipeline run. The speech engine has its own, independent limit.
	MaxConcurrentPages int
	// VideoPollInterval is the wait between polls of a long-running video operation.
	VideoPollInterval time.Duration
	// RequestsPerMinute paces outbound generative calls (0 disables pacing).
	RequestsPerMinute int
}

// SpeechConfig holds speech synthesis configuration.
type SpeechConfig struct {
	// Mode selects the batch speech implementation: "local" runs the engine
	// in-process against the synthesizer API; "remote" calls a separate TTS service.
	Mode      string
	RemoteURL string
	APIKey    string
	VoiceID   string
	ModelID   string
	Language  string
	// MaxConcurrent is the process-wide admission limit for in-flight synthesis calls.
	MaxConcurrent int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	port := flag.String("port", "", "Server port (default: 8080)")
	bookDir := flag.String("book-dir", "", "Badger directory for book records")
	imageDir := flag.String("image-dir", "", "Directory for generated images")
	videoDir := flag.String("video-dir", "", "Directory for generated videos")
	soundDir := flag.String("sound-dir", "", "Directory for synthesized audio")
	ttsMode := flag.String("tts-mode", "", `Speech mode: "local" or "remote"`)
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	return loadConfig(*envFile, map[string]string{
		"ENVIRONMENT":    *env,
		"LOG_LEVEL":      *logLevel,
		"PORT":           *port,
		"BOOK_DATA_DIR":  *bookDir,
		"IMAGE_DATA_DIR": *imageDir,
		"VIDEO_DATA_DIR": *videoDir,
		"SOUND_DATA_DIR": *soundDir,
		"TTS_MODE":       *ttsMode,
	})
}

// LoadConfigFromFile is LoadConfig with an explicit .env path and no flag layer.
func LoadConfigFromFile(envFile string) (*Config, error) {
	return loadConfig(envFile, nil)
}

func loadConfig(envFile string, overrides map[string]string) (*Config, error) {
	// Load .env first so plain env vars can still override via getEnv order below.
	fileVars, err := loadEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	get := func(key, fallback string) string {
		if v := overrides[key]; v != "" {
			return v
		}
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v, ok := fileVars[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		App: AppConfig{
			Environment: get("ENVIRONMENT", "development"),
		},
		Logger: LoggerConfig{
			Level: get("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:         get("PORT", "8080"),
			ReadTimeout:  mustDuration(get("READ_TIMEOUT", "60s")),
			// Batch synthesis responds synchronously and can take minutes.
			WriteTimeout: mustDuration(get("WRITE_TIMEOUT", "300s")),
			IdleTimeout:  mustDuration(get("IDLE_TIMEOUT", "60s")),
			CORSOrigins:  splitList(get("CORS_ORIGINS", "http://localhost:5173")),
		},
		Store: StoreConfig{
			Path: get("BOOK_DATA_DIR", "./data/book"),
		},
		Storage: StorageConfig{
			ImageDir: get("IMAGE_DATA_DIR", "./data/image"),
			VideoDir: get("VIDEO_DATA_DIR", "./data/video"),
			SoundDir: get("SOUND_DATA_DIR", "./data/sound"),
		},
		Generation: GenerationConfig{
			APIKey:             get("GOOGLE_API_KEY", ""),
			ScriptModel:        get("SCRIPT_MODEL", "gemini-2.5-flash"),
			ImageModel:         get("IMAGE_MODEL", "gemini-2.5-flash-image"),
			VideoModel:         get("VIDEO_MODEL", "veo-3.1-generate-preview"),
			MaxLinesPerPage:    mustInt(get("MAX_DIALOGUES_PER_PAGE", "3")),
			MaxConcurrentPages: mustInt(get("MAX_CONCURRENT_PAGES", "4")),
			VideoPollInterval:  mustDuration(get("VIDEO_POLL_INTERVAL", "10s")),
			RequestsPerMinute:  mustInt(get("GENERATION_RPM", "0")),
		},
		Speech: SpeechConfig{
			Mode:          get("TTS_MODE", "remote"),
			RemoteURL:     get("TTS_API_URL", "http://tts-api:8000"),
			APIKey:        get("ELEVENLABS_API_KEY", ""),
			VoiceID:       get("TTS_DEFAULT_VOICE_ID", ""),
			ModelID:       get("TTS_DEFAULT_MODEL_ID", "eleven_v3"),
			Language:      get("TTS_DEFAULT_LANGUAGE", "en"),
			MaxConcurrent: mustInt(get("TTS_MAX_CONCURRENT_REQUESTS", "5")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Generation.MaxConcurrentPages < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PAGES must be at least 1")
	}
	if c.Speech.MaxConcurrent < 1 {
		return fmt.Errorf("TTS_MAX_CONCURRENT_REQUESTS must be at least 1")
	}
	switch c.Speech.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("TTS_MODE must be \"local\" or \"remote\", got %q", c.Speech.Mode)
	}
	return nil
}

// loadEnvFile parses KEY=VALUE lines from a .env file.
// A missing file is not an error.
func loadEnvFile(path string) (map[string]string, error) {
	vars := make(map[string]string)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return vars, nil
		}
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		vars[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	return vars, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
