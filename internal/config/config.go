package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	TTS      TTSConfig
	Image    ImageConfig
	Video    VideoConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Queue    QueueConfig
	Webhook  WebhookConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimitRPS    float64 // per client; 0 disables
	RateLimitBurst  int
}

type LogConfig struct {
	Level string
}

// DatabaseConfig is optional; an empty URL disables the stage ledger.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	// MigrationsPath overrides the embedded migrations with a directory on disk.
	MigrationsPath string
}

// RedisConfig is optional; an empty Addr disables background jobs.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig enables bearer-token auth on /api when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	GeminiKey        string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	Stream           bool // accumulate streamed completions instead of one-shot calls
}

type TTSConfig struct {
	Backend               string // "google", "openai" or "local"
	DefaultVoice          string
	SpeakingRate          float64
	GoogleAPIKey          string
	GoogleCredentialsFile string
	OpenAIKey             string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAIFormat          string
	LocalBinPath          string // default: "piper"
	LocalModel            string // required when backend=local
	LocalSampleRate       int
}

type ImageConfig struct {
	Backend             string // "unsplash", "pollinations" or "openai"
	UnsplashAccessKey   string
	UnsplashBaseURL     string
	PollinationsBaseURL string
	OpenAIKey           string
	OpenAIModel         string
	PlaceholderURL      string // {text} is replaced by the escaped prompt
}

type VideoConfig struct {
	Backend        string // "mock" or "ffmpeg"
	FFmpegPath     string
	PlaceholderURL string
	Resolution     string
	FPS            int
}

type StorageConfig struct {
	TempDir   string
	URLPrefix string
}

type PipelineConfig struct {
	Pacing       time.Duration
	CallTimeout  time.Duration
	DurationMode string // "estimate" or "measured"
}

type QueueConfig struct {
	Concurrency int
	StatusTTL   time.Duration
}

type WebhookConfig struct {
	Secret  string
	Timeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            intVar("SERVER_PORT", 8080),
			ReadTimeout:     durVar("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    durVar("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			IdleTimeout:     durVar("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: durVar("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:    floatVar("RATE_LIMIT_RPS", 2),
			RateLimitBurst:  intVar("RATE_LIMIT_BURST", 10),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 10),
			MinConns:       intVar("DB_MIN_CONNS", 1),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        openAIKey,
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:        getEnv("GEMINI_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "gemini"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gemini-2.0-flash-exp"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       intVar("LLM_MAX_RETRIES", 0),
			Stream:           boolVar("LLM_STREAM", false),
		},
		TTS: TTSConfig{
			Backend:               getEnv("TTS_BACKEND", "google"),
			DefaultVoice:          getEnv("TTS_DEFAULT_VOICE", "en-US-Neural2-J"),
			SpeakingRate:          floatVar("TTS_SPEAKING_RATE", 1.0),
			GoogleAPIKey:          getEnv("GOOGLE_TTS_API_KEY", getEnv("GEMINI_API_KEY", "")),
			GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			OpenAIKey:             openAIKey,
			OpenAIBaseURL:         getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:           getEnv("TTS_OPENAI_MODEL", ""),
			OpenAIFormat:          getEnv("TTS_OPENAI_FORMAT", "mp3"),
			LocalBinPath:          getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:            getEnv("TTS_LOCAL_PIPER_MODEL", ""),
			LocalSampleRate:       intVar("TTS_LOCAL_SAMPLE_RATE", 22050),
		},
		Image: ImageConfig{
			Backend:             getEnv("IMAGE_BACKEND", "unsplash"),
			UnsplashAccessKey:   getEnv("UNSPLASH_ACCESS_KEY", ""),
			UnsplashBaseURL:     getEnv("UNSPLASH_BASE_URL", "https://api.unsplash.com"),
			PollinationsBaseURL: getEnv("POLLINATIONS_BASE_URL", "https://image.pollinations.ai"),
			OpenAIKey:           openAIKey,
			OpenAIModel:         getEnv("IMAGE_OPENAI_MODEL", "dall-e-3"),
			PlaceholderURL:      getEnv("IMAGE_PLACEHOLDER_URL", "https://via.placeholder.com/1920x1080/4F46E5/FFFFFF?text={text}"),
		},
		Video: VideoConfig{
			Backend:        getEnv("VIDEO_BACKEND", "mock"),
			FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
			PlaceholderURL: getEnv("VIDEO_PLACEHOLDER_URL", "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"),
			Resolution:     getEnv("VIDEO_RESOLUTION", "1920x1080"),
			FPS:            intVar("VIDEO_FPS", 30),
		},
		Storage: StorageConfig{
			TempDir:   getEnv("TEMP_DIR", "temp"),
			URLPrefix: getEnv("TEMP_URL_PREFIX", "/temp"),
		},
		Pipeline: PipelineConfig{
			Pacing:       durVar("PIPELINE_PACING", 100*time.Millisecond),
			CallTimeout:  durVar("PIPELINE_CALL_TIMEOUT", 2*time.Minute),
			DurationMode: getEnv("AUDIO_DURATION_MODE", "estimate"),
		},
		Queue: QueueConfig{
			Concurrency: intVar("WORKER_CONCURRENCY", 2),
			StatusTTL:   durVar("JOB_STATUS_TTL", 24*time.Hour),
		},
		Webhook: WebhookConfig{
			Secret:  getEnv("WEBHOOK_SECRET", ""),
			Timeout: durVar("WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks enums and ranges. Backends that lack credentials are not
// an error here; they fail on first use with a generation error.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("SERVER_PORT out of range: %d", c.Server.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if !oneOf(c.TTS.Backend, "google", "openai", "local") {
		problems = append(problems, fmt.Sprintf("TTS_BACKEND must be google, openai or local: %q", c.TTS.Backend))
	}
	if c.TTS.Backend == "local" && c.TTS.LocalModel == "" {
		problems = append(problems, "TTS_LOCAL_PIPER_MODEL is required when TTS_BACKEND=local")
	}
	if !oneOf(c.Image.Backend, "unsplash", "pollinations", "openai") {
		problems = append(problems, fmt.Sprintf("IMAGE_BACKEND must be unsplash, pollinations or openai: %q", c.Image.Backend))
	}
	if !oneOf(c.Video.Backend, "mock", "ffmpeg") {
		problems = append(problems, fmt.Sprintf("VIDEO_BACKEND must be mock or ffmpeg: %q", c.Video.Backend))
	}
	if c.Video.FPS <= 0 {
		problems = append(problems, fmt.Sprintf("VIDEO_FPS must be positive: %d", c.Video.FPS))
	}
	if !oneOf(c.Pipeline.DurationMode, "estimate", "measured") {
		problems = append(problems, fmt.Sprintf("AUDIO_DURATION_MODE must be estimate or measured: %q", c.Pipeline.DurationMode))
	}
	if c.Pipeline.CallTimeout < 0 {
		problems = append(problems, "PIPELINE_CALL_TIMEOUT must not be negative")
	}
	if c.LLM.MaxRetries < 0 {
		problems = append(problems, "LLM_MAX_RETRIES must not be negative")
	}
	if c.Queue.Concurrency <= 0 {
		problems = append(problems, "WORKER_CONCURRENCY must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %q", c.Log.Level)
	}
	return lvl, nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
