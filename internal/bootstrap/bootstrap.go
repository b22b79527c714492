// Package bootstrap wires configuration into the services both binaries
// share.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/videgen/internal/audit"
	"github.com/nikhilbhutani/videgen/internal/config"
	"github.com/nikhilbhutani/videgen/internal/database"
	"github.com/nikhilbhutani/videgen/internal/llm"
	"github.com/nikhilbhutani/videgen/internal/multimodal/image"
	"github.com/nikhilbhutani/videgen/internal/multimodal/tts"
	"github.com/nikhilbhutani/videgen/internal/pipeline"
	"github.com/nikhilbhutani/videgen/internal/storage"
	"github.com/nikhilbhutani/videgen/internal/video"
)

// LoadConfig loads and validates configuration, then installs the JSON
// logger at the configured level as the slog default.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// OpenDatabase connects and migrates when DATABASE_URL is set. It returns
// nil without error when the ledger is disabled.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, pool, database.MigrationSource(cfg.MigrationsPath)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return pool, nil
}

// OpenRedis connects when REDIS_ADDR is set and returns nil otherwise.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Services is a fully wired pipeline plus the resources it holds.
type Services struct {
	Pipeline *pipeline.Pipeline
	Store    *storage.LocalStore
	Gateway  llm.Gateway
}

func (s *Services) Close() error {
	return s.Gateway.Close()
}

// NewServices builds the pipeline and its collaborators. db may be nil.
func NewServices(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*Services, error) {
	store, err := storage.NewLocalStore(cfg.Storage.TempDir, cfg.Storage.URLPrefix)
	if err != nil {
		return nil, err
	}

	gw, err := llm.NewGateway(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}
	if len(gw.ListModels()) == 0 {
		slog.Warn("no text generation provider configured; script and timeline stages will fail")
	}

	speech, err := NewSynthesizer(ctx, cfg.TTS)
	if err != nil {
		gw.Close()
		return nil, err
	}

	width, height, err := video.ParseResolution(cfg.Video.Resolution)
	if err != nil {
		gw.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Store:      store,
		Text:       llm.NewTextGenerator(gw, cfg.LLM.Stream),
		Speech:     speech,
		Images:     NewImageSource(cfg.Image, width, height),
		Compositor: NewCompositor(cfg.Video),
		Logger:     slog.Default(),
	}
	if db != nil {
		deps.Recorder = audit.NewService(db)
	}

	p, err := pipeline.New(pipeline.Config{
		DefaultModel:        cfg.LLM.DefaultModel,
		DefaultVoice:        cfg.TTS.DefaultVoice,
		Pacing:              cfg.Pipeline.Pacing,
		CallTimeout:         cfg.Pipeline.CallTimeout,
		MeasureDuration:     cfg.Pipeline.DurationMode == "measured",
		PlaceholderImageURL: cfg.Image.PlaceholderURL,
		PlaceholderVideoURL: cfg.Video.PlaceholderURL,
		Width:               width,
		Height:              height,
		FPS:                 cfg.Video.FPS,
	}, deps)
	if err != nil {
		gw.Close()
		return nil, err
	}

	slog.Info("pipeline ready",
		"tts", speech.Name(),
		"images", deps.Images.Name(),
		"video", cfg.Video.Backend,
		"ledger", db != nil,
	)
	return &Services{Pipeline: p, Store: store, Gateway: gw}, nil
}

func NewSynthesizer(ctx context.Context, cfg config.TTSConfig) (tts.TTSProvider, error) {
	switch cfg.Backend {
	case "openai":
		return tts.NewOpenAITTS(tts.OpenAITTSConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Format:  cfg.OpenAIFormat,
		}), nil
	case "local":
		return tts.NewLocalTTS(tts.LocalTTSConfig{
			PiperBinPath: cfg.LocalBinPath,
			ModelPath:    cfg.LocalModel,
			SampleRate:   cfg.LocalSampleRate,
		}), nil
	case "google", "":
		g, err := tts.NewGoogleTTS(ctx, tts.GoogleTTSConfig{
			APIKey:          cfg.GoogleAPIKey,
			CredentialsFile: cfg.GoogleCredentialsFile,
			SpeakingRate:    cfg.SpeakingRate,
		})
		if err != nil {
			return nil, fmt.Errorf("google tts: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown TTS backend %q", cfg.Backend)
	}
}

func NewImageSource(cfg config.ImageConfig, width, height int) image.Source {
	switch cfg.Backend {
	case "pollinations":
		return image.NewPollinationsSource(cfg.PollinationsBaseURL, width, height)
	case "openai":
		return image.NewOpenAISource(cfg.OpenAIKey, "", cfg.OpenAIModel)
	default:
		return image.NewUnsplashSource(cfg.UnsplashAccessKey, cfg.UnsplashBaseURL)
	}
}

// NewCompositor returns nil for the mock backend, which puts the assembly
// stage in degraded mode.
func NewCompositor(cfg config.VideoConfig) video.Compositor {
	if cfg.Backend == "ffmpeg" {
		return video.NewFFmpeg(cfg.FFmpegPath)
	}
	return nil
}
