package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yt-summer/internal/api"
	"github.com/yt-summer/internal/auth"
	"github.com/yt-summer/internal/config"
	"github.com/yt-summer/internal/content"
	"github.com/yt-summer/internal/directory"
	"github.com/yt-summer/internal/lock"
	"github.com/yt-summer/internal/storage"
	"github.com/yt-summer/internal/summarize"
	"github.com/yt-summer/internal/syncer"
	"github.com/yt-summer/internal/youtube"
)

const lockTTL = 10 * time.Minute

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Warn(".env file not found")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize locks
	var locker lock.Locker = lock.NewMemory()
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedis(ctx, cfg.RedisURL, lockTTL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	// Initialize storage
	repo, err := openRepository(ctx, cfg, locker, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer repo.Close()

	// Initialize YouTube access
	httpClient := &http.Client{Timeout: 30 * time.Second}
	yt, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize YouTube client: %w", err)
	}
	transcripts := youtube.NewTranscriptFetcher(httpClient, logger)

	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, summaries will use the extractive fallback")
	}
	summarizer := summarize.NewService(
		summarize.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel),
		summarize.Options{
			RetryDelay:    cfg.SummaryRetryDelay,
			RatePerMinute: cfg.SummaryRatePerMinute,
		},
		logger,
	)

	dir := directory.New(repo, locker, logger)
	sync := syncer.New(
		dir,
		repo,
		yt,
		content.NewResolver(transcripts, yt, logger),
		summarizer,
		locker,
		syncer.Options{
			MaxVideos:        cfg.SyncMaxVideos,
			VideosPerChannel: cfg.SyncVideosPerChannel,
		},
		logger,
	)

	deps := api.Deps{
		Directory:      dir,
		Summaries:      repo,
		Syncer:         sync,
		AllowedOrigins: cfg.AllowedOrigins,
		SyncTimeout:    cfg.SyncTimeout,
		Logger:         logger,
	}

	// Initialize Google sign-in
	if cfg.AuthEnabled() {
		verifier, err := auth.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return fmt.Errorf("failed to initialize token verifier: %w", err)
		}
		deps.Verifier = verifier
		if cfg.GoogleClientSecret != "" && cfg.GoogleRedirectURL != "" {
			deps.OAuth = auth.NewGoogleProvider(auth.OAuthConfig{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.GoogleRedirectURL,
			})
		}
	} else {
		logger.Warn("GOOGLE_CLIENT_ID is not set, trusting the " + auth.DevUserHeader + " header")
	}

	server := api.NewServer(deps)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("storage", cfg.StorageDriver),
			slog.Bool("redis", cfg.RedisURL != ""))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg *config.Config, locker lock.Locker, logger *slog.Logger) (storage.Repository, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite, config.DriverPostgres:
		open := storage.OpenSQLite
		if cfg.StorageDriver == config.DriverPostgres {
			open = storage.OpenPostgres
		}
		repo, err := open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverSQLiteCloud:
		store, err := storage.OpenSQLiteCloud(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return storage.NewDocumentRepository(store, locker), nil
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryRepository(locker), nil
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
