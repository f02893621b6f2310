// Package bootstrap provides dependency initialization for the autocut
// server and CLI.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/autocut/internal/config"
	"github.com/maauso/autocut/internal/job"
	"github.com/maauso/autocut/internal/media"
	"github.com/maauso/autocut/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService *job.Service
	Storage    storage.Storage
	MediaIO    *media.FileIO
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media loading and writing
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
	fileIO := media.NewFileIO(processor, cfg.TempDir, logger)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svc := job.NewService(
		repo,
		fileIO,
		store,
		logger,
		job.WithMaxSampleLength(cfg.MaxSampleLength),
		job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
	)

	return &Dependencies{
		JobService: svc,
		Storage:    store,
		MediaIO:    fileIO,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
