package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/autocut/internal/editor"
	"github.com/maauso/autocut/internal/storage"
)

// Static errors for job submission.
var (
	// ErrInvalidKind is returned for an unknown job kind.
	ErrInvalidKind = errors.New("invalid job kind")
	// ErrMissingSource is returned when no source path is given.
	ErrMissingSource = errors.New("source path is required")
)

// Progress checkpoints reported while a job runs.
const (
	progressValidate  = 0
	progressProcess   = 10
	progressDenoise   = 20
	progressStitch    = 50
	progressExport    = 70
	progressUploading = 85
)

// Request contains the input parameters of one job.
type Request struct {
	// Kind is the operation to run.
	Kind Kind
	// SourcePath is the recording to process.
	SourcePath string
	// ExportPrefix is the output path without extension. Empty derives it
	// from the source path and the job ID.
	ExportPrefix string
	// Staged marks SourcePath as a temporary upload. It is removed once the
	// job finishes and the result is always exported.
	Staged bool
	// Upload pushes the export to object storage.
	Upload bool
	// Clip configures edit jobs.
	Clip editor.ClipOptions
	// Denoise configures denoise jobs, and edit jobs when
	// ApplyNoiseReduction is set.
	Denoise editor.DenoiseOptions
	// ApplyNoiseReduction denoises before detection on edit jobs.
	ApplyNoiseReduction bool
}

// Settings is the effective parameter record written next to each export.
type Settings struct {
	JobID         string                 `json:"job_id"`
	Kind          Kind                   `json:"kind"`
	Source        string                 `json:"source"`
	Export        string                 `json:"export"`
	Edited        bool                   `json:"edited"`
	Clip          *editor.ClipOptions    `json:"clip,omitempty"`
	Denoise       *editor.DenoiseOptions `json:"denoise,omitempty"`
	ClipReport    *editor.ClipReport     `json:"clip_report,omitempty"`
	DenoiseReport *editor.DenoiseReport  `json:"denoise_report,omitempty"`
	FinishedAt    time.Time              `json:"finished_at"`
}

// Service runs edit, denoise and compress jobs against recordings on disk.
// Each job runs on the caller's goroutine; a semaphore bounds how many run
// at once.
type Service struct {
	repo            Repository
	io              editor.MediaIO
	storage         storage.Storage
	logger          *slog.Logger
	maxSampleLength int
	sem             chan struct{}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxSampleLength rejects recordings longer than n samples per channel.
func WithMaxSampleLength(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.maxSampleLength = n
		}
	}
}

// WithMaxConcurrentJobs limits the number of jobs processed in parallel.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// NewService creates a new Service.
func NewService(repo Repository, io editor.MediaIO, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    repo,
		io:      io,
		storage: store,
		logger:  logger,
		sem:     make(chan struct{}, 2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates req and persists a new job in IN_QUEUE status.
func (s *Service) CreateJob(ctx context.Context, req Request) (*Job, error) {
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	if req.SourcePath == "" {
		return nil, ErrMissingSource
	}

	job := New(req.Kind)
	job.SourcePath = req.SourcePath
	job.Upload = req.Upload
	job.ExportPrefix = req.ExportPrefix
	if job.ExportPrefix == "" {
		job.ExportPrefix = defaultPrefix(req.SourcePath, job.ID)
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("source", job.SourcePath),
		slog.Bool("upload", job.Upload),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return job.Clone(), nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns every retained job, oldest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Process creates a job for req and runs it to completion.
func (s *Service) Process(ctx context.Context, req Request) (*Job, error) {
	job, err := s.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, req)
}

// ProcessExistingJob runs a job previously returned by CreateJob. It waits
// for a free slot, then loads, edits and exports the recording. Any error
// fails the job and removes what was written for it.
func (s *Service) ProcessExistingJob(ctx context.Context, jobID string, req Request) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		_ = job.Cancel()
		s.save(ctx, job)
		return job.Clone(), ctx.Err()
	}

	if err := job.Start(); err != nil {
		return job.Clone(), err
	}
	s.save(ctx, job)

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("processing job started",
		slog.String("kind", string(job.Kind)),
		slog.String("source", job.SourcePath),
	)

	if req.Staged {
		defer func() {
			if err := s.storage.CleanupTemp(context.WithoutCancel(ctx), []string{req.SourcePath}); err != nil {
				logger.Warn("failed to remove staged source", slog.String("error", err.Error()))
			}
		}()
	}

	var written []string
	runErr := s.run(ctx, job, req, logger, &written)
	if runErr != nil {
		s.removeAll(written, job.SourcePath, logger)
		if errors.Is(runErr, context.Canceled) {
			_ = job.Cancel()
		} else {
			_ = job.Fail(runErr.Error())
		}
		s.save(ctx, job)
		logger.Error("processing job failed", slog.String("error", runErr.Error()))
		return job.Clone(), runErr
	}

	if err := job.Complete(); err != nil {
		return job.Clone(), err
	}
	s.save(ctx, job)
	logger.Info("processing job completed",
		slog.String("export", job.ExportPath),
		slog.Bool("edited", job.Edited),
		slog.Duration("elapsed", job.CompletedAt.Sub(job.StartedAt)),
	)
	return job.Clone(), nil
}

func (s *Service) run(ctx context.Context, job *Job, req Request, logger *slog.Logger, written *[]string) error {
	s.progress(ctx, job, progressValidate, "validate")

	ed, err := editor.Open(ctx, s.io, req.SourcePath, editor.Options{
		MaxSampleLength: s.maxSampleLength,
		Logger:          logger,
		Progress: func(st editor.Stage) {
			switch st {
			case editor.StageDenoising:
				s.progress(ctx, job, progressDenoise, string(st))
			case editor.StageStitching:
				s.progress(ctx, job, progressStitch, string(st))
			case editor.StageExporting:
				s.progress(ctx, job, progressExport, string(st))
			}
		},
	})
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	if p := ed.Original().ConvertedPath(); p != "" {
		*written = append(*written, p)
	}
	s.progress(ctx, job, progressProcess, "processing")

	settings := Settings{JobID: job.ID, Kind: job.Kind, Source: job.SourcePath}
	export := ed.Export

	switch job.Kind {
	case KindEdit:
		clip := req.Clip
		if req.ApplyNoiseReduction {
			d := req.Denoise
			clip.NoiseReduction = &d
		}
		report, err := ed.AmplitudeClip(ctx, clip)
		if err != nil {
			return err
		}
		settings.Clip = &clip
		settings.ClipReport = &report
	case KindDenoise:
		report, err := ed.NoiseReduction(ctx, req.Denoise)
		if err != nil {
			return err
		}
		settings.Denoise = &req.Denoise
		settings.DenoiseReport = &report
		export = ed.ExportAudio
	}

	exportPath := job.SourcePath
	if needsExport(job.Kind, ed, req.Staged) {
		exportPath, err = export(ctx, job.ExportPrefix)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		*written = append(*written, exportPath)
	} else {
		logger.Info("source unchanged, skipping export")
	}
	settings.Export = exportPath
	settings.Edited = ed.Modified()
	settings.FinishedAt = time.Now()

	configPath := job.ExportPrefix + ".config.json"
	if err := writeSettings(configPath, settings); err != nil {
		return err
	}
	*written = append(*written, configPath)
	job.SetOutput(exportPath, configPath, ed.Modified())

	if job.Upload {
		s.progress(ctx, job, progressUploading, "uploading")
		url, err := s.upload(ctx, exportPath)
		if err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		job.SetResultURL(url)
	}
	return nil
}

// needsExport reports whether the job has to write a new file. Edit jobs
// that changed nothing point at the source unless it was converted or only
// staged.
func needsExport(kind Kind, ed *editor.Editor, staged bool) bool {
	switch {
	case kind != KindEdit, staged:
		return true
	default:
		return ed.Modified() || ed.Original().Converted
	}
}

func (s *Service) upload(ctx context.Context, path string) (string, error) {
	// #nosec G304 -- path is an export written by this job
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return s.storage.Upload(ctx, "exports/"+filepath.Base(path), f)
}

// CleanupExpired removes jobs that finished more than keep ago.
func (s *Service) CleanupExpired(ctx context.Context, keep time.Duration) (int, error) {
	ids, err := s.repo.DeleteExpired(ctx, time.Now().Add(-keep))
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.logger.Debug("expired jobs removed", slog.Int("count", len(ids)), slog.Any("job_ids", ids))
	}
	return len(ids), nil
}

func (s *Service) progress(ctx context.Context, job *Job, p int, stage string) {
	job.UpdateProgress(p, stage)
	s.save(ctx, job)
}

func (s *Service) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Warn("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) removeAll(paths []string, keep string, logger *slog.Logger) {
	for _, p := range paths {
		if p == keep {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove partial output",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}

func writeSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	// #nosec G306 -- settings are meant to be readable next to the export
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// defaultPrefix places the export next to the source, tagged with the job ID.
func defaultPrefix(source, jobID string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(filepath.Dir(source), stem+"_"+jobID)
}
