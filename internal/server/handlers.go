package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/autocut/internal/denoise"
	"github.com/maauso/autocut/internal/editor"
	"github.com/maauso/autocut/internal/job"
	"github.com/maauso/autocut/internal/storage"
)

// JobService is the use case the handlers drive.
type JobService interface {
	CreateJob(ctx context.Context, req job.Request) (*job.Job, error)
	ProcessExistingJob(ctx context.Context, jobID string, req job.Request) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context) ([]*job.Job, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            JobService
	storage            storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	clipDefaults       editor.ClipOptions
	denoiseDefaults    editor.DenoiseOptions
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, job endpoints only create the job and return immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithDefaults sets the options used for fields a request leaves out.
func WithDefaults(clip editor.ClipOptions, dn editor.DenoiseOptions) HandlerOption {
	return func(h *Handlers) {
		h.clipDefaults = clip
		h.denoiseDefaults = dn
	}
}

// NewHandlers creates a new Handlers instance. store stages base64 uploads.
func NewHandlers(service JobService, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		storage:            store,
		validator:          validator.New(),
		logger:             logger,
		clipDefaults:       editor.DefaultClipOptions(),
		denoiseDefaults:    editor.DefaultDenoiseOptions(),
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateEditJob handles POST /jobs/edit requests.
func (h *Handlers) CreateEditJob(w http.ResponseWriter, r *http.Request) {
	h.createJob(w, r, job.KindEdit)
}

// CreateDenoiseJob handles POST /jobs/denoise requests.
func (h *Handlers) CreateDenoiseJob(w http.ResponseWriter, r *http.Request) {
	h.createJob(w, r, job.KindDenoise)
}

// CreateCompressJob handles POST /jobs/compress requests.
func (h *Handlers) CreateCompressJob(w http.ResponseWriter, r *http.Request) {
	h.createJob(w, r, job.KindCompress)
}

func (h *Handlers) createJob(w http.ResponseWriter, r *http.Request, kind job.Kind) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	name := req.FilePath
	if name == "" {
		name = req.FileName
	}
	if filepath.Ext(name) == "" {
		writeError(w, http.StatusBadRequest, "file name has no extension: "+name, "MISSING_EXTENSION")
		return
	}

	input := h.toJobRequest(kind, req)
	if req.FileBase64 != "" {
		path, err := h.stage(r.Context(), req)
		if err != nil {
			h.logger.Error("failed to stage upload",
				slog.String("file_name", req.FileName),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_FAILED")
			return
		}
		input.SourcePath = path
		input.Staged = true
	} else if _, err := os.Stat(req.FilePath); err != nil {
		writeError(w, http.StatusBadRequest, "file not found: "+req.FilePath, "FILE_NOT_FOUND")
		return
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		if errors.Is(err, job.ErrInvalidKind) || errors.Is(err, job.ErrMissingSource) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, in job.Request) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID, in)
			if processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("kind", string(kind)),
		slog.Bool("staged", input.Staged),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Kind:   string(createdJob.Kind),
		Status: string(createdJob.Status),
	})
}

// stage decodes a base64 upload into temporary storage.
func (h *Handlers) stage(ctx context.Context, req JobRequest) (string, error) {
	data, err := base64.StdEncoding.DecodeString(req.FileBase64)
	if err != nil {
		return "", err
	}
	return h.storage.SaveTemp(ctx, req.FileName, bytes.NewReader(data))
}

// toJobRequest merges the request over the configured defaults.
func (h *Handlers) toJobRequest(kind job.Kind, req JobRequest) job.Request {
	clip := h.clipDefaults
	setFloat(&clip.MinIntervalSec, req.MinIntervalSec)
	setFloat(&clip.CutoffRatio, req.CutoffRatio)
	setFloat(&clip.CrossfadeSec, req.CrossfadeSec)

	dn := h.denoiseDefaults
	if kind == job.KindDenoise {
		setFloat(&dn.MinIntervalSec, req.MinIntervalSec)
		setFloat(&dn.CutoffRatio, req.CutoffRatio)
	}
	setFloat(&dn.MaxIntervalRatio, req.MaxIntervalRatio)
	setInt(&dn.NIter, req.NIter)
	if nr := req.NoiseReduction; nr != nil {
		setFloat(&dn.MinIntervalSec, nr.MinIntervalSec)
		setFloat(&dn.CutoffRatio, nr.CutoffRatio)
		setFloat(&dn.MaxIntervalRatio, nr.MaxIntervalRatio)
		setInt(&dn.NIter, nr.NIter)
		setInt(&dn.Params.BasisNoiseNum, nr.BasisNoiseNum)
		setInt(&dn.Params.BasisNum, nr.BasisNum)
		setInt(&dn.Params.NMFIter, nr.NMFIter)
		setFloat(&dn.Params.NormalizeScale, nr.NormalizeScale)
		if nr.Divergence != nil {
			dn.Params.Divergence = denoise.Divergence(*nr.Divergence)
		}
	}

	return job.Request{
		Kind:                kind,
		SourcePath:          req.FilePath,
		ExportPrefix:        req.ExportPrefix,
		Upload:              req.Upload,
		Clip:                clip,
		Denoise:             dn,
		ApplyNoiseReduction: req.ApplyNoiseReduction || (kind == job.KindEdit && req.NoiseReduction != nil),
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := toJobResponse(foundJob)

	// Include file content if completed and requested
	withContent, _ := strconv.ParseBool(r.URL.Query().Get("content"))
	if withContent && foundJob.Status == job.StatusCompleted && foundJob.ResultURL == "" && foundJob.ExportPath != "" {
		data, err := os.ReadFile(foundJob.ExportPath)
		if err != nil {
			h.logger.Error("failed to read export",
				slog.String("job_id", jobID),
				slog.String("path", foundJob.ExportPath),
				slog.String("error", err.Error()),
			)
			// Don't fail the request, just log and omit content
		} else {
			resp.ContentBase64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		Kind:       string(j.Kind),
		Status:     string(j.Status),
		Stage:      j.Stage,
		Progress:   j.Progress,
		Error:      j.Error,
		Edited:     j.Edited,
		ExportPath: j.ExportPath,
		ConfigPath: j.ConfigPath,
		ResultURL:  j.ResultURL,
		CreatedAt:  j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
