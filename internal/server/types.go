// Package server provides the HTTP server for the autocut API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// JobRequest is the HTTP request body shared by the edit, denoise and
// compress endpoints. The source is either a path readable by the server
// or an inline base64 upload.
type JobRequest struct {
	// FilePath is a recording on the server's filesystem.
	FilePath string `json:"file_path" validate:"required_without=FileBase64,excluded_with=FileBase64"`
	// FileBase64 is an uploaded recording.
	FileBase64 string `json:"file_base64" validate:"omitempty,base64"`
	// FileName names the upload; its extension selects the decoder.
	FileName string `json:"file_name" validate:"required_with=FileBase64,omitempty,max=255"`
	// ExportPrefix is the output path without extension.
	ExportPrefix string `json:"export_prefix"`
	// Upload pushes the export to object storage.
	Upload bool `json:"upload"`

	// MinIntervalSec is the shortest quiet stretch that gets removed. On
	// denoise jobs it is the shortest noise reference.
	MinIntervalSec *float64 `json:"min_interval_sec" validate:"omitnil,gt=0,lte=10000"`
	// CutoffRatio is the fraction of samples treated as quiet. On denoise
	// jobs it seeds the reference search.
	CutoffRatio *float64 `json:"cutoff_ratio" validate:"omitnil,gte=0,lte=1"`
	// MaxIntervalRatio bounds later noise references as a fraction of the file.
	MaxIntervalRatio *float64 `json:"max_interval_ratio" validate:"omitnil,gt=0,lte=1"`
	// NIter is the number of noise reference search rounds.
	NIter *int `json:"n_iter" validate:"omitnil,gte=1,lte=100"`
	// CrossfadeSec is the longest fade used at each splice.
	CrossfadeSec *float64 `json:"crossfade_sec" validate:"omitnil,gte=0,lte=10"`
	// ApplyNoiseReduction denoises before detection on edit jobs.
	ApplyNoiseReduction bool `json:"apply_noise_reduction"`
	// NoiseReduction overrides the denoising defaults. Its fields win over
	// the top-level ones.
	NoiseReduction *NoiseReductionRequest `json:"noise_reduction" validate:"omitnil"`
}

// NoiseReductionRequest carries optional noise reduction overrides.
type NoiseReductionRequest struct {
	MinIntervalSec   *float64 `json:"min_interval_sec" validate:"omitnil,gt=0"`
	CutoffRatio      *float64 `json:"cutoff_ratio" validate:"omitnil,gte=0,lte=1"`
	MaxIntervalRatio *float64 `json:"max_interval_ratio" validate:"omitnil,gt=0,lte=1"`
	NIter            *int     `json:"n_iter" validate:"omitnil,gte=1,lte=100"`
	BasisNoiseNum    *int     `json:"basis_noise_num" validate:"omitnil,gt=0,lte=512"`
	BasisNum         *int     `json:"basis_num" validate:"omitnil,gt=0,lte=512"`
	NMFIter          *int     `json:"nmf_iter" validate:"omitnil,gt=0,lte=10000"`
	Divergence       *string  `json:"divergence" validate:"omitnil,oneof=kl euc"`
	NormalizeScale   *float64 `json:"normalize_scale" validate:"omitnil,gt=0"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Kind is the requested operation.
	Kind string `json:"kind"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
	// Edited reports whether the audio was changed.
	Edited bool `json:"edited"`
	// ExportPath is the result on the server's filesystem. It equals the
	// source when nothing had to be re-encoded.
	ExportPath string `json:"export_path,omitempty"`
	// ConfigPath is the JSON file recording the effective parameters.
	ConfigPath string `json:"config_path,omitempty"`
	// ResultURL is the object storage URL if upload was requested.
	ResultURL string `json:"result_url,omitempty"`
	// ContentBase64 is the exported file, included on request with
	// ?content=true once the job completed.
	ContentBase64 string     `json:"content_base64,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
